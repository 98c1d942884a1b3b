// Package domain models the rain nowcast: where the user is, which forecast
// area covers them, and the next hour of rain intensity for that area.
//
// # Data Source
//
// Forecasts come from the Météo-France "pluie dans l'heure" service. A postal
// code is first resolved to an area code through the location search
// endpoint, then the area code is used to fetch the rain forecast:
//
//	GET {base}/mf3-rpc-portlet/rest/lieu/facet/pluie/search/{postal code, 5 digits}
//	GET {base}/mf3-rpc-portlet/rest/pluie/{area code}
//
// The forecast payload carries a window start ("echeance", yyyyMMddHHmm in
// local French time) and an ordered list of cadran entries, usually twelve
// five-minute slots covering the next hour.
//
// # Rain Index
//
// Each cadran entry has a "niveauPluie" between 0 and 4:
//
//	0 unknown | 1 none | 2 light | 3 moderate | 4 heavy
//
// The ordinal is meaningful: alerts compare levels with >=.
//
// # Record
//
// [Record] is an immutable snapshot of everything known so far. Its optional
// parts form a dependency chain:
//
//	coordinate -> town + postal code -> area code -> forecast
//
// Every reduction stage returns a new Record and clears whatever depends on
// a field it changed, so a Record never holds a forecast for an area that no
// longer matches its coordinate.
//
// # Timeline
//
// [Project] maps the forecast onto the minute range [0,60] relative to a
// reference instant. The result always tiles the whole hour; unknown filler
// segments cover whatever the forecast window does not.
package domain
