package domain

import (
	"fmt"
	"time"
)

// FormatPostalCode zero-pads a French postal code to five digits.
func FormatPostalCode(code int) string {
	return fmt.Sprintf("%05d", code)
}

// LocationDisplay renders "Town (01234)", or "_ _" when the location is unknown.
func (r Record) LocationDisplay() string {
	geo, ok := r.Location()
	if !ok {
		return "_ _"
	}
	return fmt.Sprintf("%s (%s)", geo.Town, FormatPostalCode(geo.PostalCode))
}

// FetchDisplay describes the age of the forecast at now.
func (r Record) FetchDisplay(now time.Time) string {
	f, ok := r.Forecast()
	if !ok {
		return "Unavailable forecast"
	}
	age := int(now.Sub(f.FetchedAt).Minutes())
	switch {
	case age > 30:
		return "More than 30 m ago"
	case age == 0:
		return "Right now"
	default:
		return fmt.Sprintf("%d m ago", age)
	}
}
