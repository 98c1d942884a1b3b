package domain

import (
	"context"
	"slices"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
)

// Record is an immutable snapshot of the nowcast state. The zero value is
// the empty record. Use the With* and Reduce* methods to derive new records;
// they never modify the receiver.
type Record struct {
	coordinate    Coordinate
	hasCoordinate bool

	town        string
	postalCode  int
	hasLocation bool

	areaCode    AreaCode
	hasAreaCode bool

	forecast    Forecast
	hasForecast bool
}

// NewRecord returns an empty record that only knows coord.
func NewRecord(coord Coordinate) Record {
	return Record{coordinate: coord, hasCoordinate: true}
}

func (r Record) HasCoordinate() bool { return r.hasCoordinate }
func (r Record) HasLocation() bool   { return r.hasCoordinate && r.hasLocation }
func (r Record) HasAreaCode() bool   { return r.HasLocation() && r.hasAreaCode }
func (r Record) HasForecast() bool   { return r.HasAreaCode() && r.hasForecast }

// Coordinate returns the coordinate and whether one is known.
func (r Record) Coordinate() (Coordinate, bool) { return r.coordinate, r.hasCoordinate }

// Location returns the town and postal code and whether they are known.
func (r Record) Location() (GeoResult, bool) {
	return GeoResult{Town: r.town, PostalCode: r.postalCode}, r.HasLocation()
}

// AreaCode returns the forecast area and whether it is known.
func (r Record) AreaCode() (AreaCode, bool) { return r.areaCode, r.HasAreaCode() }

// Forecast returns a copy of the forecast and whether one is known.
func (r Record) Forecast() (Forecast, bool) {
	if !r.HasForecast() {
		return Forecast{}, false
	}
	return NewForecast(r.forecast.Levels, r.forecast.WindowStart, r.forecast.FetchedAt), true
}

// WithCoordinate sets coord and clears everything derived from the previous one.
func (r Record) WithCoordinate(coord Coordinate) Record {
	return NewRecord(coord)
}

// Relocate replaces the coordinate and keeps the derived fields until a
// geocode decides whether they still apply.
func (r Record) Relocate(coord Coordinate) Record {
	next := r
	next.coordinate = coord
	next.hasCoordinate = true
	return next
}

// WithLocation sets town and postal code and clears the area code and forecast.
func (r Record) WithLocation(geo GeoResult) Record {
	next := Record{coordinate: r.coordinate, hasCoordinate: r.hasCoordinate}
	next.town = geo.Town
	next.postalCode = geo.PostalCode
	next.hasLocation = true
	return next
}

// WithAreaCode sets the area code. A different area code drops the forecast.
func (r Record) WithAreaCode(area AreaCode) Record {
	next := r
	if !r.hasAreaCode || r.areaCode != area {
		next.forecast = Forecast{}
		next.hasForecast = false
	}
	next.areaCode = area
	next.hasAreaCode = true
	return next
}

// WithForecast sets the forecast.
func (r Record) WithForecast(f Forecast) Record {
	next := r
	next.forecast = NewForecast(f.Levels, f.WindowStart, f.FetchedAt)
	next.hasForecast = true
	return next
}

// Supersedes reports whether f may replace the forecast held by r: either r
// has none, or f was fetched no earlier and its window starts no earlier.
func (r Record) Supersedes(f Forecast) bool {
	if !r.HasForecast() {
		return true
	}
	return !f.FetchedAt.Before(r.forecast.FetchedAt) && !f.WindowStart.Before(r.forecast.WindowStart)
}

// ReduceGeo moves the record to coord. Every downstream field is cleared.
func (r Record) ReduceGeo(coord Coordinate) *async.Future[Record] {
	return async.Resolved(r.WithCoordinate(coord))
}

// ReduceArea geocodes the coordinate. Town and postal code are only replaced,
// and downstream fields only cleared, when the postal code changes.
func (r Record) ReduceArea(ctx context.Context, geo GeoProvider) *async.Future[Record] {
	if !r.hasCoordinate {
		return async.Failed[Record](ErrMissingCoordinate)
	}
	return async.Then(geo.Query(ctx, r.coordinate), func(res GeoResult) (Record, error) {
		if r.hasLocation && r.postalCode == res.PostalCode {
			return r, nil
		}
		return r.WithLocation(res), nil
	})
}

// ReduceAreaCode resolves the area code of the postal code. Without a known
// location the record is returned unchanged.
func (r Record) ReduceAreaCode(ctx context.Context, areas AreaCodeProvider) *async.Future[Record] {
	if !r.HasLocation() {
		return async.Resolved(r)
	}
	return async.Then(areas.Query(ctx, r.postalCode), func(area AreaCode) (Record, error) {
		return r.WithAreaCode(area), nil
	})
}

// ReduceForecast fetches the forecast of the area. A response older than the
// forecast already held, by fetch instant or window start, is ignored.
func (r Record) ReduceForecast(ctx context.Context, forecasts ForecastProvider) *async.Future[Record] {
	if !r.HasAreaCode() {
		return async.Failed[Record](ErrMissingAreaCode)
	}
	return async.Then(forecasts.Query(ctx, r.areaCode), func(f Forecast) (Record, error) {
		if !r.Supersedes(f) {
			return r, nil
		}
		return r.WithForecast(f), nil
	})
}

// ReduceLocation is ReduceGeo followed by ReduceArea.
func (r Record) ReduceLocation(ctx context.Context, coord Coordinate, geo GeoProvider) *async.Future[Record] {
	return async.ThenFuture(r.ReduceGeo(coord), func(next Record) *async.Future[Record] {
		return next.ReduceArea(ctx, geo)
	})
}

// ReduceAll runs every stage in order. The first failure stops the chain.
func (r Record) ReduceAll(ctx context.Context, coord Coordinate, geo GeoProvider, areas AreaCodeProvider, forecasts ForecastProvider) *async.Future[Record] {
	located := r.ReduceLocation(ctx, coord, geo)
	coded := async.ThenFuture(located, func(next Record) *async.Future[Record] {
		return next.ReduceAreaCode(ctx, areas)
	})
	return async.ThenFuture(coded, func(next Record) *async.Future[Record] {
		return next.ReduceForecast(ctx, forecasts)
	})
}

// Equal reports whether both records hold the same data.
func (r Record) Equal(other Record) bool {
	return r.hasCoordinate == other.hasCoordinate && r.coordinate == other.coordinate &&
		r.hasLocation == other.hasLocation && r.town == other.town && r.postalCode == other.postalCode &&
		r.hasAreaCode == other.hasAreaCode && r.areaCode == other.areaCode &&
		r.hasForecast == other.hasForecast &&
		slices.Equal(r.forecast.Levels, other.forecast.Levels) &&
		r.forecast.WindowStart.Equal(other.forecast.WindowStart) &&
		r.forecast.FetchedAt.Equal(other.forecast.FetchedAt)
}

// Snapshot is the serialisable view of a record.
type Snapshot struct {
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	Town       string      `json:"town,omitempty"`
	PostalCode string      `json:"postal_code,omitempty"`
	AreaCode   *AreaCode   `json:"area_code,omitempty"`
	Forecast   *Forecast   `json:"forecast,omitempty"`
	Location   string      `json:"location"`
	Fetched    string      `json:"fetched"`
}

// Snapshot renders the record for presentation at now.
func (r Record) Snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Location: r.LocationDisplay(),
		Fetched:  r.FetchDisplay(now),
	}
	if c, ok := r.Coordinate(); ok {
		s.Coordinate = &c
	}
	if geo, ok := r.Location(); ok {
		s.Town = geo.Town
		s.PostalCode = FormatPostalCode(geo.PostalCode)
	}
	if a, ok := r.AreaCode(); ok {
		s.AreaCode = &a
	}
	if f, ok := r.Forecast(); ok {
		s.Forecast = &f
	}
	return s
}
