// Package static provides fixed-answer providers for local development and
// for exercising the pipeline without network access.
package static

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Fixed answers.
var (
	Location = domain.GeoResult{Town: "Courbevoie", PostalCode: 92400}
	Area     = domain.AreaCode(920260)
	Levels   = []domain.RainIndex{
		domain.RainNone, domain.RainNone, domain.RainLight, domain.RainModerate,
		domain.RainNone, domain.RainNone, domain.RainHeavy, domain.RainHeavy,
		domain.RainLight, domain.RainNone, domain.RainLight, domain.RainNone,
	}
)

// ForecastLead is how far ahead of the query instant the static forecast
// window starts.
const ForecastLead = 5 * time.Minute

// Geo answers every coordinate with Location after Delay.
type Geo struct {
	Clock clockwork.Clock
	Delay time.Duration
}

// Query implements domain.GeoProvider.
func (g Geo) Query(context.Context, domain.Coordinate) *async.Future[domain.GeoResult] {
	return async.Resolved(Location).Delay(clockOrReal(g.Clock), g.Delay)
}

// AreaCodes answers every postal code with Area after Delay.
type AreaCodes struct {
	Clock clockwork.Clock
	Delay time.Duration
}

// Query implements domain.AreaCodeProvider.
func (a AreaCodes) Query(context.Context, int) *async.Future[domain.AreaCode] {
	return async.Resolved(Area).Delay(clockOrReal(a.Clock), a.Delay)
}

// Forecasts answers every area with Levels, fetched at the query instant
// and starting ForecastLead later, after Delay.
type Forecasts struct {
	Clock clockwork.Clock
	Delay time.Duration
}

// Query implements domain.ForecastProvider.
func (f Forecasts) Query(context.Context, domain.AreaCode) *async.Future[domain.Forecast] {
	clock := clockOrReal(f.Clock)
	now := clock.Now()
	return async.Resolved(domain.NewForecast(Levels, now.Add(ForecastLead), now)).Delay(clock, f.Delay)
}

// EmptyGeo fails every query with domain.ErrNotFound.
type EmptyGeo struct{}

// Query implements domain.GeoProvider.
func (EmptyGeo) Query(_ context.Context, coord domain.Coordinate) *async.Future[domain.GeoResult] {
	return async.Failed[domain.GeoResult](fmt.Errorf("%w: no geocoder configured for %s", domain.ErrNotFound, coord))
}

// EmptyAreaCodes fails every query with domain.ErrNotFound.
type EmptyAreaCodes struct{}

// Query implements domain.AreaCodeProvider.
func (EmptyAreaCodes) Query(_ context.Context, postalCode int) *async.Future[domain.AreaCode] {
	return async.Failed[domain.AreaCode](fmt.Errorf("%w: no area for %s", domain.ErrNotFound, domain.FormatPostalCode(postalCode)))
}

// EmptyForecasts fails every query with domain.ErrForecastUnavailable.
type EmptyForecasts struct{}

// Query implements domain.ForecastProvider.
func (EmptyForecasts) Query(_ context.Context, area domain.AreaCode) *async.Future[domain.Forecast] {
	return async.Failed[domain.Forecast](fmt.Errorf("%w: area %d", domain.ErrForecastUnavailable, int(area)))
}

func clockOrReal(c clockwork.Clock) clockwork.Clock {
	if c == nil {
		return clockwork.NewRealClock()
	}
	return c
}
