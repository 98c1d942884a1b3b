package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/google"
	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/mapbox"
	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/meteofrance"
	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/static"
	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/transport"
	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/config"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/couchcryptid/rain-nowcast-service/internal/pipeline"
	"github.com/couchcryptid/rain-nowcast-service/internal/query"
	"github.com/jonboulle/clockwork"
)

// buildProviders assembles the decorated lookup chains:
//
//	geo:       Cache(near match) -> geocoder
//	area code: Cache(exact match) -> Météo-France search or static
//	forecast:  Throttle -> SingleFlight -> Météo-France rain or static
func buildProviders(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (pipeline.Providers, error) {
	geoLeaf, err := geocoder(cfg, clock, metrics, logger)
	if err != nil {
		return pipeline.Providers{}, err
	}
	geo := query.NewCache(geoLeaf, func(cached, requested domain.Coordinate) bool {
		return cached.Near(requested, cfg.GeoTolerance)
	}, query.WithRecorder[domain.Coordinate, domain.GeoResult]("geo", metrics))

	areaLeaf, forecastLeaf, err := forecastSource(cfg, clock, metrics, logger)
	if err != nil {
		return pipeline.Providers{}, err
	}
	areas := query.NewCache(areaLeaf, query.Equal[int],
		query.WithRecorder[int, domain.AreaCode]("area_code", metrics))

	providers := pipeline.Providers{Geo: geo, Areas: areas}

	forecasts := query.NewSingleFlight(forecastLeaf)
	if cfg.ForecastThrottle > 0 {
		throttled := query.NewThrottle[domain.AreaCode, domain.Forecast](forecasts, cfg.ForecastThrottle, func(f domain.Forecast) time.Time {
			return f.FetchedAt
		}, clock)
		providers.Forecasts = throttled
		providers.Reset = throttled.Reset
	} else {
		providers.Forecasts = forecasts
	}

	logger.Info("providers ready",
		"geocoder", cfg.Geocoder,
		"forecast_source", cfg.ForecastSource,
		"meteofrance", cfg.MeteoFranceBaseURL,
		"forecast_throttle", cfg.ForecastThrottle,
	)
	return providers, nil
}

func forecastSource(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (query.Provider[int, domain.AreaCode], query.Provider[domain.AreaCode, domain.Forecast], error) {
	switch cfg.ForecastSource {
	case config.ForecastSourceMeteoFrance:
		exec := async.Background
		fetcher := transport.NewFetcher("meteofrance", cfg.FetchTimeout, metrics, logger)
		mf := meteofrance.NewClient(cfg.MeteoFranceBaseURL, cfg.ForecastTimezone, fetcher, metrics, logger, meteofrance.WithClock(clock))
		return mf.AreaCodeProvider(exec), mf.ForecastProvider(exec), nil
	case config.ForecastSourceStatic:
		return static.AreaCodes{Clock: clock}, static.Forecasts{Clock: clock}, nil
	default:
		return nil, nil, fmt.Errorf("unknown forecast source %q", cfg.ForecastSource)
	}
}

func geocoder(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (query.Provider[domain.Coordinate, domain.GeoResult], error) {
	exec := async.Background
	switch cfg.Geocoder {
	case config.GeocoderMapbox:
		fetcher := transport.NewFetcher("mapbox", cfg.FetchTimeout, metrics, logger)
		return mapbox.NewClient(cfg.MapboxToken, fetcher, metrics, logger).Provider(exec), nil
	case config.GeocoderGoogle:
		return google.NewClient(cfg.GoogleAPIKey, metrics, logger).Provider(exec, clock, cfg.FetchTimeout), nil
	case config.GeocoderStatic:
		return static.Geo{Clock: clock}, nil
	default:
		return nil, fmt.Errorf("unknown geocoder %q", cfg.Geocoder)
	}
}
