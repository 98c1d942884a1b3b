package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/static"
	"github.com/couchcryptid/rain-nowcast-service/internal/config"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/couchcryptid/rain-nowcast-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildProviders_StaticSourcesNeedNoNetwork(t *testing.T) {
	cfg := &config.Config{
		Geocoder:         config.GeocoderStatic,
		ForecastSource:   config.ForecastSourceStatic,
		GeoTolerance:     domain.DefaultCoordinateTolerance,
		ForecastThrottle: time.Minute,
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 3, 14, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()

	providers, err := buildProviders(cfg, clock, metrics, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers.Reset)

	svc := pipeline.NewService(providers, clock, metrics, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = svc.UpdateLocation(ctx, domain.Coordinate{Latitude: 48.8973, Longitude: 2.2522}).Await(ctx)
	require.NoError(t, err)
	_, err = svc.UpdateAll(ctx).Await(ctx)
	require.NoError(t, err)

	r := svc.Snapshot()
	area, ok := r.AreaCode()
	require.True(t, ok)
	assert.Equal(t, static.Area, area)
	f, ok := r.Forecast()
	require.True(t, ok)
	assert.Equal(t, static.Levels, f.Levels)
}

func TestBuildProviders_NoThrottle(t *testing.T) {
	cfg := &config.Config{
		Geocoder:       config.GeocoderStatic,
		ForecastSource: config.ForecastSourceStatic,
		GeoTolerance:   domain.DefaultCoordinateTolerance,
	}
	providers, err := buildProviders(cfg, clockwork.NewFakeClock(), observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)
	assert.Nil(t, providers.Reset)
}

func TestBuildProviders_UnknownSources(t *testing.T) {
	metrics := observability.NewMetricsForTesting()

	_, err := buildProviders(&config.Config{Geocoder: "carrier-pigeon", ForecastSource: config.ForecastSourceStatic}, clockwork.NewFakeClock(), metrics, discardLogger())
	require.Error(t, err)

	_, err = buildProviders(&config.Config{Geocoder: config.GeocoderStatic, ForecastSource: "almanac"}, clockwork.NewFakeClock(), metrics, discardLogger())
	require.Error(t, err)
}
