package pipeline_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/static"
	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/couchcryptid/rain-nowcast-service/internal/query"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func await(t *testing.T, f *async.Future[struct{}]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := f.Await(ctx)
	return err
}

func TestService_UpdateAll_NoCoordinate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	metrics := observability.NewMetricsForTesting()
	svc := newService(staticProviders(clock), clock, metrics)

	err := await(t, svc.UpdateAll(context.Background()))
	require.ErrorIs(t, err, domain.ErrNoCoordinate)
	require.ErrorIs(t, err, domain.ErrInternal)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Updates.WithLabelValues("all", "internal")), 0)
	assert.Error(t, svc.CheckReadiness(context.Background()))
}

func TestService_LocationThenAll(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	metrics := observability.NewMetricsForTesting()
	svc := newService(staticProviders(clock), clock, metrics)
	ctx := context.Background()

	require.NoError(t, await(t, svc.UpdateLocation(ctx, courbevoie)))
	r := svc.Snapshot()
	assert.True(t, r.HasLocation())
	assert.False(t, r.HasAreaCode())

	require.NoError(t, await(t, svc.UpdateAll(ctx)))
	r = svc.Snapshot()
	require.True(t, r.HasForecast())
	area, _ := r.AreaCode()
	assert.Equal(t, static.Area, area)

	require.NoError(t, svc.CheckReadiness(ctx))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ForecastAvailable), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Updates.WithLabelValues("location", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Updates.WithLabelValues("all", "success")), 0)
}

func TestService_UpdateLocation_SamePostalKeepsForecast(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	svc := newService(staticProviders(clock), clock, observability.NewMetricsForTesting())
	ctx := context.Background()

	require.NoError(t, await(t, svc.UpdateLocation(ctx, courbevoie)))
	require.NoError(t, await(t, svc.UpdateAll(ctx)))

	require.NoError(t, await(t, svc.UpdateLocation(ctx, nearby)))
	r := svc.Snapshot()
	coord, _ := r.Coordinate()
	assert.Equal(t, nearby, coord)
	assert.True(t, r.HasForecast())
}

func TestService_UpdateLocation_NewPostalDropsForecast(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	providers := staticProviders(clock)
	var moved atomic.Bool
	providers.Geo = query.ProviderFunc[domain.Coordinate, domain.GeoResult](func(context.Context, domain.Coordinate) *async.Future[domain.GeoResult] {
		if moved.Load() {
			return async.Resolved(domain.GeoResult{Town: "Puteaux", PostalCode: 92800})
		}
		return async.Resolved(static.Location)
	})
	svc := newService(providers, clock, observability.NewMetricsForTesting())
	ctx := context.Background()

	require.NoError(t, await(t, svc.UpdateLocation(ctx, courbevoie)))
	require.NoError(t, await(t, svc.UpdateAll(ctx)))

	moved.Store(true)
	require.NoError(t, await(t, svc.UpdateLocation(ctx, nearby)))
	r := svc.Snapshot()
	loc, _ := r.Location()
	assert.Equal(t, 92800, loc.PostalCode)
	assert.False(t, r.HasAreaCode())
	assert.False(t, r.HasForecast())
}

func TestService_UpdateLocation_FailureKeepsCoordinate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	providers := staticProviders(clock)
	var geoCalls atomic.Int32
	providers.Geo = query.ProviderFunc[domain.Coordinate, domain.GeoResult](func(ctx context.Context, c domain.Coordinate) *async.Future[domain.GeoResult] {
		if geoCalls.Add(1) == 1 {
			return static.EmptyGeo{}.Query(ctx, c)
		}
		return async.Resolved(static.Location)
	})
	metrics := observability.NewMetricsForTesting()
	svc := newService(providers, clock, metrics)
	ctx := context.Background()

	err := await(t, svc.UpdateLocation(ctx, courbevoie))
	require.ErrorIs(t, err, domain.ErrNotFound)
	coord, ok := svc.Snapshot().Coordinate()
	require.True(t, ok)
	assert.Equal(t, courbevoie, coord)
	assert.False(t, svc.Snapshot().HasLocation())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Updates.WithLabelValues("location", "not_found")), 0)

	// The next scheduled update recovers from the stored coordinate.
	require.NoError(t, await(t, svc.UpdateAll(ctx)))
	r := svc.Snapshot()
	assert.True(t, r.HasForecast())
	loc, _ := r.Location()
	assert.Equal(t, static.Location, loc)
	assert.EqualValues(t, 2, geoCalls.Load())
}

func TestService_Clear(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	providers := staticProviders(clock)
	var resets atomic.Int32
	providers.Reset = func() { resets.Add(1) }
	metrics := observability.NewMetricsForTesting()
	svc := newService(providers, clock, metrics)
	ctx := context.Background()

	require.NoError(t, await(t, svc.UpdateLocation(ctx, courbevoie)))
	require.NoError(t, await(t, svc.UpdateAll(ctx)))

	svc.Clear()
	r := svc.Snapshot()
	coord, ok := r.Coordinate()
	require.True(t, ok)
	assert.Equal(t, courbevoie, coord)
	assert.False(t, r.HasLocation())
	assert.EqualValues(t, 1, resets.Load())
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ForecastAvailable), 0)

	require.NoError(t, await(t, svc.UpdateAll(ctx)))
	assert.True(t, svc.Snapshot().HasForecast())
}

func TestService_UpdateAll_KeepsNewerForecast(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	providers := staticProviders(clock)
	newer := domain.NewForecast(static.Levels, startTime, startTime.Add(time.Minute))
	older := domain.NewForecast(static.Levels, startTime, startTime)
	var calls atomic.Int32
	providers.Forecasts = query.ProviderFunc[domain.AreaCode, domain.Forecast](func(context.Context, domain.AreaCode) *async.Future[domain.Forecast] {
		if calls.Add(1) == 1 {
			return async.Resolved(newer)
		}
		return async.Resolved(older)
	})
	svc := newService(providers, clock, observability.NewMetricsForTesting())
	ctx := context.Background()

	require.NoError(t, await(t, svc.UpdateLocation(ctx, courbevoie)))
	require.NoError(t, await(t, svc.UpdateAll(ctx)))
	require.NoError(t, await(t, svc.UpdateAll(ctx)))

	f, ok := svc.Snapshot().Forecast()
	require.True(t, ok)
	assert.Equal(t, newer.FetchedAt, f.FetchedAt)
	assert.EqualValues(t, 2, calls.Load())
}

func TestService_UpdateAll_DropsResultForMovedCoordinate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	providers := staticProviders(clock)
	promise, pending := async.New[domain.Forecast](async.Inline)
	providers.Forecasts = query.ProviderFunc[domain.AreaCode, domain.Forecast](func(context.Context, domain.AreaCode) *async.Future[domain.Forecast] {
		return pending
	})
	svc := newService(providers, clock, observability.NewMetricsForTesting())
	ctx := context.Background()

	require.NoError(t, await(t, svc.UpdateLocation(ctx, courbevoie)))
	inFlight := svc.UpdateAll(ctx)
	require.NoError(t, await(t, svc.UpdateLocation(ctx, nearby)))

	promise.Resolve(domain.NewForecast(static.Levels, startTime, startTime))
	require.NoError(t, await(t, inFlight))

	r := svc.Snapshot()
	coord, _ := r.Coordinate()
	assert.Equal(t, nearby, coord)
	assert.False(t, r.HasForecast())
	assert.Error(t, svc.CheckReadiness(ctx))
}

func TestService_UpdateAll_DropsResultStartedBeforeClear(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	providers := staticProviders(clock)
	promise, pending := async.New[domain.Forecast](async.Inline)
	providers.Forecasts = query.ProviderFunc[domain.AreaCode, domain.Forecast](func(context.Context, domain.AreaCode) *async.Future[domain.Forecast] {
		return pending
	})
	svc := newService(providers, clock, observability.NewMetricsForTesting())
	ctx := context.Background()

	require.NoError(t, await(t, svc.UpdateLocation(ctx, courbevoie)))
	inFlight := svc.UpdateAll(ctx)
	svc.Clear()

	promise.Resolve(domain.NewForecast(static.Levels, startTime, startTime))
	require.NoError(t, await(t, inFlight))

	r := svc.Snapshot()
	assert.True(t, r.HasCoordinate())
	assert.False(t, r.HasLocation())
	assert.False(t, r.HasForecast())
	assert.Error(t, svc.CheckReadiness(ctx))
}
