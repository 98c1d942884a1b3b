package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/static"
	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/couchcryptid/rain-nowcast-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

var (
	courbevoie = domain.Coordinate{Latitude: 48.8973, Longitude: 2.2522}
	nearby     = domain.Coordinate{Latitude: 48.8981, Longitude: 2.2530}
	startTime  = time.Date(2026, 6, 3, 14, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticProviders(clock clockwork.Clock) pipeline.Providers {
	return pipeline.Providers{
		Geo:       static.Geo{Clock: clock},
		Areas:     static.AreaCodes{Clock: clock},
		Forecasts: static.Forecasts{Clock: clock},
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AlertEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e domain.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) published() []domain.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AlertEvent(nil), s.events...)
}

var errSinkDown = errors.New("sink down")

func newService(providers pipeline.Providers, clock clockwork.Clock, metrics *observability.Metrics) *pipeline.Service {
	return pipeline.NewService(providers, clock, metrics, discardLogger())
}

type dryForecasts struct {
	clock clockwork.Clock
}

func (d dryForecasts) Query(context.Context, domain.AreaCode) *async.Future[domain.Forecast] {
	levels := make([]domain.RainIndex, 12)
	for i := range levels {
		levels[i] = domain.RainNone
	}
	now := d.clock.Now()
	return async.Resolved(domain.NewForecast(levels, now, now))
}
