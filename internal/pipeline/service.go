package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Providers are the three lookups a full update chains.
type Providers struct {
	Geo       domain.GeoProvider
	Areas     domain.AreaCodeProvider
	Forecasts domain.ForecastProvider

	// Reset, when set, is called by Service.Clear to drop retained values
	// so the next update reaches the remote service.
	Reset func()
}

// Service owns the latest composite record and serializes its updates.
type Service struct {
	providers Providers
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu    sync.Mutex
	last  domain.Record
	gen   uint64 // bumped by Clear
	ready atomic.Bool
}

// NewService creates a Service with an empty record.
func NewService(providers Providers, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		providers: providers,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

// Snapshot returns the latest committed record.
func (s *Service) Snapshot() domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Clear forgets everything but the coordinate. Full updates already in
// flight are not committed.
func (s *Service) Clear() {
	s.mu.Lock()
	s.gen++
	if coord, ok := s.last.Coordinate(); ok {
		s.last = domain.NewRecord(coord)
	} else {
		s.last = domain.Record{}
	}
	s.mu.Unlock()

	if s.providers.Reset != nil {
		s.providers.Reset()
	}
	s.metrics.ForecastAvailable.Set(0)
	s.logger.Info("record cleared")
}

// CheckReadiness returns nil once a full update has succeeded.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no forecast has been fetched yet")
	}
	return nil
}

// UpdateLocation moves the record to coord and geocodes it. The coordinate
// is kept even when geocoding fails, so a later UpdateAll can retry. The
// area code and forecast already held survive when the postal code is
// unchanged.
func (s *Service) UpdateLocation(ctx context.Context, coord domain.Coordinate) *async.Future[struct{}] {
	start := s.clock.Now()
	s.mu.Lock()
	s.last = s.last.Relocate(coord)
	base := s.last
	s.mu.Unlock()

	located := base.ReduceLocation(ctx, coord, s.providers.Geo)
	done := async.Then(located, func(next domain.Record) (struct{}, error) {
		s.commitLocation(coord, next)
		return struct{}{}, nil
	})
	return s.observe("location", start, done)
}

// UpdateAll runs every stage from the current coordinate.
func (s *Service) UpdateAll(ctx context.Context) *async.Future[struct{}] {
	start := s.clock.Now()
	s.mu.Lock()
	base, gen := s.last, s.gen
	s.mu.Unlock()
	coord, ok := base.Coordinate()
	if !ok {
		return s.observe("all", start, async.Failed[struct{}](domain.ErrNoCoordinate))
	}

	reduced := base.ReduceAll(ctx, coord, s.providers.Geo, s.providers.Areas, s.providers.Forecasts)
	done := async.Then(reduced, func(next domain.Record) (struct{}, error) {
		s.commitAll(gen, coord, next)
		return struct{}{}, nil
	})
	return s.observe("all", start, done)
}

func (s *Service) commitLocation(coord domain.Coordinate, next domain.Record) {
	geo, _ := next.Location()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.last
	if c, ok := cur.Coordinate(); !ok || c != coord {
		s.logger.Debug("dropping location for a stale coordinate", "coordinate", coord.String())
		return
	}
	if loc, ok := cur.Location(); ok && loc.PostalCode == geo.PostalCode {
		if area, ok := cur.AreaCode(); ok {
			next = next.WithAreaCode(area)
		}
		if f, ok := cur.Forecast(); ok {
			next = next.WithForecast(f)
		}
	}
	s.last = next
	s.logger.Info("location updated", "location", next.LocationDisplay())
}

// commitAll stores the result of a full update started from coord. A result
// is dropped when the record was cleared or the coordinate moved meanwhile,
// or when the record already holds a forecast at least as recent for the
// same area.
func (s *Service) commitAll(gen uint64, coord domain.Coordinate, next domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.logger.Debug("dropping update started before a clear", "coordinate", coord.String())
		return
	}
	cur := s.last
	if c, ok := cur.Coordinate(); !ok || c != coord {
		s.logger.Debug("dropping update for a stale coordinate", "coordinate", coord.String())
		return
	}
	curArea, hasCur := cur.AreaCode()
	nextArea, _ := next.AreaCode()
	if f, ok := next.Forecast(); ok && hasCur && curArea == nextArea && !cur.Supersedes(f) {
		s.logger.Debug("keeping the more recent forecast", "area_code", int(curArea))
		return
	}

	s.last = next
	s.ready.Store(true)
	s.metrics.ForecastAvailable.Set(1)
	s.logger.Info("forecast updated",
		"location", next.LocationDisplay(),
		"area_code", int(nextArea),
	)
}

func (s *Service) observe(operation string, start time.Time, f *async.Future[struct{}]) *async.Future[struct{}] {
	ok := async.Then(f, func(v struct{}) (struct{}, error) {
		s.metrics.Update(operation, s.clock.Since(start), nil)
		return v, nil
	})
	return ok.OnError(func(err error) {
		s.metrics.Update(operation, s.clock.Since(start), err)
		s.logger.Warn("update failed", "operation", operation, "kind", domain.ErrorKind(err), "error", err)
	})
}
