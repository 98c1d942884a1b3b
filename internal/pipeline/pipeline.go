package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/go-co-op/gocron"
)

// Pipeline refreshes the record on a schedule and raises alerts after each
// successful refresh.
type Pipeline struct {
	service  *Service
	notifier *Notifier
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Pipeline refreshing svc every interval.
func New(svc *Service, notifier *Notifier, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		service:  svc,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness delegates to the service.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	return p.service.CheckReadiness(ctx)
}

// Run refreshes immediately, then every interval, until ctx is cancelled.
// A refresh still running when the next one is due delays it instead of
// overlapping.
func (p *Pipeline) Run(ctx context.Context) error {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if _, err := s.Every(p.interval).Do(p.tick, ctx); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	p.logger.Info("refresh loop started", "interval", p.interval)
	p.metrics.RefreshRunning.Set(1)
	defer p.metrics.RefreshRunning.Set(0)

	s.StartAsync()
	<-ctx.Done()
	s.Stop()

	p.logger.Info("refresh loop stopping", "reason", ctx.Err())
	return nil
}

func (p *Pipeline) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	if err := p.Refresh(tickCtx); err != nil {
		p.logger.Error("scheduled refresh failed", "kind", domain.ErrorKind(err), "error", err)
	}
}

// Refresh runs a full update and evaluates the alert of the result.
func (p *Pipeline) Refresh(ctx context.Context) error {
	if _, err := p.service.UpdateAll(ctx).Await(ctx); err != nil {
		return err
	}
	return p.evaluate(ctx)
}

// Notify handles a new coordinate: the location is updated first, then the
// rest of the record.
func (p *Pipeline) Notify(ctx context.Context, coord domain.Coordinate) error {
	if _, err := p.service.UpdateLocation(ctx, coord).Await(ctx); err != nil {
		return err
	}
	return p.Refresh(ctx)
}

func (p *Pipeline) evaluate(ctx context.Context) error {
	if p.notifier == nil {
		return nil
	}
	if _, err := p.notifier.Evaluate(ctx, p.service.Snapshot()); err != nil {
		p.logger.Warn("alert not delivered", "error", err)
	}
	return nil
}
