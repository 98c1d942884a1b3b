package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/couchcryptid/rain-nowcast-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// AlertSink delivers rain alerts.
type AlertSink interface {
	Publish(ctx context.Context, event domain.AlertEvent) error
}

// AlertPolicy gates which alerts get published.
type AlertPolicy struct {
	Enabled  bool
	Level    domain.RainIndex
	Throttle time.Duration
	MinLead  time.Duration
}

// Notifier publishes the alert of a record when the policy allows it.
type Notifier struct {
	policy  AlertPolicy
	sink    AlertSink
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
	newID   func() string

	mu          sync.Mutex
	lastPublish time.Time
}

// NewNotifier creates a Notifier publishing to sink.
func NewNotifier(policy AlertPolicy, sink AlertSink, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Notifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Notifier{
		policy:  policy,
		sink:    sink,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		newID:   func() string { return uuid.NewString() },
	}
}

// Evaluate publishes the alert of r unless alerts are disabled, one was
// published less than Throttle ago, the level is below the policy level,
// or the rain is due within MinLead. It reports whether an alert went out.
func (n *Notifier) Evaluate(ctx context.Context, r domain.Record) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	if !n.lastPublish.IsZero() && now.Sub(n.lastPublish) <= n.policy.Throttle {
		return false, nil
	}
	if !n.policy.Enabled {
		return false, nil
	}
	alert := r.Alert(n.policy.Level, now)
	if alert.Unknown() || alert.Level < n.policy.Level {
		return false, nil
	}
	if lead := alert.MinutesFrom(now); lead <= n.policy.MinLead.Minutes() {
		n.logger.Debug("alert too close to publish", "level", alert.Level.String(), "lead_minutes", lead)
		return false, nil
	}

	event := domain.NewAlertEvent(n.newID(), r, alert, now)
	if err := n.sink.Publish(ctx, event); err != nil {
		n.metrics.AlertErrors.Inc()
		return false, fmt.Errorf("publish alert: %w", err)
	}
	n.lastPublish = now
	n.metrics.AlertsPublished.WithLabelValues(alert.Level.String()).Inc()
	n.logger.Info("alert published", "id", event.ID, "level", alert.Level.String(), "lead_minutes", event.LeadMinutes)
	return true, nil
}

// LogSink writes alerts to the log. It stands in for Kafka when that is
// disabled.
type LogSink struct {
	Logger *slog.Logger
}

// Publish logs event at info level.
func (s LogSink) Publish(_ context.Context, event domain.AlertEvent) error {
	s.Logger.Info(event.Title,
		"id", event.ID,
		"message", event.Message,
		"level", event.Level.String(),
		"trigger_at", event.TriggerAt,
		"location", fmt.Sprintf("%s (%s)", event.Town, domain.FormatPostalCode(event.PostalCode)),
	)
	return nil
}
