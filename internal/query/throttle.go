package query

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/jonboulle/clockwork"
)

// Throttle keeps the last successful value of an inner provider and serves
// it, whatever the requested key, until it is older than the threshold.
type Throttle[K, V any] struct {
	inner     Provider[K, V]
	threshold time.Duration
	fetchedAt func(V) time.Time
	clock     clockwork.Clock

	mu   sync.Mutex
	last *V
}

// NewThrottle wraps inner. fetchedAt extracts the fetch instant of a value.
// A nil clock means the real clock.
func NewThrottle[K, V any](inner Provider[K, V], threshold time.Duration, fetchedAt func(V) time.Time, clock clockwork.Clock) *Throttle[K, V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle[K, V]{inner: inner, threshold: threshold, fetchedAt: fetchedAt, clock: clock}
}

// Query returns the retained value while it is fresh, else queries inner and
// retains a successful result.
func (t *Throttle[K, V]) Query(ctx context.Context, key K) *async.Future[V] {
	t.mu.Lock()
	if t.last != nil && t.clock.Since(t.fetchedAt(*t.last)) < t.threshold {
		v := *t.last
		t.mu.Unlock()
		return async.Resolved(v)
	}
	t.mu.Unlock()

	return async.Then(t.inner.Query(ctx, key), func(v V) (V, error) {
		t.mu.Lock()
		t.last = &v
		t.mu.Unlock()
		return v, nil
	})
}

// Reset forgets the retained value.
func (t *Throttle[K, V]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = nil
}
