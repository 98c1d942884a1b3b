// Package query composes remote lookups. A Provider answers a key with a
// future; Cache, Throttle and SingleFlight wrap another Provider of the same
// shape.
package query

import (
	"context"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Provider answers a key with a future value.
type Provider[K, V any] interface {
	Query(ctx context.Context, key K) *async.Future[V]
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc[K, V any] func(ctx context.Context, key K) *async.Future[V]

// Query calls f(ctx, key).
func (f ProviderFunc[K, V]) Query(ctx context.Context, key K) *async.Future[V] {
	return f(ctx, key)
}

// Unimplemented fails every query. Embed it in a provider that is only
// meant to be reached through a decorator.
type Unimplemented[K, V any] struct{}

// Query always fails with domain.ErrUnimplemented.
func (Unimplemented[K, V]) Query(context.Context, K) *async.Future[V] {
	return async.Failed[V](domain.ErrUnimplemented)
}

// Failing answers every query with err.
func Failing[K, V any](err error) Provider[K, V] {
	return ProviderFunc[K, V](func(context.Context, K) *async.Future[V] {
		return async.Failed[V](err)
	})
}

// Blocking adapts a synchronous lookup. Each query runs fn on its own
// goroutine, detached from ctx cancellation, and settles on exec.
func Blocking[K, V any](exec async.Executor, fn func(ctx context.Context, key K) (V, error)) Provider[K, V] {
	return ProviderFunc[K, V](func(ctx context.Context, key K) *async.Future[V] {
		detached := context.WithoutCancel(ctx)
		return async.Go(exec, func() (V, error) { return fn(detached, key) })
	})
}

// WithTimeout fails a query of inner with domain.ErrTimeout when it has not
// settled within d on clock. The inner call keeps running. A non-positive d
// returns inner unchanged.
func WithTimeout[K, V any](inner Provider[K, V], clock clockwork.Clock, d time.Duration) Provider[K, V] {
	if d <= 0 {
		return inner
	}
	return ProviderFunc[K, V](func(ctx context.Context, key K) *async.Future[V] {
		return inner.Query(ctx, key).Timeout(clock, d)
	})
}
