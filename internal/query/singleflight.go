package query

import (
	"context"
	"sync"

	"github.com/couchcryptid/rain-nowcast-service/internal/async"
)

// SingleFlight allows one outstanding inner query at a time. Callers arriving
// while it is pending share its future, whatever key they asked for.
type SingleFlight[K, V any] struct {
	inner Provider[K, V]

	mu      sync.Mutex
	last    *async.Future[V]
	pending bool
}

// NewSingleFlight wraps inner.
func NewSingleFlight[K, V any](inner Provider[K, V]) *SingleFlight[K, V] {
	return &SingleFlight[K, V]{inner: inner}
}

// Query returns the pending future if there is one, else issues a new inner query.
func (s *SingleFlight[K, V]) Query(ctx context.Context, key K) *async.Future[V] {
	s.mu.Lock()
	if s.last != nil && s.pending {
		f := s.last
		s.mu.Unlock()
		return f
	}

	// Reserve the slot before calling inner so concurrent callers share it.
	p, f := async.New[V](async.Inline)
	s.last = f
	s.pending = true
	s.mu.Unlock()

	p.Follow(s.inner.Query(ctx, key).Always(func() {
		s.mu.Lock()
		if s.last == f {
			s.pending = false
		}
		s.mu.Unlock()
	}))
	return f
}

// Pending reports whether an inner query is outstanding.
func (s *SingleFlight[K, V]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
