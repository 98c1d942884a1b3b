package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrTimeout is the failure of a future that did not settle before its deadline.
	ErrTimeout = errors.New("async: timed out")
	// ErrPanic wraps a panic recovered from a continuation.
	ErrPanic = errors.New("async: panic in continuation")
)

// Future is a write-once result of type T or a failure. Continuations
// attached to a Future run exactly once, on the Future's Executor, after it
// settles. Futures derived through Then, Catch and friends share the
// Executor of their source.
type Future[T any] struct {
	mu        sync.Mutex
	done      bool
	value     T
	err       error
	callbacks []func()
	ready     chan struct{}
	exec      Executor
}

// Promise is the producer side of a Future. Only the first Resolve or Reject
// takes effect.
type Promise[T any] struct {
	future *Future[T]
}

// New returns a pending Promise and its Future. A nil executor means Inline.
func New[T any](exec Executor) (*Promise[T], *Future[T]) {
	if exec == nil {
		exec = Inline
	}
	f := &Future[T]{ready: make(chan struct{}), exec: exec}
	return &Promise[T]{future: f}, f
}

// Resolve fulfils the future with v. It reports whether this call settled it.
func (p *Promise[T]) Resolve(v T) bool {
	return p.future.settle(v, nil)
}

// Reject fails the future with err. It reports whether this call settled it.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	if err == nil {
		err = errors.New("async: rejected with nil error")
	}
	return p.future.settle(zero, err)
}

// Follow settles the promise with the outcome of src once src settles.
func (p *Promise[T]) Follow(src *Future[T]) {
	forward(src, p)
}

// Future returns the consumer side of the promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Resolved returns an already fulfilled future.
func Resolved[T any](v T) *Future[T] {
	p, f := New[T](Inline)
	p.Resolve(v)
	return f
}

// Failed returns an already rejected future.
func Failed[T any](err error) *Future[T] {
	p, f := New[T](Inline)
	p.Reject(err)
	return f
}

// Go runs fn on its own goroutine and settles the returned future with its
// outcome. Continuations run on exec.
func Go[T any](exec Executor, fn func() (T, error)) *Future[T] {
	p, f := New[T](exec)
	go func() {
		v, err := protect(fn)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return f
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.value = v
	f.err = err
	cbs := f.callbacks
	f.callbacks = nil
	close(f.ready)
	f.mu.Unlock()

	for _, cb := range cbs {
		f.exec.Execute(cb)
	}
	return true
}

// subscribe schedules cb once the future settles, or right away if it
// already has.
func (f *Future[T]) subscribe(cb func()) {
	f.mu.Lock()
	if !f.done {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.exec.Execute(cb)
}

// result must only be called after the future settled.
func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Done reports whether the future has settled.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Ready is closed once the future settles.
func (f *Future[T]) Ready() <-chan struct{} {
	return f.ready
}

// Await blocks until the future settles or ctx is done. Giving up on ctx
// does not affect the future.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.ready:
		return f.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) derive() (*Promise[T], *Future[T]) {
	return New[T](f.exec)
}

// Then chains fn after a successful f. A failure of f skips fn and is
// forwarded unchanged.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p, next := New[U](f.exec)
	f.subscribe(func() {
		v, err := f.result()
		if err != nil {
			p.Reject(err)
			return
		}
		u, err := protect(func() (U, error) { return fn(v) })
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(u)
	})
	return next
}

// ThenFuture chains an asynchronous continuation after a successful f.
func ThenFuture[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	p, next := New[U](f.exec)
	f.subscribe(func() {
		v, err := f.result()
		if err != nil {
			p.Reject(err)
			return
		}
		inner, err := protect(func() (*Future[U], error) { return fn(v), nil })
		if err != nil {
			p.Reject(err)
			return
		}
		forward(inner, p)
	})
	return next
}

// Catch handles a failure of f. The handler may recover by returning a value
// with a nil error, or fail again. Successes pass through untouched.
func (f *Future[T]) Catch(fn func(error) (T, error)) *Future[T] {
	p, next := f.derive()
	f.subscribe(func() {
		v, err := f.result()
		if err == nil {
			p.Resolve(v)
			return
		}
		v, err = protect(func() (T, error) { return fn(err) })
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	})
	return next
}

// OnError runs fn with the failure of f, if any, and passes the outcome on.
func (f *Future[T]) OnError(fn func(error)) *Future[T] {
	return f.Catch(func(err error) (T, error) {
		fn(err)
		var zero T
		return zero, err
	})
}

// Always runs fn once f settles, whatever the outcome. The returned future
// settles with f's outcome after fn has returned, or fails with ErrPanic if
// fn panics.
func (f *Future[T]) Always(fn func()) *Future[T] {
	p, next := f.derive()
	f.subscribe(func() {
		_, err := protect(func() (struct{}, error) {
			fn()
			return struct{}{}, nil
		})
		if err != nil {
			p.Reject(err)
			return
		}
		forwardSettled(f, p)
	})
	return next
}

// Delay postpones a successful outcome of f by d on clock. Failures are
// forwarded immediately.
func (f *Future[T]) Delay(clock clockwork.Clock, d time.Duration) *Future[T] {
	p, next := f.derive()
	f.subscribe(func() {
		v, err := f.result()
		if err != nil || d <= 0 {
			forwardSettled(f, p)
			return
		}
		clock.AfterFunc(d, func() { p.Resolve(v) })
	})
	return next
}

// Timeout fails with ErrTimeout when f has not settled within d on clock.
// The underlying work is not interrupted.
func (f *Future[T]) Timeout(clock clockwork.Clock, d time.Duration) *Future[T] {
	p, next := f.derive()
	timer := clock.AfterFunc(d, func() {
		p.Reject(fmt.Errorf("%w after %s", ErrTimeout, d))
	})
	f.subscribe(func() {
		timer.Stop()
		forwardSettled(f, p)
	})
	return next
}

// Discard drops the value of f, keeping only its outcome.
func Discard[T any](f *Future[T]) *Future[struct{}] {
	return Then(f, func(T) (struct{}, error) { return struct{}{}, nil })
}

func forward[T any](src *Future[T], dst *Promise[T]) {
	src.subscribe(func() { forwardSettled(src, dst) })
}

func forwardSettled[T any](src *Future[T], dst *Promise[T]) {
	v, err := src.result()
	if err != nil {
		dst.Reject(err)
		return
	}
	dst.Resolve(v)
}

func protect[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}
