// Package task carries the outcome of background work to a waiter through a
// single-fire result.
package task

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by Wait when the result did not arrive in time.
// The work itself keeps running.
var ErrTimeout = errors.New("timed out waiting for result")

// Result is resolved exactly once; later resolutions are ignored.
type Result[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Resolve stores the outcome and reports whether it was the first.
func (r *Result[T]) Resolve(value T, err error) bool {
	first := false
	r.once.Do(func() {
		r.value, r.err = value, err
		close(r.done)
		first = true
	})
	return first
}

// Done is closed once the result is resolved.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the result is resolved, ctx is done or timeout passes.
// A timeout abandons the watch; a non-positive timeout waits on ctx alone.
func (r *Result[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var zero T
	select {
	case <-r.done:
		return r.value, r.err
	case <-expired:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Go runs fn in its own goroutine and resolves the returned result with its
// outcome. fn runs on a context that is not cancelled with ctx, so it
// finishes even when nobody waits for it anymore.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Result[T] {
	r := NewResult[T]()
	work := context.WithoutCancel(ctx)
	go func() {
		v, err := fn(work)
		r.Resolve(v, err)
	}()
	return r
}
