// Package oneshot provides a completion value that is delivered exactly once.
package oneshot

import (
	"context"
	"sync"
)

// Once holds a value that is resolved at most once. Any number of goroutines
// may wait on it; all of them observe the same value.
type Once[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

func New[T any]() *Once[T] {
	return &Once[T]{done: make(chan struct{})}
}

// Resolve stores v and releases all waiters. Only the first call has an
// effect; it reports whether this call was the one that resolved.
func (o *Once[T]) Resolve(v T) bool {
	resolved := false
	o.once.Do(func() {
		o.value = v
		close(o.done)
		resolved = true
	})
	return resolved
}

func (o *Once[T]) Done() <-chan struct{} {
	return o.done
}

// Value returns the resolved value and true, or the zero value and false when
// Resolve has not been called yet.
func (o *Once[T]) Value() (T, bool) {
	select {
	case <-o.done:
		return o.value, true
	default:
		var zero T
		return zero, false
	}
}

func (o *Once[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-o.done:
		return o.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
