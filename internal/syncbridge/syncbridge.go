// Package syncbridge runs asynchronous operations from blocking call sites.
//
// An operation started with Go delivers its completion through the
// Dispatcher found in its context, the way a continuation resumes on the
// event loop that started it. Blocking on such a future from the
// dispatcher's own goroutine can never complete. RunSync avoids that by
// starting the operation on a separate goroutine whose context carries no
// dispatcher and waiting only for that goroutine.
package syncbridge

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// Dispatcher runs callbacks on a single goroutine it owns.
type Dispatcher interface {
	// Post schedules fn. It must not run fn on the calling goroutine.
	Post(fn func())
}

type dispatcherKey struct{}

// WithDispatcher returns a context whose asynchronous completions are posted
// to d. A nil d removes any dispatcher.
func WithDispatcher(ctx context.Context, d Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

// DispatcherFrom returns the dispatcher carried by ctx, or nil.
func DispatcherFrom(ctx context.Context) Dispatcher {
	d, _ := ctx.Value(dispatcherKey{}).(Dispatcher)

	return d
}

// Future is the pending result of an operation started with Go.
type Future[T any] struct {
	done chan struct{}
	once sync.Once

	value      T
	err        error
	panicked   bool
	panicValue any
}

var _ wfm.Future[int] = (*Future[int])(nil)

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done implements wfm.Future.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await implements wfm.Future. A panic raised by the operation is raised
// again here with its original value.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}

	if f.panicked {
		panic(f.panicValue)
	}

	return f.value, f.err
}

func (f *Future[T]) settle(result outcome[T]) {
	f.once.Do(func() {
		f.value = result.value
		f.err = result.err
		f.panicked = result.panicked
		f.panicValue = result.panicValue
		close(f.done)
	})
}

type outcome[T any] struct {
	value      T
	err        error
	panicked   bool
	panicValue any
}

// call runs fn and captures a panic as part of the outcome.
func call[T any](fn func() (T, error)) (result outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = outcome[T]{panicked: true, panicValue: r}
		}
	}()

	result.value, result.err = fn()

	return result
}

// Go starts fn on a new goroutine. When ctx carries a Dispatcher the future
// settles on the dispatcher's goroutine; otherwise it settles as soon as fn
// returns.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	future := newFuture[T]()
	dispatcher := DispatcherFrom(ctx)

	go func() {
		result := call(func() (T, error) { return fn(ctx) })

		if dispatcher == nil {
			future.settle(result)

			return
		}

		dispatcher.Post(func() { future.settle(result) })
	}()

	return future
}

// Resolved returns a future that has already settled.
func Resolved[T any](value T, err error) *Future[T] {
	future := newFuture[T]()
	future.settle(outcome[T]{value: value, err: err})

	return future
}

// RunSync starts op on a dedicated goroutine, without the caller's
// dispatcher, and blocks until its future settles. Errors are returned
// unchanged and panics are raised again with their original value.
//
// Cancellation is left to op: RunSync waits for the future to settle even
// after ctx is done.
func RunSync[T any](ctx context.Context, op func(context.Context) wfm.Future[T]) (T, error) {
	detached := WithDispatcher(ctx, nil)
	settled := make(chan outcome[T], 1)

	go func() {
		settled <- call(func() (T, error) {
			return op(detached).Await(context.WithoutCancel(detached))
		})
	}()

	result := <-settled
	if result.panicked {
		panic(result.panicValue)
	}

	return result.value, result.err
}
