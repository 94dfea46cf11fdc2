// Package async models blocking work as futures completed on an executor.
//
// A Future completes exactly once, with a value or an error. Callbacks
// registered with OnComplete run on the goroutine that completes the future, or
// immediately on the caller's goroutine if it has already completed.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrRejected is the failure of a future whose task the executor refused.
	ErrRejected = errors.New("async: executor rejected task")
	// ErrPending is returned by Result while the future has not completed.
	ErrPending = errors.New("async: future not completed")
)

// Executor runs tasks asynchronously. It returns false when it no longer
// accepts work.
type Executor interface {
	Submit(task func()) bool
}

// Future is the read side of an asynchronous result.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	callbacks []func(T, error)
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	future *Future[T]
}

// NewPromise returns an incomplete promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{future: &Future[T]{done: make(chan struct{})}}
}

// Future returns the future completed by this promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Complete succeeds the future with value. It reports false if the future was
// already completed.
func (p *Promise[T]) Complete(value T) bool {
	return p.future.complete(value, nil)
}

// Fail fails the future with err. A nil err is replaced so a failed future
// always carries an error.
func (p *Promise[T]) Fail(err error) bool {
	if err == nil {
		err = errors.New("async: failed without cause")
	}
	var zero T
	return p.future.complete(zero, err)
}

// Resolve completes with value when err is nil, otherwise fails.
func (p *Promise[T]) Resolve(value T, err error) bool {
	if err != nil {
		return p.Fail(err)
	}
	return p.Complete(value)
}

// Succeeded returns a completed future.
func Succeeded[T any](value T) *Future[T] {
	p := NewPromise[T]()
	p.Complete(value)
	return p.future
}

// Failed returns a failed future.
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Fail(err)
	return p.future
}

func (f *Future[T]) complete(value T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
	return true
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome without blocking, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.completed {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete registers cb to run once with the outcome.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	cb(value, err)
}

// Execute runs fn on exec and returns its outcome as a future. A panic in fn
// fails the future instead of leaving it pending.
func Execute[T any](exec Executor, fn func() (T, error)) *Future[T] {
	p := NewPromise[T]()
	ok := exec.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.Fail(fmt.Errorf("async: task panicked: %v", r))
			}
		}()
		p.Resolve(fn())
	})
	if !ok {
		p.Fail(ErrRejected)
	}
	return p.future
}

// Run is Execute for tasks without a result.
func Run(exec Executor, fn func() error) *Future[struct{}] {
	return Execute(exec, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

// Map derives a future by applying fn to a successful outcome.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p := NewPromise[U]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			p.Fail(err)
			return
		}
		p.Resolve(fn(value))
	})
	return p.future
}
