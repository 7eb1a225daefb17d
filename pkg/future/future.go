// Package future implements a small cancellable, progress-reporting future used for
// fetches and render completions.
package future

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrCancelled is the rejection reason of a future cancelled by its owner.
var ErrCancelled = errors.New("operation cancelled")

// Progress is a loaded/total pair. Total is zero when unknown.
type Progress struct {
	Loaded int64 `json:"loaded"`
	Total  int64 `json:"total"`
}

// Percent returns the completion percentage, or -1 when the total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	pct := float64(p.Loaded) * 100 / float64(p.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Future settles exactly once with a value or an error.
type Future[T any] struct {
	id   string
	done chan struct{}

	mu         sync.Mutex
	value      T
	err        error
	settled    bool
	cancel     context.CancelFunc
	onCancel   func()
	progress   Progress
	progressFn []func(Progress)
}

// New returns a pending future with no cancel hook.
func New[T any]() *Future[T] {
	return &Future[T]{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

// WithCancel returns a pending future and a context that is cancelled when the future is
// cancelled or settled. The producer should pass the context to its blocking work.
func WithCancel[T any](parent context.Context) (*Future[T], context.Context) {
	ctx, cancel := context.WithCancel(parent)
	f := New[T]()
	f.cancel = cancel
	return f, ctx
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// ID identifies the future in logs and progress broadcasts.
func (f *Future[T]) ID() string { return f.id }

// Resolve settles the future with v. It returns false if it was already settled.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(v, nil)
}

// Reject settles the future with err. It returns false if it was already settled.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	if err == nil {
		err = errors.New("future rejected with nil error")
	}
	return f.settle(zero, err)
}

// Cancel rejects a pending future with ErrCancelled and cancels the producer context.
func (f *Future[T]) Cancel() {
	var zero T
	if f.settle(zero, ErrCancelled) && f.onCancel != nil {
		f.onCancel()
	}
}

// Mirror returns a future that follows src: it relays progress and settles with the
// outcome of src. Cancelling the mirror settles only the mirror and then calls onCancel,
// which may be nil. src is never cancelled by its mirrors.
func Mirror[T any](src *Future[T], onCancel func()) *Future[T] {
	m := New[T]()
	m.onCancel = onCancel
	src.OnProgress(m.Notify)
	src.Then(func(v T, err error) { m.settle(v, err) })
	return m
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.value, f.err, f.settled = v, err, true
	cancel := f.cancel
	f.progressFn = nil
	f.mu.Unlock()

	close(f.done)
	if cancel != nil {
		cancel()
	}
	return true
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error. It must only be called after Done is closed.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Err returns the rejection reason of a settled future, nil otherwise.
func (f *Future[T]) Err() error {
	if !f.Settled() {
		return nil
	}
	_, err := f.Result()
	return err
}

// Wait blocks until the future settles or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then runs fn with the outcome once the future settles. fn runs on its own goroutine,
// callers that mutate UI state must hop back to the UI timeline themselves.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.Result())
	}()
}

// Notify publishes a progress update to every subscriber of a pending future.
func (f *Future[T]) Notify(p Progress) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.progress = p
	fns := append([]func(Progress){}, f.progressFn...)
	f.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// OnProgress subscribes fn to progress updates. The last known progress is replayed.
func (f *Future[T]) OnProgress(fn func(Progress)) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.progressFn = append(f.progressFn, fn)
	last := f.progress
	f.mu.Unlock()

	if last != (Progress{}) {
		fn(last)
	}
}

// Progress returns the last published progress.
func (f *Future[T]) Progress() Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}
