// Package uiloop is the single cooperative timeline every render-target mutation runs on.
package uiloop

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loop is a serial executor with an unbounded FIFO. Functions posted to it never run
// concurrently with each other.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

// New returns an idle loop. Call Run (usually on its own goroutine) to start it.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post schedules fn on the loop. It never blocks and is safe from any goroutine,
// including from inside a running loop function.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Sync posts fn and waits for it to finish. It must not be called from the loop itself.
func (l *Loop) Sync(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions until ctx is cancelled. Pending functions are dropped
// once the loop stops.
func (l *Loop) Run(ctx context.Context) {
	logrus.Debug("[UI_LOOP] Started")
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		logrus.Debug("[UI_LOOP] Stopped")
	}()

	for {
		for l.Drain() > 0 {
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Drain runs everything currently queued on the calling goroutine and returns how many
// functions ran. Functions posted while draining are picked up in the same call.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(fn)
		n++
	}
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[UI_LOOP] panic in posted function: %v", r)
		}
	}()
	fn()
}
