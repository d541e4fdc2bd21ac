// Package ctlloop runs closures one at a time on a single goroutine. State
// owned by the loop is only touched from inside those closures, so it needs
// no locks.
package ctlloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned once the loop no longer runs closures.
var ErrStopped = errors.New("ctlloop: stopped")

type Loop struct {
	queue     chan func()
	stop      chan struct{}
	exited    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func New() *Loop {
	return &Loop{
		queue:  make(chan func(), 256),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Start launches the loop goroutine. Further calls are no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() { go l.run() })
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.stop:
			return
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop ends the loop after the closure currently running. Queued closures are
// dropped and blocked Do callers get ErrStopped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	l.startOnce.Do(func() { close(l.exited) })
	<-l.exited
}

// Post queues fn without waiting for it. It reports false once stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stop:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.stop:
		return false
	}
}

// Do runs fn on the loop and waits for it. It must not be called from loop
// closures.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case l.queue <- wrapped:
	case <-l.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stop:
		// fn may still be running; wait for the loop to exit so fn is either
		// finished or never started.
		<-l.exited
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		// The closure stays queued and runs later; the caller stops waiting.
		return ctx.Err()
	}
}

// Call runs fn on l and returns its results.
func Call[T any](ctx context.Context, l *Loop, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if doErr := l.Do(ctx, func() { out, err = fn() }); doErr != nil {
		var zero T
		return zero, doErr
	}
	return out, err
}
