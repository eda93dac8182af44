// Package loop runs closures one at a time on a single goroutine. Workflow
// state is owned by the loop; helper goroutines post their completions back
// instead of touching that state directly.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrStopped = errors.New("loop stopped")

const defaultQueue = 64

type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func New() *Loop {
	return &Loop{
		tasks: make(chan func(), defaultQueue),
		done:  make(chan struct{}),
	}
}

// Start runs the loop on a new goroutine until ctx is cancelled.
func Start(ctx context.Context) *Loop {
	l := New()
	go l.Run(ctx)
	return l
}

// Run processes posted tasks in FIFO order until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Event loop stopped", "reason", ctx.Err())
			return
		case task := <-l.tasks:
			l.exec(task)
		}
	}
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in event loop task", "panic", r)
		}
	}()
	task()
}

// Post enqueues fn. It never runs fn inline; if the loop has stopped fn is
// dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		slog.Debug("Dropping task posted to stopped loop")
	case l.tasks <- fn:
	}
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from a task already running on the loop.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case <-l.done:
		return ErrStopped
	case l.tasks <- wrapped:
	}
	select {
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-finished:
		return nil
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
