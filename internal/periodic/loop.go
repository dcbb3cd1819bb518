// Package periodic runs a function on a fixed interval until stopped.
//
// A Loop owns its goroutine: Start launches it, Stop cancels it and blocks
// until the goroutine has exited, so shutdown is deterministic. Each run is
// guarded so a panic is reported to the Loop's error callback instead of
// tearing down the loop.
package periodic

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Loop calls a function every Interval.
type Loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	onPanic  func(name string, err error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithPanicHandler sets the callback invoked when a run panics.
func WithPanicHandler(fn func(name string, err error)) Option {
	return func(l *Loop) { l.onPanic = fn }
}

// New creates a Loop. It does nothing until Start is called.
func New(name string, interval time.Duration, fn func(ctx context.Context), opts ...Option) *Loop {
	l := &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
		onPanic:  func(string, error) {},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the loop's name.
func (l *Loop) Name() string { return l.name }

// Start launches the loop goroutine. Calling Start on a running loop is a
// no-op. A zero or negative interval starts nothing.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil || l.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.stopped = make(chan struct{})
	go l.run(ctx, l.stopped)
}

// Running reports whether the loop has been started and not stopped.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Stop cancels the loop and waits for its goroutine to exit. It is safe to
// call Stop on a loop that was never started.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, stopped := l.cancel, l.stopped
	l.cancel, l.stopped = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (l *Loop) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce executes one iteration synchronously, recovering panics.
func (l *Loop) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.onPanic(l.name, fmt.Errorf("%s loop panicked: %v", l.name, r))
		}
	}()
	l.fn(ctx)
}
