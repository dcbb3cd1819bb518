// Package workerpool provides a bounded-concurrency executor.
//
// At most Concurrency handlers are in flight at once; further submissions
// wait in a FIFO pending list and are started as running handlers settle,
// so the pool drains itself without an external poll. A handler's error or
// panic only reaches its own Future and the Hooks; it never stops the pool
// or other in-flight work.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
)

// ErrPoolStopped is returned by futures whose handler was still pending
// when the pool was stopped.
var ErrPoolStopped = errors.New("worker pool stopped")

// Func is a unit of work executed by the pool.
type Func func() (any, error)

// Meta describes a submission to the Hooks.
type Meta struct {
	TaskID string
	Type   string
	Class  string
}

// Hooks receives lifecycle notifications. TaskStarted is called after the
// slot is claimed and before the handler starts; TaskFinished is called
// after the handler settles and before the slot is released. A hook's view
// of in-flight work therefore never exceeds the pool's running count.
// Hooks must not block or call back into the pool's Submit.
type Hooks interface {
	TaskStarted(meta Meta)
	TaskFinished(meta Meta, result any, err error)
}

// Status is a snapshot of the pool counters.
type Status struct {
	Concurrency int `json:"concurrency"`
	Running     int `json:"running"`
	Queued      int `json:"queued"`
}

type item struct {
	fn      Func
	meta    Meta
	future  *Future
	claimed bool
	started chan struct{}
}

// Pool is a bounded-concurrency executor. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	concurrency int
	running     int
	pending     []*item
	stopped     bool
	hooks       Hooks
	wg          sync.WaitGroup
}

type nopHooks struct{}

func (nopHooks) TaskStarted(Meta)              {}
func (nopHooks) TaskFinished(Meta, any, error) {}

// New creates a Pool running at most concurrency handlers at once.
// A nil hooks value disables notifications.
func New(concurrency int, hooks Hooks) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if hooks == nil {
		hooks = nopHooks{}
	}
	return &Pool{
		concurrency: concurrency,
		hooks:       hooks,
	}
}

// Submit enqueues fn and immediately attempts dispatch. The returned Future
// resolves with fn's own outcome.
func (p *Pool) Submit(fn Func, meta Meta) *Future {
	f := newFuture()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		f.resolve(nil, ErrPoolStopped)
		return f
	}
	it := &item{fn: fn, meta: meta, future: f, started: make(chan struct{})}
	p.pending = append(p.pending, it)
	p.mu.Unlock()

	p.dispatch()

	// Another goroutine's dispatch may have claimed the item; wait for its
	// TaskStarted so callers observe either a queued item or a started one.
	p.mu.Lock()
	claimed := it.claimed
	p.mu.Unlock()
	if claimed {
		<-it.started
	}
	return f
}

// dispatch starts pending items while capacity allows. Counters change under
// the lock; hooks and handlers run outside it.
func (p *Pool) dispatch() {
	for {
		p.mu.Lock()
		if p.stopped || p.running >= p.concurrency || len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		it := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]
		it.claimed = true
		p.running++
		p.wg.Add(1)
		p.mu.Unlock()

		p.hooks.TaskStarted(it.meta)
		close(it.started)
		go p.run(it)
	}
}

func (p *Pool) run(it *item) {
	defer p.wg.Done()

	var (
		result any
		err    error
		pc     panics.Catcher
	)
	pc.Try(func() { result, err = it.fn() })
	if r := pc.Recovered(); r != nil {
		result, err = nil, fmt.Errorf("task %s panicked: %w", it.meta.TaskID, r.AsError())
	}

	p.hooks.TaskFinished(it.meta, result, err)

	p.mu.Lock()
	p.running--
	p.mu.Unlock()

	it.future.resolve(result, err)
	p.dispatch()
}

// Stop prevents new dispatch. In-flight handlers run to completion; pending
// items are rejected with ErrPoolStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, it := range pending {
		it.future.resolve(nil, ErrPoolStopped)
	}
}

// Wait blocks until all in-flight handlers have settled or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetConcurrency adjusts the bound and re-attempts dispatch. Lowering the
// bound does not interrupt running handlers.
func (p *Pool) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	p.concurrency = n
	p.mu.Unlock()

	p.dispatch()
}

// Status returns the current counters.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Concurrency: p.concurrency,
		Running:     p.running,
		Queued:      len(p.pending),
	}
}
