package workerpool

import (
	"context"
	"sync"
)

// Future is the pending outcome of a submitted handler.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(result any, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Done is closed once the handler has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the handler settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
