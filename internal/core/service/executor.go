package service

import (
	"context"
	"sync"
)

// Executor runs in-memory pipeline steps on the goroutine that owns the
// collaborators.
type Executor interface {
	Post(fn func())
}

// InlineExecutor runs work immediately on the calling goroutine. Use it when
// collaborators are safe for concurrent use, as in tests and the CLI.
type InlineExecutor struct{}

// Post runs fn.
func (InlineExecutor) Post(fn func()) { fn() }

// LoopExecutor queues work for a single-threaded game loop. The loop calls
// Tick once per frame; queued work runs there, so capture and apply never
// observe collaborators mid-mutation.
type LoopExecutor struct {
	mu    sync.Mutex
	queue []func()
}

// NewLoopExecutor creates an empty LoopExecutor.
func NewLoopExecutor() *LoopExecutor {
	return &LoopExecutor{}
}

// Post queues fn for the next Tick. Safe for concurrent use.
func (e *LoopExecutor) Post(fn func()) {
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	e.mu.Unlock()
}

// Tick runs the work queued before the call and returns how many functions
// ran. Work posted while ticking waits for the next Tick.
func (e *LoopExecutor) Tick() int {
	e.mu.Lock()
	pending := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return len(pending)
}

// Pending returns the number of queued functions.
func (e *LoopExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// runOn posts fn to ex and waits for it to finish or ctx to end. If ctx ends
// first, fn still runs later but its outcome is discarded.
func runOn(ctx context.Context, ex Executor, fn func()) error {
	done := make(chan struct{})
	ex.Post(func() {
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
