// Package background runs the registry's long-lived helper goroutines (eviction, and
// any future maintenance loop) as a small set of cancelable workers, adapted from the
// teacher's general-purpose stoppable-worker helper.
package background

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// Executor is a set of goroutines that run until Stop is called.
type Executor interface {
	// AddWorkers starts an additional goroutine per function. A no-op after Stop.
	AddWorkers(...func(context.Context))
	// Stop cancels every worker's context and waits for them to return.
	Stop()
	// Context is the cancellation context every worker observes.
	Context() context.Context
}

type executor struct {
	mu         sync.Mutex
	cancelCtx  context.Context
	cancelFunc func()
	running    sync.WaitGroup
}

// NewExecutor starts fns as goroutines under a shared cancellation context.
func NewExecutor(fns ...func(context.Context)) Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &executor{cancelCtx: ctx, cancelFunc: cancel}
	e.AddWorkers(fns...)
	return e
}

// AddWorkers implements Executor.
func (e *executor) AddWorkers(fns ...func(context.Context)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelCtx.Err() != nil {
		return
	}

	e.running.Add(len(fns))
	for _, fn := range fns {
		fn := fn
		goutils.PanicCapturingGo(func() {
			defer e.running.Done()
			fn(e.cancelCtx)
		})
	}
}

// Stop implements Executor.
func (e *executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelFunc()
	e.running.Wait()
}

// Context implements Executor.
func (e *executor) Context() context.Context {
	return e.cancelCtx
}
