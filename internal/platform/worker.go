package platform

import (
	"context"
	"runtime"
)

// staWorker serialises calls onto a single dedicated OS thread, for
// platform accessibility APIs that require single-threaded-apartment
// semantics (Windows UI Automation, and Win32 generally). Public Engine
// methods are safe to call from any goroutine; they submit a closure here
// and block on its result (spec §4.2 thread model, §9 "coroutine-style
// async" redesigned as a uniform worker-thread submission queue).
type staWorker struct {
	submit chan func()
	done   chan struct{}
}

// newSTAWorker starts the dedicated thread and locks it for the lifetime of
// the worker, matching the COM apartment-threading requirement that every
// call into a given automation instance happen from the same OS thread.
func newSTAWorker() *staWorker {
	w := &staWorker{
		submit: make(chan func()),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *staWorker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case fn, ok := <-w.submit:
			if !ok {
				close(w.done)
				return
			}
			fn()
		}
	}
}

// Do runs fn on the worker thread and waits for it to finish, or for ctx to
// be cancelled first (in which case fn may still run to completion in the
// background; the worker never abandons a submitted call mid-flight).
func (w *staWorker) Do(ctx context.Context, fn func() error) error {
	resultCh := make(chan error, 1)
	wrapped := func() { resultCh <- fn() }

	select {
	case w.submit <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return context.Canceled
	}

	select {
	case err := <-resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work. In-flight calls are allowed to finish.
func (w *staWorker) Close() error {
	close(w.submit)
	return nil
}
