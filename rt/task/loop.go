package task

import (
	"context"
	"time"
)

type loopState int

const (
	loopNotStarted loopState = iota
	loopRunning
	loopStopped
)

// Start starts the supervisor loop.
//
// While running, the loop calls Start on every registered handle once per poll interval:
// never-started tasks launch, finished keep-alive tasks relaunch, everything else is a no-op.
//
// Start is idempotent while the loop runs. The loop is start-once: after Stop, Shutdown,
// or cancellation of ctx, Start returns ErrClosed. If ctx is nil, it is treated as
// context.Background().
func (r *Registry) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.loopMu.Lock()
	defer r.loopMu.Unlock()

	switch r.loopState {
	case loopRunning:
		select {
		case <-r.loopDone:
			// ctx passed to the first Start was canceled.
			r.loopState = loopStopped
			return ErrClosed
		default:
			return nil
		}
	case loopStopped:
		return ErrClosed
	}
	if r.isClosed() {
		r.loopState = loopStopped
		return ErrClosed
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.loopCancel = cancel
	r.loopDone = make(chan struct{})
	r.loopState = loopRunning
	go r.loop(loopCtx, r.loopDone)

	r.logger.Debug("task: supervisor started", "poll_interval", r.cfg.pollInterval)
	return nil
}

// Stop stops the supervisor loop and waits for the current scan to finish; it returns
// within one poll interval. Running tasks keep running. Stop is idempotent and a no-op
// before Start.
func (r *Registry) Stop() {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	r.stopLoopLocked()
}

// Supervising reports whether the supervisor loop is running.
func (r *Registry) Supervising() bool {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	if r.loopState != loopRunning {
		return false
	}
	select {
	case <-r.loopDone:
		return false
	default:
		return true
	}
}

// closeLoop stops the loop and forbids later Starts, even if it was never started.
func (r *Registry) closeLoop() {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	r.stopLoopLocked()
	r.loopState = loopStopped
}

func (r *Registry) stopLoopLocked() {
	if r.loopState != loopRunning {
		return
	}
	r.loopCancel()
	<-r.loopDone
	r.loopState = loopStopped
	r.logger.Debug("task: supervisor stopped")
}

func (r *Registry) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(r.cfg.pollInterval)
	defer t.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		r.scan()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// scan works on a copy of the task set; tasks added or removed meanwhile are
// picked up (or skipped) by the next tick.
func (r *Registry) scan() {
	for _, h := range r.handles() {
		h.start()
	}
}
