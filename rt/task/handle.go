package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evan-idocoding/zsup/rt/safego"
)

// execution is one live run of a unit.
type execution struct {
	cancel context.CancelFunc
	done   chan struct{} // closed when the run has fully finished
}

func (e *execution) alive() bool {
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

type handle struct {
	r *Registry

	id        uuid.UUID
	name      string
	unit      Unit
	keepAlive bool

	// mu serializes Start/Stop/retire and guards everything below.
	mu sync.Mutex

	exec    *execution
	started bool
	removed bool
	state   State

	runs      uint64
	completed uint64
	failed    uint64
	panicked  uint64
	canceled  uint64

	lastStarted  time.Time
	lastFinished time.Time
	lastDuration time.Duration
	lastOutcome  Outcome
	lastError    string
}

func newHandle(r *Registry, id uuid.UUID, name string, u Unit, keepAlive bool) *handle {
	return &handle{
		r:         r,
		id:        id,
		name:      name,
		unit:      u,
		keepAlive: keepAlive,
		state:     StateNotStarted,
	}
}

func (h *handle) ID() uuid.UUID   { return h.id }
func (h *handle) Name() string    { return h.name }
func (h *handle) KeepAlive() bool { return h.keepAlive }

func (h *handle) Start() { _ = h.start() }

// start launches an execution if the task is eligible and reports whether it did.
func (h *handle) start() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removed {
		return false
	}
	if h.exec != nil && h.exec.alive() {
		return false
	}
	if h.started && !h.keepAlive {
		return false
	}
	base, ok := h.r.beginExecution()
	if !ok {
		return false
	}

	ctx, cancel := context.WithCancel(base)
	ex := &execution{cancel: cancel, done: make(chan struct{})}
	now := time.Now()

	h.exec = ex
	h.started = true
	h.state = StateRunning
	h.runs++
	h.lastStarted = now

	go h.run(ctx, ex, h.runs, now)
	return true
}

func (h *handle) IsRunning() bool {
	h.mu.Lock()
	ex := h.exec
	h.mu.Unlock()
	return ex != nil && ex.alive()
}

func (h *handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exec != nil {
		h.exec.cancel()
	}
}

// retire marks the handle removed and cancels its live execution.
func (h *handle) retire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = true
	if h.exec != nil {
		h.exec.cancel()
	}
}

func (h *handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		ID:           h.id,
		Name:         h.name,
		KeepAlive:    h.keepAlive,
		State:        h.state,
		Removed:      h.removed,
		Runs:         h.runs,
		Completed:    h.completed,
		Failed:       h.failed,
		Panicked:     h.panicked,
		Canceled:     h.canceled,
		LastStarted:  h.lastStarted,
		LastFinished: h.lastFinished,
		LastDuration: h.lastDuration,
		LastOutcome:  h.lastOutcome,
		LastError:    h.lastError,
	}
}

func (h *handle) run(ctx context.Context, ex *execution, run uint64, startedAt time.Time) {
	defer h.r.wg.Done()

	lg := h.r.logger
	if run > 1 {
		lg.Debug("task: relaunching", "task", h.name, "id", h.id, "run", run)
	}
	h.r.emitRunStart(RunStartInfo{
		ID:        h.id,
		Name:      h.name,
		KeepAlive: h.keepAlive,
		Run:       run,
		StartedAt: startedAt,
	})

	// Stays OutcomePanicked unless invoke returns.
	outcome := OutcomePanicked
	errText := "panic"
	safego.RunErr(ctx, func(ctx context.Context) error {
		o, err := invoke(ctx, h.unit)
		outcome = o
		errText = ""
		if err != nil {
			errText = err.Error()
		}
		return err
	},
		safego.WithName(h.name),
		safego.WithAttrs(slog.String("id", h.id.String()), slog.Uint64("run", run)),
		safego.WithLogger(lg),
		safego.WithErrorHandler(h.r.cfg.onError),
		safego.WithPanicHandler(h.r.cfg.onPanic),
		// Cancellation signals never reach safego; a context error here is a failure.
		safego.WithReportContextCancel(true),
	)

	finishedAt := time.Now()
	h.r.emitRunFinish(RunFinishInfo{
		ID:         h.id,
		Name:       h.name,
		KeepAlive:  h.keepAlive,
		Run:        run,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Outcome:    outcome,
		Err:        errText,
	})
	h.finish(ex, outcome, errText, finishedAt.Sub(startedAt), finishedAt)
}

func (h *handle) finish(ex *execution, outcome Outcome, errText string, d time.Duration, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch outcome {
	case OutcomeCompleted:
		h.completed++
	case OutcomeFailed:
		h.failed++
	case OutcomePanicked:
		h.panicked++
	case OutcomeCanceled:
		h.canceled++
	}
	if errText != "" {
		h.lastError = errText
	}
	h.lastOutcome = outcome
	h.lastFinished = at
	h.lastDuration = d
	if outcome == OutcomeCanceled {
		h.state = StateCanceled
	} else {
		h.state = StateCompleted
	}

	ex.cancel()
	close(ex.done)
}

func (h *handle) String() string {
	return fmt.Sprintf("task{id=%s name=%q keepAlive=%t}", h.id, h.name, h.keepAlive)
}
