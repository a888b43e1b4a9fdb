package task

import (
	"context"
	"errors"
)

// Unit is a unit of work registered to a Registry.
//
// ctx is the cancellation token of one execution. It is canceled when the task is
// stopped (StopTask, Handle.Stop, Remove) or the registry shuts down. Cancellation is
// cooperative: a unit that never looks at ctx keeps running.
//
// Returning ErrCanceled (typically via Canceled) marks the execution as canceled and
// invokes the unit's CancelHook, if any. Any other non-nil error is reported through
// the registry's error handler; the caller of Add never sees it.
type Unit interface {
	Run(ctx context.Context) error
}

// Func adapts a plain action that cannot observe cancellation.
type Func func()

// Run calls f.
func (f Func) Run(context.Context) error {
	f()
	return nil
}

// Action adapts a cancellation-aware function.
type Action func(ctx context.Context) error

// Run calls f(ctx).
func (f Action) Run(ctx context.Context) error {
	return f(ctx)
}

// CancelHook is implemented by units that want a notification when an execution
// ends with the cancellation signal.
type CancelHook interface {
	OnCancel()
}

// WithOnCancel returns a unit that runs u and calls fn when an execution of u is canceled.
// The returned unit keeps u's derived name.
func WithOnCancel(u Unit, fn func()) Unit {
	if u == nil {
		panic("task: WithOnCancel called with nil Unit")
	}
	return hookedUnit{unit: u, onCancel: fn}
}

type hookedUnit struct {
	unit     Unit
	onCancel func()
}

func (h hookedUnit) Run(ctx context.Context) error { return h.unit.Run(ctx) }

func (h hookedUnit) OnCancel() {
	if h.onCancel != nil {
		h.onCancel()
	}
}

func (h hookedUnit) String() string { return deriveName(h.unit) }

// Canceled returns ErrCanceled once ctx was canceled, nil otherwise.
//
// It is the poll a unit calls in its loop:
//
//	for {
//		if err := task.Canceled(ctx); err != nil {
//			return err
//		}
//		step()
//	}
func Canceled(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCanceled
	}
	return nil
}

// invoke runs u once and classifies the result. A canceled outcome has already
// dispatched the cancel hook.
func invoke(ctx context.Context, u Unit) (Outcome, error) {
	err := u.Run(ctx)
	if err == nil {
		return OutcomeCompleted, nil
	}
	if isCancelSignal(ctx, err) {
		if h, ok := u.(CancelHook); ok {
			h.OnCancel()
		}
		return OutcomeCanceled, nil
	}
	return OutcomeFailed, err
}

// context.Canceled counts as the signal only when this execution's token fired;
// a unit leaking some other context's cancellation is a plain failure.
func isCancelSignal(ctx context.Context, err error) bool {
	if errors.Is(err, ErrCanceled) {
		return true
	}
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}
