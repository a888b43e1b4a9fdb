// Package task is an in-process supervisor for background units of work.
//
// # Design highlights
//
//   - Registry: maps uuid ids to task handles; add, remove, lookup by id or name.
//   - Supervisor loop: one goroutine that scans the registry every poll interval
//     (100ms by default) and starts whatever is eligible.
//   - Keep-alive tasks: relaunched by the loop every time an execution finishes.
//   - Cooperative cancellation: each execution gets a context; Stop cancels it and the
//     unit decides when to return.
//   - Panic/error reporting: executions run under rt/safego; failures are logged (or sent
//     to handlers) and never surface to the registry's caller.
//
// # Lifecycle
//
//	r := task.NewRegistry()
//	id, _ := r.Add(task.Func(flush), task.WithName("flush"), task.WithKeepAlive(true))
//	_ = r.Start(ctx)
//	defer r.Shutdown(context.Background())
//
// Start is idempotent while the loop is running and start-once overall: after Stop
// (or Shutdown, or cancellation of the ctx given to Start) it returns ErrClosed.
// Stop only halts the loop; running tasks keep running until they finish or are stopped.
// Shutdown halts the loop, cancels every execution and waits for them.
//
// # Execution
//
// A handle has at most one live execution. Handle.Start is a no-op while an execution
// is live, and for a task that is not keep-alive it is a no-op after the first launch.
// Start and Stop on one handle serialize through the handle's lock.
//
//	NotStarted -> Running -> Completed | Canceled -> Running (keep-alive only)
//
// Completed covers both a nil return and a failure (error or panic); Status.LastOutcome
// tells them apart. Canceled is reached only through the cancellation signal.
//
// # Units and cancellation
//
// A Unit is anything with Run(ctx) error. Func adapts a plain func(); Action adapts a
// func(ctx) error. A cancellation-aware unit polls Canceled(ctx) (or selects on ctx.Done())
// and returns ErrCanceled; the execution then calls its CancelHook (see WithOnCancel)
// exactly once:
//
//	u := task.WithOnCancel(task.Action(func(ctx context.Context) error {
//		for {
//			if err := task.Canceled(ctx); err != nil {
//				return err
//			}
//			pump()
//		}
//	}), func() { log.Print("pump stopped") })
//
// StopTask returns immediately; there is no timeout. A unit that never checks its
// context keeps running and keeps reporting IsRunning == true.
//
// # Names
//
// WithName sets a display name. Without it, the name is derived from the unit: its
// String method if it has one, otherwise its type (plus address for funcs and pointers).
//
// With name uniqueness validation enabled (the default), Add rejects an explicit name that
// a registered task already uses with ErrDuplicateName. Derived names are not validated and
// may collide; ID then resolves one of the matches.
//
// # Hooks and observability
//
// WithOnRunStart/WithOnRunFinish observe every execution synchronously on its goroutine;
// keep them fast. Handle.Status and Registry.Snapshot expose state and counters for an ops
// layer (see package ops and rt/task/taskprom).
package task
