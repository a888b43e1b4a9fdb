// Package safego runs functions with panic containment and error reporting.
//
// It is the execution guard used by rt/task: every task run goes through RunErr,
// so a panicking unit of work never takes the process down, and a failing one
// is always observable.
//
// safego does not return errors to its caller. Errors and panics are reported via
// handlers (if configured) or, by default, as structured records on a *slog.Logger
// (WithLogger, falling back to slog.Default()).
//
// # Synchronous vs asynchronous
//
// Go/GoErr start a new goroutine. Run/RunErr execute synchronously.
// If ctx is nil, it is treated as context.Background().
//
// # WaitGroup integration
//
// Use WithFinally to pair wg.Done with the run even when it panics:
//
//	wg.Add(1)
//	safego.GoErr(ctx, work,
//		safego.WithName("cache-refresh"),
//		safego.WithFinally(wg.Done),
//	)
//
// # Error reporting
//
// By default, context.Canceled and context.DeadlineExceeded are NOT reported because they are
// common during shutdown. Use WithReportContextCancel(true) to report them.
//
// # Panic policy
//
// RecoverAndReport (default) recovers and reports. RepanicAfterReport reports and panics again.
// RecoverOnly recovers silently.
//
// # Finalizers
//
// WithFinally functions always run (success, error, panic, repanic) in LIFO order.
// A panicking finalizer is contained and reported.
package safego
