package safego

import "log/slog"

type config struct {
	name  string
	attrs []slog.Attr

	finally []func()

	logger *slog.Logger

	onError             ErrorHandler
	reportContextCancel bool

	onPanic     PanicHandler
	panicPolicy PanicPolicy
}

// Option configures a single Go/GoErr/Run/RunErr call.
type Option func(*config)

func defaultConfig() config {
	return config{
		panicPolicy: RecoverAndReport,
	}
}

// WithName sets a human-friendly name carried by reports.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithAttrs appends structured attributes to reports (preserving order).
func WithAttrs(attrs ...slog.Attr) Option {
	return func(c *config) {
		if len(attrs) == 0 {
			return
		}
		c.attrs = append(c.attrs, attrs...)
	}
}

// WithLogger sets the logger used when no handler is configured.
// A nil logger means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithFinally registers a function to be called when execution finishes.
//
// Finalizers are executed in LIFO order (like defer).
func WithFinally(fn func()) Option {
	return func(c *config) {
		if fn == nil {
			return
		}
		c.finally = append(c.finally, fn)
	}
}

// WithErrorHandler sets the error handler. Panics in the handler are contained and logged.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) { c.onError = h }
}

// WithReportContextCancel controls whether context cancellation errors are reported.
func WithReportContextCancel(report bool) Option {
	return func(c *config) { c.reportContextCancel = report }
}

// WithPanicHandler sets the panic handler. Panics in the handler are contained and logged.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) { c.onPanic = h }
}

// WithPanicPolicy sets the panic handling policy.
func WithPanicPolicy(p PanicPolicy) Option {
	return func(c *config) { c.panicPolicy = p }
}
