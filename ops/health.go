package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evan-idocoding/zsup/rt/task"
)

type healthConfig struct {
	format Format
}

// HealthOption configures HealthzHandler / ReadyzHandler.
type HealthOption func(*healthConfig)

// WithHealthDefaultFormat sets the default response format for health handlers.
// ?format=text|json|yaml overrides it per request. Default is FormatText.
func WithHealthDefaultFormat(f Format) HealthOption {
	return func(c *healthConfig) { c.format = f }
}

func applyHealthOptions(opts []HealthOption) healthConfig {
	cfg := healthConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.format.valid() {
		cfg.format = FormatText
	}
	return cfg
}

type healthResponse struct {
	OK    bool   `json:"ok" yaml:"ok"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// HealthzHandler returns a liveness handler: 200 "ok" for GET/HEAD, 405 otherwise.
func HealthzHandler(opts ...HealthOption) http.Handler {
	cfg := applyHealthOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		resp := healthResponse{OK: true}
		code := http.StatusOK
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, "GET, HEAD")
			resp = healthResponse{Error: "method not allowed"}
			code = http.StatusMethodNotAllowed
		}
		writeFormatted(w, r, format, code, resp, resp.OK, resp.Error, func() string { return "ok\n" })
	})
}

// ReadyCheckFunc returns nil when healthy. It should be fast and respect ctx.
type ReadyCheckFunc func(context.Context) error

// ReadyCheck is a named readiness check.
type ReadyCheck struct {
	Name    string
	Func    ReadyCheckFunc
	Timeout time.Duration // <= 0 means no extra timeout
}

// ReadyCheckResult is a single check execution result.
type ReadyCheckResult struct {
	Name     string        `json:"name" yaml:"name"`
	OK       bool          `json:"ok" yaml:"ok"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
}

// ReadyzReport is a point-in-time readiness report.
type ReadyzReport struct {
	OK       bool               `json:"ok" yaml:"ok"`
	Duration time.Duration      `json:"duration" yaml:"duration"`
	Checks   []ReadyCheckResult `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// errSupervisorDown is reported by SupervisorCheck.
var errSupervisorDown = errors.New("supervisor loop not running")

// SupervisorCheck is a ReadyCheck that fails while reg's supervisor loop is not running.
func SupervisorCheck(reg *task.Registry) ReadyCheck {
	if reg == nil {
		panic("ops: nil task.Registry")
	}
	return ReadyCheck{
		Name: "supervisor",
		Func: func(context.Context) error {
			if !reg.Supervising() {
				return errSupervisorDown
			}
			return nil
		},
	}
}

// ReadyzHandler returns a readiness handler that runs checks sequentially.
//
// 200 if all checks pass, 503 if any fails or times out. GET/HEAD only.
// It panics on a check without Name or Func.
func ReadyzHandler(checks []ReadyCheck, opts ...HealthOption) http.Handler {
	for i, c := range checks {
		if c.Name == "" {
			panic(fmt.Sprintf("ops: ready check[%d] has empty Name", i))
		}
		if c.Func == nil {
			panic(fmt.Sprintf("ops: ready check[%d] %q has nil Func", i, c.Name))
		}
	}
	cfg := applyHealthOptions(opts)
	checks = append([]ReadyCheck(nil), checks...)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, "GET, HEAD")
			rep := ReadyzReport{Checks: []ReadyCheckResult{{Name: "method", Error: "method not allowed"}}}
			writeReady(w, r, format, http.StatusMethodNotAllowed, rep)
			return
		}
		rep := RunReadyzChecks(r.Context(), checks)
		code := http.StatusOK
		if !rep.OK {
			code = http.StatusServiceUnavailable
		}
		writeReady(w, r, format, code, rep)
	})
}

// RunReadyzChecks executes checks sequentially and returns a report.
func RunReadyzChecks(ctx context.Context, checks []ReadyCheck) ReadyzReport {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	rep := ReadyzReport{OK: true, Checks: make([]ReadyCheckResult, 0, len(checks))}
	for _, c := range checks {
		cr := runOneCheck(ctx, c)
		rep.OK = rep.OK && cr.OK
		rep.Checks = append(rep.Checks, cr)
	}
	rep.Duration = time.Since(start)
	return rep
}

// runOneCheck turns a panic or a deadline into a failed result.
func runOneCheck(parent context.Context, c ReadyCheck) (cr ReadyCheckResult) {
	cr.Name = c.Name
	start := time.Now()
	ctx, cancel := parent, context.CancelFunc(func() {})
	if c.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, c.Timeout)
	}
	defer cancel()

	defer func() {
		cr.Duration = time.Since(start)
		if p := recover(); p != nil {
			cr.OK = false
			cr.Error = fmt.Sprintf("panic: %v", p)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cr.OK = false
			cr.TimedOut = true
			if cr.Error == "" {
				cr.Error = "timeout"
			}
		}
	}()

	if err := c.Func(ctx); err != nil {
		cr.Error = err.Error()
		return cr
	}
	cr.OK = true
	return cr
}

func writeReady(w http.ResponseWriter, r *http.Request, f Format, code int, rep ReadyzReport) {
	// Text: "ok" when ready, otherwise one "fail <check>[: <error>]" line per failed check.
	if f == FormatText && !rep.OK {
		writeFormatted(w, r, f, code, rep, true, "", func() string {
			var b strings.Builder
			for _, c := range rep.Checks {
				if c.OK {
					continue
				}
				b.WriteString("fail ")
				b.WriteString(escapeTextField(c.Name))
				if c.Error != "" {
					b.WriteString(": ")
					b.WriteString(escapeTextField(c.Error))
				}
				b.WriteByte('\n')
			}
			return b.String()
		})
		return
	}
	writeFormatted(w, r, f, code, rep, true, "", func() string { return "ok\n" })
}
