package zsup

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evan-idocoding/zsup/ops"
	"github.com/evan-idocoding/zsup/rt/task"
)

// DefaultTokenHeader carries the ops token on mutating requests.
const DefaultTokenHeader = "X-Ops-Token"

// OpsSpec configures the ops HTTP server.
//
// Routes:
//
//	GET  /healthz      liveness
//	GET  /readyz       supervisor loop plus ReadyChecks
//	GET  /tasks        registry snapshot
//	POST /tasks/stop   stop one task (?id= or ?name=)
//	GET  /log/level    current level (only with Spec.LogLevelVar)
//	POST /log/level    set level
//	GET  /metrics      Prometheus exposition (unless DisableMetrics)
type OpsSpec struct {
	// Addr is required, e.g. "127.0.0.1:8089". Port 0 picks a free port; see Service.OpsAddr.
	Addr string

	// Token, when set, is required on every non-GET/HEAD request in TokenHeader.
	// Read-only routes stay open.
	Token       string
	TokenHeader string // default DefaultTokenHeader

	TaskOptions []ops.TaskOption
	ReadyChecks []ops.ReadyCheck
	Format      ops.Format // default response format; zero is text

	DisableMetrics bool
	// Registerer and Gatherer replace the service's private Prometheus registry.
	// They must be set together.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

func newOpsRouter(reg *task.Registry, spec OpsSpec, lv *slog.LevelVar, g prometheus.Gatherer, lg *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(lg))
	r.Use(middleware.Recoverer)
	if tok := strings.TrimSpace(spec.Token); tok != "" {
		hdr := strings.TrimSpace(spec.TokenHeader)
		if hdr == "" {
			hdr = DefaultTokenHeader
		}
		r.Use(tokenGuard(hdr, tok))
	}

	taskOpts := append([]ops.TaskOption{ops.WithTaskDefaultFormat(spec.Format)}, spec.TaskOptions...)
	checks := append([]ops.ReadyCheck{ops.SupervisorCheck(reg)}, spec.ReadyChecks...)
	healthOpt := ops.WithHealthDefaultFormat(spec.Format)

	// Handlers own their method checks so 405 bodies follow the requested format.
	r.Handle("/healthz", ops.HealthzHandler(healthOpt))
	r.Handle("/readyz", ops.ReadyzHandler(checks, healthOpt))
	r.Handle("/tasks", ops.TasksSnapshotHandler(reg, taskOpts...))
	r.Handle("/tasks/stop", ops.TaskStopHandler(reg, taskOpts...))
	if lv != nil {
		r.Handle("/log/level", ops.LogLevelHandler(lv, ops.WithLogLevelDefaultFormat(spec.Format)))
	}
	if g != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(lg.Handler(), slog.LevelError),
		}))
	}
	return r
}

// requestLogger logs one line per request at debug, or warn for 5xx.
func requestLogger(lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelDebug
				if status >= http.StatusInternalServerError {
					level = slog.LevelWarn
				}
				lg.LogAttrs(r.Context(), level, "zsup: ops request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// tokenGuard rejects mutating requests without the exact token. Exactly one header
// value is accepted.
func tokenGuard(header, token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			vals := r.Header.Values(header)
			if len(vals) != 1 || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(vals[0])), want) != 1 {
				w.Header().Set("Cache-Control", "no-store")
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
