package zsup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/evan-idocoding/zsup/rt/safego"
	"github.com/evan-idocoding/zsup/rt/task"
	"github.com/evan-idocoding/zsup/rt/task/taskprom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// ErrAlreadyStarted indicates Start/Run was called more than once.
	ErrAlreadyStarted = errors.New("zsup: service already started")
	// ErrNotStarted indicates Wait was called before Start.
	ErrNotStarted = errors.New("zsup: service not started")
)

// DefaultShutdownTimeout bounds Shutdown when Spec.ShutdownTimeout is <= 0.
const DefaultShutdownTimeout = 10 * time.Second

// Service runs a task registry and, optionally, its ops HTTP server.
type Service struct {
	// Registry is the supervised task registry. Register tasks before or after Start.
	Registry *task.Registry
	// OpsServer is nil when Spec.Ops is nil.
	OpsServer *http.Server
	// OpsHandler is the ops router mounted on OpsServer; nil when Spec.Ops is nil.
	OpsHandler http.Handler
	// Metrics is nil when the registry was supplied by the caller or metrics are disabled.
	Metrics *taskprom.Collector

	logger          *slog.Logger
	hooks           Hooks
	signals         SignalSpec
	shutdownTimeout time.Duration

	mu        sync.Mutex
	started   bool
	startCtx  context.Context
	startStop context.CancelFunc
	stopping  bool
	listener  net.Listener

	primaryErr error

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	shutdownErr  error

	doneCh  chan struct{}
	waitErr error
}

// Spec describes a Service.
type Spec struct {
	// Registry is used as-is when non-nil. Otherwise a registry is built from
	// RegistryOptions (plus metrics hooks when ops metrics are enabled).
	Registry        *task.Registry
	RegistryOptions []task.RegistryOption

	// Ops enables the ops HTTP server. nil means worker-only.
	Ops *OpsSpec

	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// LogLevelVar, when set, is exposed on the ops server at /log/level.
	LogLevelVar *slog.LevelVar

	// Signals controls whether Run listens for OS signals.
	// Default: SIGINT + SIGTERM on Unix, os.Interrupt elsewhere.
	Signals SignalSpec

	// ShutdownTimeout bounds the whole shutdown; <= 0 means DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	Hooks Hooks
}

// SignalSpec selects the signals Run reacts to.
type SignalSpec struct {
	Disable bool
	Signals []os.Signal // nil/empty means the default set
}

// Hooks integrate caller resources into the service lifecycle.
type Hooks struct {
	// OnStart runs sequentially before the registry starts; any error fails Start.
	OnStart []func(context.Context) error
	// OnShutdown runs sequentially after tasks have stopped; errors are joined.
	OnShutdown []func(context.Context) error
}

// NewService assembles a Service. Assembly errors panic; runtime errors are returned
// from Start/Wait/Run/Shutdown.
func NewService(spec Spec) *Service {
	lg := spec.Logger
	if lg == nil {
		lg = slog.Default()
	}
	s := &Service{
		logger:          lg,
		hooks:           spec.Hooks,
		signals:         spec.Signals,
		shutdownTimeout: resolveDuration(spec.ShutdownTimeout, DefaultShutdownTimeout),
		shutdownCh:      make(chan struct{}),
		doneCh:          make(chan struct{}),
	}

	var (
		reg      prometheus.Registerer
		gatherer prometheus.Gatherer
	)
	if spec.Ops != nil && !spec.Ops.DisableMetrics {
		reg, gatherer = spec.Ops.Registerer, spec.Ops.Gatherer
		if (reg == nil) != (gatherer == nil) {
			panic("zsup: Spec.Ops: Registerer and Gatherer must be set together")
		}
		if reg == nil {
			pr := prometheus.NewRegistry()
			pr.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			reg, gatherer = pr, pr
		}
	}

	s.Registry = spec.Registry
	if s.Registry == nil {
		opts := append([]task.RegistryOption{task.WithLogger(lg)}, spec.RegistryOptions...)
		if reg != nil {
			s.Metrics = taskprom.New(reg)
			opts = append(opts, s.Metrics.RegistryOptions()...)
		}
		s.Registry = task.NewRegistry(opts...)
	} else if len(spec.RegistryOptions) > 0 {
		panic("zsup: Spec.RegistryOptions conflicts with Spec.Registry")
	}
	if reg != nil {
		taskprom.NewTaskCountGauge(reg, s.Registry)
	}

	if spec.Ops != nil {
		addr := strings.TrimSpace(spec.Ops.Addr)
		if addr == "" {
			panic("zsup: Spec.Ops: empty Addr")
		}
		s.OpsHandler = newOpsRouter(s.Registry, *spec.Ops, spec.LogLevelVar, gatherer, lg)
		s.OpsServer = &http.Server{
			Addr:              addr,
			Handler:           s.OpsHandler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			IdleTimeout:       defaultIdleTimeout,
			ErrorLog:          slog.NewLogLogger(lg.Handler(), slog.LevelWarn),
		}
	}
	return s
}

// Run is Start, then wait for ctx, a signal or a fatal server error, then Shutdown.
//
// It is not idempotent: after Start it returns ErrAlreadyStarted.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Start(ctx); err != nil {
		return err
	}

	sigCh, stopSignals := s.signalWatcher()
	defer stopSignals()

	select {
	case <-s.doneCh:
	case <-ctx.Done():
		s.logger.Info("zsup: context done, shutting down")
		_ = s.Shutdown(context.Background())
	case sig := <-sigCh:
		s.logger.Info("zsup: signal received, shutting down", "signal", sig.String())
		_ = s.Shutdown(context.Background())
	}
	return s.Wait()
}

// Start runs OnStart hooks, starts the supervisor loop and binds the ops server.
// It is not idempotent. On failure the service shuts itself down.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.startCtx, s.startStop = context.WithCancel(ctx)
	s.mu.Unlock()

	fail := func(err error) error {
		s.recordPrimary(err)
		s.initiateShutdown()
		return err
	}

	for i, h := range s.hooks.OnStart {
		if h == nil {
			continue
		}
		if err := safeCallHook(s.startCtx, h); err != nil {
			return fail(fmt.Errorf("zsup: OnStart[%d]: %w", i, err))
		}
	}
	// Canceling ctx stops the loop; tasks keep running until Shutdown.
	if err := s.Registry.Start(s.startCtx); err != nil {
		return fail(fmt.Errorf("zsup: start supervisor: %w", err))
	}
	if s.OpsServer != nil {
		if err := s.startOpsServer(); err != nil {
			return fail(err)
		}
	}
	s.logger.Info("zsup: started", "ops_addr", s.OpsAddr())
	return nil
}

// OpsAddr returns the bound ops address, or "" before Start or without ops.
func (s *Service) OpsAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Wait blocks until the service has fully stopped and returns the first runtime error
// joined with shutdown errors. It returns ErrNotStarted before Start.
func (s *Service) Wait() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitErr
}

// Shutdown triggers shutdown and waits for it or ctx. It is idempotent and returns
// nil before Start. Calling it again waits again with the new ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.initiateShutdown()

	select {
	case <-s.shutdownCh:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.shutdownErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) startOpsServer() error {
	ln, err := net.Listen("tcp", s.OpsServer.Addr)
	if err != nil {
		return fmt.Errorf("zsup: ops server listen %q: %w", s.OpsServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	safego.Go(s.startCtx, func(context.Context) {
		s.onServeExit(s.OpsServer.Serve(ln))
	}, safego.WithName("zsup: ops server"), safego.WithLogger(s.logger))
	return nil
}

func (s *Service) onServeExit(err error) {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return
	}
	s.logger.Error("zsup: ops server failed", "err", err)
	s.recordPrimary(fmt.Errorf("zsup: ops server: %w", err))
	s.initiateShutdown()
}

func (s *Service) recordPrimary(err error) {
	s.mu.Lock()
	if s.primaryErr == nil {
		s.primaryErr = err
	}
	s.mu.Unlock()
}

func (s *Service) initiateShutdown() {
	s.shutdownOnce.Do(func() { go s.doShutdown() })
}

// doShutdown stops the ops server first so no new stop requests arrive, then the
// registry, then OnShutdown hooks.
func (s *Service) doShutdown() {
	s.mu.Lock()
	s.stopping = true
	stop := s.startStop
	ln := s.listener
	s.mu.Unlock()
	if stop != nil {
		stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error
	if ln != nil {
		if err := s.OpsServer.Shutdown(ctx); err != nil {
			_ = s.OpsServer.Close()
			errs = append(errs, fmt.Errorf("ops server shutdown: %w", err))
		}
		_ = ln.Close()
	}
	if err := s.Registry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tasks shutdown: %w", err))
	}
	for i, h := range s.hooks.OnShutdown {
		if h == nil {
			continue
		}
		if err := safeCallHook(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("OnShutdown[%d]: %w", i, err))
		}
	}

	shutdownErr := errors.Join(errs...)
	if shutdownErr != nil {
		s.logger.Warn("zsup: shutdown finished with errors", "err", shutdownErr)
	} else {
		s.logger.Info("zsup: stopped")
	}

	s.mu.Lock()
	s.shutdownErr = shutdownErr
	s.waitErr = errors.Join(s.primaryErr, shutdownErr)
	s.mu.Unlock()

	close(s.shutdownCh)
	close(s.doneCh)
}

func (s *Service) signalWatcher() (<-chan os.Signal, func()) {
	if s.signals.Disable {
		return nil, func() {}
	}
	sigs := s.signals.Signals
	if len(sigs) == 0 {
		sigs = defaultSignals()
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	return ch, func() { signal.Stop(ch) }
}

func resolveDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func safeCallHook(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)
