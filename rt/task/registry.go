package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/evan-idocoding/zsup/rt/safego"
)

// Registry holds registered tasks and drives them with a supervisor loop.
//
// It is safe for concurrent use. Use NewRegistry; the zero value is not usable.
type Registry struct {
	cfg    registryConfig
	logger *slog.Logger

	// mu guards tasks only; it is never held while a unit runs or a handle lock is taken.
	mu    sync.Mutex
	tasks map[uuid.UUID]*handle

	// lifeMu orders execution launches against Shutdown so that wg.Add never races wg.Wait.
	lifeMu     sync.RWMutex
	closed     bool
	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup // live executions

	loopMu     sync.Mutex
	loopState  loopState
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewRegistry creates a Registry. The supervisor loop is not started.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.pollInterval <= 0 {
		panic(fmt.Sprintf("task: WithPollInterval(%s) is invalid (must be > 0)", cfg.pollInterval))
	}
	lg := cfg.logger
	if lg == nil {
		lg = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:        cfg,
		logger:     lg,
		tasks:      make(map[uuid.UUID]*handle),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Add registers u and returns its id. The task first runs on the next supervisor tick
// (or an explicit Handle.Start).
//
// If name uniqueness validation is enabled and WithName names a task that is already
// registered, Add returns ErrDuplicateName and registers nothing. Derived names are
// never validated. After Shutdown, Add returns ErrClosed.
func (r *Registry) Add(u Unit, opts ...Option) (uuid.UUID, error) {
	if u == nil {
		panic("task: Add called with nil Unit")
	}
	var c taskConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	explicit := c.name != ""
	name := c.name
	if !explicit {
		name = deriveName(u)
	}
	if r.isClosed() {
		return uuid.Nil, ErrClosed
	}

	id := uuid.New()
	h := newHandle(r, id, name, u, c.keepAlive)

	r.mu.Lock()
	if explicit && r.cfg.validateNames {
		if _, exists := r.idLocked(name); exists {
			r.mu.Unlock()
			return uuid.Nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	r.tasks[id] = h
	r.mu.Unlock()

	r.logger.Debug("task: added", "task", name, "id", id, "keep_alive", c.keepAlive)
	return id, nil
}

// MustAdd is like Add but panics on error.
func (r *Registry) MustAdd(u Unit, opts ...Option) uuid.UUID {
	id, err := r.Add(u, opts...)
	if err != nil {
		panic(err)
	}
	return id
}

// Remove requests cancellation of the task's live execution, if any, and unregisters it.
// It reports whether the id was registered.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	h, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	h.retire()
	r.logger.Debug("task: removed", "task", h.name, "id", id)
	return true
}

// StopTask requests cancellation of the task's live execution. Unknown ids and tasks
// that are not running are ignored. It does not wait for the unit to return.
//
// A keep-alive task is relaunched by the next supervisor tick after it stops.
func (r *Registry) StopTask(id uuid.UUID) {
	h := r.lookupID(id)
	if h != nil && h.IsRunning() {
		h.Stop()
	}
}

// TaskCount returns the number of registered tasks, running or not.
func (r *Registry) TaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// IsRunning reports whether the task has a live execution. Unknown ids report false.
func (r *Registry) IsRunning(id uuid.UUID) bool {
	h := r.lookupID(id)
	return h != nil && h.IsRunning()
}

// IsRunningName is IsRunning for the task named name. Unknown names report false.
func (r *Registry) IsRunningName(name string) bool {
	id, ok := r.ID(name)
	if !ok {
		return false
	}
	return r.IsRunning(id)
}

// ID resolves a name to an id. With duplicate names (validation disabled, or derived
// names), any one of the matching ids is returned.
func (r *Registry) ID(name string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idLocked(name)
}

// Handle returns the handle registered under id.
func (r *Registry) Handle(id uuid.UUID) (Handle, bool) {
	h := r.lookupID(id)
	if h == nil {
		return nil, false
	}
	return h, true
}

// Lookup returns the handle registered under name (see ID for duplicates).
func (r *Registry) Lookup(name string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.idLocked(name)
	if !ok {
		return nil, false
	}
	return r.tasks[id], true
}

// Snapshot returns a point-in-time view of all registered tasks, sorted by name then id.
func (r *Registry) Snapshot() Snapshot {
	hs := r.handles()
	out := make([]Status, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Status())
	}
	slices.SortFunc(out, func(a, b Status) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return Snapshot{Tasks: out}
}

// Shutdown stops the supervisor loop, cancels every live execution, and waits for all
// executions to return or ctx to expire. Units that ignore cancellation keep Shutdown
// waiting until ctx expires.
//
// After Shutdown, Add and Start return ErrClosed and handles no longer start.
// Shutdown is safe to call multiple times. If ctx is nil, it is treated as context.Background().
func (r *Registry) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.closeLoop()

	r.lifeMu.Lock()
	r.closed = true
	r.lifeMu.Unlock()
	r.baseCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) isClosed() bool {
	r.lifeMu.RLock()
	defer r.lifeMu.RUnlock()
	return r.closed
}

// beginExecution reserves a slot in wg for a new execution and returns the context
// it derives from. It fails once the registry is closed.
func (r *Registry) beginExecution() (context.Context, bool) {
	r.lifeMu.RLock()
	defer r.lifeMu.RUnlock()
	if r.closed {
		return nil, false
	}
	r.wg.Add(1)
	return r.baseCtx, true
}

func (r *Registry) lookupID(id uuid.UUID) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id]
}

func (r *Registry) idLocked(name string) (uuid.UUID, bool) {
	for id, h := range r.tasks {
		if h.name == name {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (r *Registry) handles() []*handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*handle, 0, len(r.tasks))
	for _, h := range r.tasks {
		out = append(out, h)
	}
	return out
}

// Hooks are user code on the execution path; a panicking hook is contained and logged.
func (r *Registry) emitRunStart(info RunStartInfo) {
	for _, fn := range r.cfg.onRunStart {
		safego.Run(r.baseCtx, func(context.Context) { fn(info) },
			safego.WithName("task: OnRunStart hook"),
			safego.WithLogger(r.logger),
		)
	}
}

func (r *Registry) emitRunFinish(info RunFinishInfo) {
	for _, fn := range r.cfg.onRunFinish {
		safego.Run(r.baseCtx, func(context.Context) { fn(info) },
			safego.WithName("task: OnRunFinish hook"),
			safego.WithLogger(r.logger),
		)
	}
}
