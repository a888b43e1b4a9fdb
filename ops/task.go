package ops

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evan-idocoding/zsup/rt/task"
)

type taskOpsConfig struct {
	format Format

	guards []func(name string) bool
	guard  func(name string) bool
}

// TaskOption configures task ops handlers.
type TaskOption func(*taskOpsConfig)

// WithTaskDefaultFormat sets the default response format for task handlers.
// ?format=text|json|yaml overrides it per request. Default is FormatText.
func WithTaskDefaultFormat(f Format) TaskOption {
	return func(c *taskOpsConfig) { c.format = f }
}

// WithTaskNameGuard appends a name guard.
//
// Guards are combined with AND. They filter the snapshot and gate the stop handler;
// a task addressed by id is checked against its name.
func WithTaskNameGuard(fn func(name string) bool) TaskOption {
	return func(c *taskOpsConfig) {
		if fn != nil {
			c.guards = append(c.guards, fn)
		}
	}
}

// WithTaskAllowPrefixes restricts task names to the provided prefixes.
//
// With no non-empty prefix, every name is denied.
func WithTaskAllowPrefixes(prefixes ...string) TaskOption {
	var ps []string
	for _, p := range prefixes {
		if p != "" {
			ps = append(ps, p)
		}
	}
	return WithTaskNameGuard(func(name string) bool {
		for _, p := range ps {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	})
}

// WithTaskAllowNames restricts task names to an explicit set.
//
// With no non-empty name, every name is denied.
func WithTaskAllowNames(names ...string) TaskOption {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return WithTaskNameGuard(func(name string) bool {
		_, ok := set[name]
		return ok
	})
}

func applyTaskOptions(opts []TaskOption) taskOpsConfig {
	cfg := taskOpsConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.format.valid() {
		cfg.format = FormatText
	}
	if len(cfg.guards) > 0 {
		guards := cfg.guards
		cfg.guard = func(name string) bool {
			for _, g := range guards {
				if !g(name) {
					return false
				}
			}
			return true
		}
	}
	return cfg
}

func (c taskOpsConfig) allowed(name string) bool {
	return c.guard == nil || c.guard(name)
}

// TasksSnapshotHandler returns a handler that renders r.Snapshot().
//
// GET/HEAD only; other methods return 405. Tasks whose names a guard rejects are omitted.
func TasksSnapshotHandler(reg *task.Registry, opts ...TaskOption) http.Handler {
	if reg == nil {
		panic("ops: nil task.Registry")
	}
	cfg := applyTaskOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, "GET, HEAD")
			writeTasksSnapshot(w, r, format, http.StatusMethodNotAllowed, tasksSnapshotResponse{
				Error: "method not allowed",
			})
			return
		}
		writeTasksSnapshot(w, r, format, http.StatusOK, tasksSnapshotResponse{
			OK:         true,
			Supervised: reg.Supervising(),
			Tasks:      toTaskStatusSnapshots(reg.Snapshot(), cfg),
		})
	})
}

// TaskStopHandler returns a handler that asks one task to stop.
//
// Input: POST with exactly one of ?id=<uuid> or ?name=<task name>.
//
// Output:
//   - 200 if the task was running and cancellation was requested
//   - 409 if the task is not running
//   - 400 missing/ambiguous/invalid input, 403 name not allowed, 404 unknown task
//
// The handler does not wait for the unit to return; a keep-alive task is relaunched by
// the next supervisor tick.
func TaskStopHandler(reg *task.Registry, opts ...TaskOption) http.Handler {
	if reg == nil {
		panic("ops: nil task.Registry")
	}
	cfg := applyTaskOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, "POST")
			writeTaskStop(w, r, format, http.StatusMethodNotAllowed, taskStopResponse{Error: "method not allowed"})
			return
		}

		h, code, msg := resolveTask(reg, r)
		if h == nil {
			writeTaskStop(w, r, format, code, taskStopResponse{Error: msg})
			return
		}
		resp := taskStopResponse{ID: h.ID().String(), Name: h.Name()}
		if !cfg.allowed(h.Name()) {
			resp.Error = "name not allowed"
			writeTaskStop(w, r, format, http.StatusForbidden, resp)
			return
		}
		if !h.IsRunning() {
			resp.Error = "task not running"
			writeTaskStop(w, r, format, http.StatusConflict, resp)
			return
		}
		h.Stop()
		resp.OK = true
		resp.Requested = true
		writeTaskStop(w, r, format, http.StatusOK, resp)
	})
}

// resolveTask finds the task addressed by ?id= or ?name=. On failure it returns a nil
// handle, the status code and the message.
func resolveTask(reg *task.Registry, r *http.Request) (task.Handle, int, string) {
	rawID, hasID := queryValue(r, "id")
	name, hasName := queryValue(r, "name")
	rawID = strings.TrimSpace(rawID)
	name = strings.TrimSpace(name)
	switch {
	case hasID && hasName:
		return nil, http.StatusBadRequest, "give id or name, not both"
	case hasID:
		if rawID == "" {
			return nil, http.StatusBadRequest, "missing id"
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, http.StatusBadRequest, "invalid id"
		}
		h, ok := reg.Handle(id)
		if !ok {
			return nil, http.StatusNotFound, "task not found"
		}
		return h, 0, ""
	case hasName && name != "":
		h, ok := reg.Lookup(name)
		if !ok {
			return nil, http.StatusNotFound, "task not found"
		}
		return h, 0, ""
	default:
		return nil, http.StatusBadRequest, "missing id or name"
	}
}

type taskStatusSnapshot struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	KeepAlive bool   `json:"keep_alive" yaml:"keep_alive"`
	State     string `json:"state" yaml:"state"`

	Runs      uint64 `json:"runs" yaml:"runs"`
	Completed uint64 `json:"completed" yaml:"completed"`
	Failed    uint64 `json:"failed" yaml:"failed"`
	Panicked  uint64 `json:"panicked" yaml:"panicked"`
	Canceled  uint64 `json:"canceled" yaml:"canceled"`

	LastStarted  *time.Time `json:"last_started,omitempty" yaml:"last_started,omitempty"`
	LastFinished *time.Time `json:"last_finished,omitempty" yaml:"last_finished,omitempty"`
	// LastDuration is a Go duration string ("1.5s").
	LastDuration string `json:"last_duration,omitempty" yaml:"last_duration,omitempty"`
	LastOutcome  string `json:"last_outcome" yaml:"last_outcome"`
	LastError    string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

type tasksSnapshotResponse struct {
	OK         bool                 `json:"ok" yaml:"ok"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`
	Supervised bool                 `json:"supervised" yaml:"supervised"`
	Tasks      []taskStatusSnapshot `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

func toTaskStatusSnapshots(s task.Snapshot, cfg taskOpsConfig) []taskStatusSnapshot {
	out := make([]taskStatusSnapshot, 0, len(s.Tasks))
	for _, st := range s.Tasks {
		if !cfg.allowed(st.Name) {
			continue
		}
		item := taskStatusSnapshot{
			ID:          st.ID.String(),
			Name:        st.Name,
			KeepAlive:   st.KeepAlive,
			State:       st.State.String(),
			Runs:        st.Runs,
			Completed:   st.Completed,
			Failed:      st.Failed,
			Panicked:    st.Panicked,
			Canceled:    st.Canceled,
			LastOutcome: st.LastOutcome.String(),
			LastError:   st.LastError,
		}
		if !st.LastStarted.IsZero() {
			ts := st.LastStarted
			item.LastStarted = &ts
		}
		if !st.LastFinished.IsZero() {
			ts := st.LastFinished
			item.LastFinished = &ts
			item.LastDuration = st.LastDuration.String()
		}
		out = append(out, item)
	}
	return out
}

func writeTasksSnapshot(w http.ResponseWriter, r *http.Request, f Format, code int, resp tasksSnapshotResponse) {
	writeFormatted(w, r, f, code, resp, resp.OK, resp.Error, func() string {
		return renderTasksSnapshotText(resp.Tasks)
	})
}

// Format: task\t<name>\t<field>\t<value>\n, one block per task in snapshot order.
// Names are not unique, so every block starts with its id.
func renderTasksSnapshotText(tasks []taskStatusSnapshot) string {
	var t textLines
	for _, st := range tasks {
		n := st.Name
		t.add("task", n, "id", st.ID)
		t.add("task", n, "state", st.State)
		t.add("task", n, "keep_alive", strconv.FormatBool(st.KeepAlive))
		t.add("task", n, "runs", strconv.FormatUint(st.Runs, 10))
		t.add("task", n, "completed", strconv.FormatUint(st.Completed, 10))
		t.add("task", n, "failed", strconv.FormatUint(st.Failed, 10))
		t.add("task", n, "panicked", strconv.FormatUint(st.Panicked, 10))
		t.add("task", n, "canceled", strconv.FormatUint(st.Canceled, 10))
		if st.LastStarted != nil {
			t.add("task", n, "last_started", st.LastStarted.Format(time.RFC3339Nano))
		}
		if st.LastFinished != nil {
			t.add("task", n, "last_finished", st.LastFinished.Format(time.RFC3339Nano))
			t.add("task", n, "last_duration", st.LastDuration)
			t.add("task", n, "last_outcome", st.LastOutcome)
		}
		if st.LastError != "" {
			t.add("task", n, "last_error", st.LastError)
		}
	}
	return t.String()
}

type taskStopResponse struct {
	OK    bool   `json:"ok" yaml:"ok"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Requested bool   `json:"requested" yaml:"requested"`
}

func writeTaskStop(w http.ResponseWriter, r *http.Request, f Format, code int, resp taskStopResponse) {
	writeFormatted(w, r, f, code, resp, resp.OK, resp.Error, func() string {
		var t textLines
		t.add("task_stop", resp.Name, "id", resp.ID)
		t.add("task_stop", resp.Name, "requested", strconv.FormatBool(resp.Requested))
		return t.String()
	})
}
