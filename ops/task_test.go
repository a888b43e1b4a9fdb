package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/evan-idocoding/zsup/rt/task"
)

func TestTasksSnapshot_Text_OK(t *testing.T) {
	r := newTestRegistry(t)
	id := r.MustAdd(task.Func(func() {}), task.WithName("named"), task.WithKeepAlive(true))

	w := serve(TasksSnapshotHandler(r), http.MethodGet, "http://example/tasks")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	body := w.Body.String()
	assert.Contains(t, body, "task\tnamed\tid\t"+id.String()+"\n")
	assert.Contains(t, body, "task\tnamed\tstate\tnot-started\n")
	assert.Contains(t, body, "task\tnamed\tkeep_alive\ttrue\n")
	assert.Contains(t, body, "task\tnamed\truns\t0\n")
	assert.NotContains(t, body, "last_finished")
}

func TestTasksSnapshot_JSON_AfterRun(t *testing.T) {
	r := newTestRegistry(t)
	r.MustAdd(task.Action(func(context.Context) error { return assert.AnError }), task.WithName("bad"))
	require.NoError(t, r.Start(t.Context()))
	require.Eventually(t, func() bool {
		st, _ := r.Snapshot().Get("bad")
		return st.Failed == 1
	}, waitFor, pollEvery)

	w := serve(TasksSnapshotHandler(r, WithTaskDefaultFormat(FormatJSON)), http.MethodGet, "/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))

	var got tasksSnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.True(t, got.OK)
	assert.True(t, got.Supervised)
	require.Len(t, got.Tasks, 1)
	st := got.Tasks[0]
	assert.Equal(t, "bad", st.Name)
	assert.Equal(t, "completed", st.State)
	assert.Equal(t, "failed", st.LastOutcome)
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, assert.AnError.Error(), st.LastError)
	assert.NotNil(t, st.LastFinished)
	assert.NotEmpty(t, st.LastDuration)
}

func TestTasksSnapshot_YAML(t *testing.T) {
	r := newTestRegistry(t)
	r.MustAdd(task.Func(func() {}), task.WithName("y"))

	w := serve(TasksSnapshotHandler(r), http.MethodGet, "/tasks?format=yaml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/yaml"))

	var got tasksSnapshotResponse
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "y", got.Tasks[0].Name)
	assert.Equal(t, "not-started", got.Tasks[0].State)
}

func TestTasksSnapshot_QueryFormatOverridesOption(t *testing.T) {
	r := newTestRegistry(t)
	w := serve(TasksSnapshotHandler(r, WithTaskDefaultFormat(FormatJSON)), http.MethodGet, "/tasks?format=text")
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
}

func TestTasksSnapshot_InvalidFormatFallsBackToText(t *testing.T) {
	r := newTestRegistry(t)
	w := serve(TasksSnapshotHandler(r, WithTaskDefaultFormat(Format(99))), http.MethodGet, "/tasks?format=xml")
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
}

func TestTasksSnapshot_MethodNotAllowed(t *testing.T) {
	r := newTestRegistry(t)
	w := serve(TasksSnapshotHandler(r), http.MethodPost, "/tasks")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
	assert.Equal(t, "method not allowed\n", w.Body.String())
}

func TestTasksSnapshot_Head_NoBody(t *testing.T) {
	r := newTestRegistry(t)
	r.MustAdd(task.Func(func() {}), task.WithName("x"))
	w := serve(TasksSnapshotHandler(r), http.MethodHead, "/tasks")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestTasksSnapshot_GuardFilters(t *testing.T) {
	r := newTestRegistry(t)
	r.MustAdd(task.Func(func() {}), task.WithName("app.flush"))
	r.MustAdd(task.Func(func() {}), task.WithName("internal.gc"))

	w := serve(TasksSnapshotHandler(r, WithTaskAllowPrefixes("app.")), http.MethodGet, "/tasks")
	body := w.Body.String()
	assert.Contains(t, body, "task\tapp.flush\t")
	assert.NotContains(t, body, "internal.gc")

	w = serve(TasksSnapshotHandler(r, WithTaskAllowNames()), http.MethodGet, "/tasks?format=json")
	var got tasksSnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Empty(t, got.Tasks, "empty allowlist denies all")
}

func TestTasksSnapshot_EscapesNames(t *testing.T) {
	r := newTestRegistry(t)
	r.MustAdd(task.Func(func() {}), task.WithName("a\tb\nc"))
	w := serve(TasksSnapshotHandler(r), http.MethodGet, "/tasks")
	assert.Contains(t, w.Body.String(), "task\ta\\tb\\nc\tstate\tnot-started\n")
}

func TestTaskStop_ByName_RunningTask_200(t *testing.T) {
	r := newTestRegistry(t)
	canceled := make(chan struct{})
	id := r.MustAdd(task.WithOnCancel(task.Action(blocking), func() { close(canceled) }), task.WithName("pump"))
	require.NoError(t, r.Start(t.Context()))
	waitRunning(t, r, "pump")

	w := serve(TaskStopHandler(r), http.MethodPost, "/tasks/stop?name=pump")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "task_stop\tpump\tid\t"+id.String()+"\ntask_stop\tpump\trequested\ttrue\n", w.Body.String())

	<-canceled
	require.Eventually(t, func() bool { return !r.IsRunning(id) }, waitFor, pollEvery)

	// Stopped and not keep-alive: nothing to stop any more.
	w = serve(TaskStopHandler(r), http.MethodPost, "/tasks/stop?name=pump")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "task not running\n", w.Body.String())
}

func TestTaskStop_ByID_JSON(t *testing.T) {
	r := newTestRegistry(t)
	id := r.MustAdd(task.Action(blocking), task.WithName("by-id"))
	require.NoError(t, r.Start(t.Context()))
	waitRunning(t, r, "by-id")

	w := serve(TaskStopHandler(r, WithTaskDefaultFormat(FormatJSON)), http.MethodPost, "/tasks/stop?id="+id.String())
	require.Equal(t, http.StatusOK, w.Code)
	var got taskStopResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.OK)
	assert.True(t, got.Requested)
	assert.Equal(t, id.String(), got.ID)
	assert.Equal(t, "by-id", got.Name)
}

func TestTaskStop_NotRunning_409(t *testing.T) {
	r := newTestRegistry(t)
	r.MustAdd(task.Func(func() {}), task.WithName("idle"))
	w := serve(TaskStopHandler(r, WithTaskDefaultFormat(FormatJSON)), http.MethodPost, "/tasks/stop?name=idle")
	assert.Equal(t, http.StatusConflict, w.Code)

	var got taskStopResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.False(t, got.OK)
	assert.Equal(t, "task not running", got.Error)
	assert.Equal(t, "idle", got.Name)
}

func TestTaskStop_BadInput(t *testing.T) {
	r := newTestRegistry(t)
	r.MustAdd(task.Func(func() {}), task.WithName("x"))

	tests := []struct {
		target string
		code   int
		body   string
	}{
		{"/tasks/stop", http.StatusBadRequest, "missing id or name\n"},
		{"/tasks/stop?name=", http.StatusBadRequest, "missing id or name\n"},
		{"/tasks/stop?name=%20", http.StatusBadRequest, "missing id or name\n"},
		{"/tasks/stop?id=", http.StatusBadRequest, "missing id\n"},
		{"/tasks/stop?id=not-a-uuid", http.StatusBadRequest, "invalid id\n"},
		{"/tasks/stop?id=" + uuid.NewString() + "&name=x", http.StatusBadRequest, "give id or name, not both\n"},
		{"/tasks/stop?id=" + uuid.NewString(), http.StatusNotFound, "task not found\n"},
		{"/tasks/stop?name=missing", http.StatusNotFound, "task not found\n"},
	}
	for _, tt := range tests {
		w := serve(TaskStopHandler(r), http.MethodPost, tt.target)
		assert.Equal(t, tt.code, w.Code, tt.target)
		assert.Equal(t, tt.body, w.Body.String(), tt.target)
	}
}

func TestTaskStop_Guard_403(t *testing.T) {
	r := newTestRegistry(t)
	id := r.MustAdd(task.Action(blocking), task.WithName("internal.gc"))
	require.NoError(t, r.Start(t.Context()))
	waitRunning(t, r, "internal.gc")

	h := TaskStopHandler(r, WithTaskAllowNames("app.flush"))
	w := serve(h, http.MethodPost, "/tasks/stop?name=internal.gc")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The guard also applies when the task is addressed by id.
	w = serve(h, http.MethodPost, "/tasks/stop?id="+id.String())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, r.IsRunning(id))
}

func TestTaskStop_MethodNotAllowed(t *testing.T) {
	r := newTestRegistry(t)
	w := serve(TaskStopHandler(r), http.MethodGet, "/tasks/stop?name=x")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST", w.Header().Get("Allow"))
}

func TestTaskHandlers_NilRegistryPanics(t *testing.T) {
	assert.Panics(t, func() { TasksSnapshotHandler(nil) })
	assert.Panics(t, func() { TaskStopHandler(nil) })
}

func TestEscapeTextField(t *testing.T) {
	assert.Equal(t, "plain", escapeTextField("plain"))
	assert.Equal(t, `a\\b\tc\rd\ne\u0001`, escapeTextField("a\\b\tc\rd\ne\x01"))
	assert.Equal(t, "", escapeTextField(""))
}
