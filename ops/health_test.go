package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz_Text_OK(t *testing.T) {
	w := serve(HealthzHandler(), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestHealthz_JSON_And_YAML(t *testing.T) {
	w := serve(HealthzHandler(WithHealthDefaultFormat(FormatJSON)), http.MethodGet, "/healthz")
	var got healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.OK)

	w = serve(HealthzHandler(), http.MethodGet, "/healthz?format=yaml")
	assert.Equal(t, "ok: true\n", w.Body.String())
}

func TestHealthz_MethodNotAllowed(t *testing.T) {
	w := serve(HealthzHandler(), http.MethodPost, "/healthz")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
	assert.Equal(t, "method not allowed\n", w.Body.String())
}

func TestHealthz_Head_NoBody(t *testing.T) {
	w := serve(HealthzHandler(), http.MethodHead, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestReadyz_NoChecks_OK(t *testing.T) {
	w := serve(ReadyzHandler(nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
}

func TestReadyz_Fail_503_Text(t *testing.T) {
	h := ReadyzHandler([]ReadyCheck{
		{Name: "db", Func: func(context.Context) error { return errors.New("down") }},
		{Name: "cache", Func: func(context.Context) error { return nil }},
	})
	w := serve(h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "fail db: down\n", w.Body.String())
}

func TestReadyz_Fail_503_JSON(t *testing.T) {
	h := ReadyzHandler([]ReadyCheck{
		{Name: "db", Func: func(context.Context) error { return errors.New("down") }},
	}, WithHealthDefaultFormat(FormatJSON))
	w := serve(h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var rep ReadyzReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.False(t, rep.OK)
	require.Len(t, rep.Checks, 1)
	assert.Equal(t, "down", rep.Checks[0].Error)
}

func TestReadyz_CheckTimeout(t *testing.T) {
	rep := RunReadyzChecks(context.Background(), []ReadyCheck{{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})
	require.Len(t, rep.Checks, 1)
	assert.False(t, rep.OK)
	assert.True(t, rep.Checks[0].TimedOut)
}

func TestReadyz_CheckPanicBecomesFailure(t *testing.T) {
	rep := RunReadyzChecks(context.Background(), []ReadyCheck{{
		Name: "boom",
		Func: func(context.Context) error { panic("x") },
	}})
	assert.False(t, rep.OK)
	assert.Equal(t, "panic: x", rep.Checks[0].Error)
}

func TestReadyz_MethodNotAllowed(t *testing.T) {
	w := serve(ReadyzHandler(nil, WithHealthDefaultFormat(FormatJSON)), http.MethodDelete, "/readyz")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	var rep ReadyzReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Len(t, rep.Checks, 1)
	assert.Equal(t, "method", rep.Checks[0].Name)
}

func TestReadyz_InvalidCheckPanics(t *testing.T) {
	assert.Panics(t, func() { ReadyzHandler([]ReadyCheck{{Func: func(context.Context) error { return nil }}}) })
	assert.Panics(t, func() { ReadyzHandler([]ReadyCheck{{Name: "x"}}) })
}

func TestReadyz_CheckSliceIsSnapshotted(t *testing.T) {
	checks := []ReadyCheck{{Name: "ok", Func: func(context.Context) error { return nil }}}
	h := ReadyzHandler(checks)
	checks[0] = ReadyCheck{Name: "bad", Func: func(context.Context) error { return errors.New("no") }}
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/readyz").Code)
}

func TestSupervisorCheck_TracksLoop(t *testing.T) {
	r := newTestRegistry(t)
	h := ReadyzHandler([]ReadyCheck{SupervisorCheck(r)})

	w := serve(h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "fail supervisor: "))

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/readyz").Code)

	r.Stop()
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "/readyz").Code)
}
