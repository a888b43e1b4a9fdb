package ops

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evan-idocoding/zsup/rt/task"
)

const (
	waitFor   = 2 * time.Second
	pollEvery = 2 * time.Millisecond
)

func newTestRegistry(t *testing.T) *task.Registry {
	t.Helper()
	r := task.NewRegistry(
		task.WithPollInterval(5*time.Millisecond),
		task.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func blocking(ctx context.Context) error {
	<-ctx.Done()
	return task.ErrCanceled
}

func waitRunning(t *testing.T, r *task.Registry, name string) {
	t.Helper()
	require.Eventually(t, func() bool { return r.IsRunningName(name) }, waitFor, pollEvery)
}
