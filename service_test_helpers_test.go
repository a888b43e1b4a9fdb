package zsup

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evan-idocoding/zsup/rt/task"
)

const (
	waitFor   = 2 * time.Second
	pollEvery = 2 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testSpec returns a worker-only spec with a fast loop and no signal handling.
func testSpec() Spec {
	return Spec{
		RegistryOptions: []task.RegistryOption{task.WithPollInterval(5 * time.Millisecond)},
		Logger:          discardLogger(),
		Signals:         SignalSpec{Disable: true},
		ShutdownTimeout: 2 * time.Second,
	}
}

func startService(t *testing.T, spec Spec) *Service {
	t.Helper()
	s := NewService(spec)
	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func blocking(ctx context.Context) error {
	<-ctx.Done()
	return task.ErrCanceled
}

func doRequest(t *testing.T, method, url string, hdr http.Header) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c := &http.Client{Timeout: 2 * time.Second}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func opsURL(s *Service, path string) string {
	return "http://" + s.OpsAddr() + path
}

func lines(body string) []string {
	return strings.Split(strings.TrimSuffix(body, "\n"), "\n")
}
