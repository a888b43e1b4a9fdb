package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testTick    = 10 * time.Millisecond
	waitFor     = 2 * time.Second
	pollEvery   = 2 * time.Millisecond
	settleTicks = 5 * testTick
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRegistry returns a registry with a fast tick, shut down at test cleanup.
func newTestRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	base := []RegistryOption{WithPollInterval(testTick), WithLogger(quietLogger())}
	r := NewRegistry(append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

func startLoop(t *testing.T, r *Registry) {
	t.Helper()
	require.NoError(t, r.Start(context.Background()))
}

// blockUntilCanceled is a cooperative unit body that runs until stopped.
func blockUntilCanceled(ctx context.Context) error {
	<-ctx.Done()
	return ErrCanceled
}

func noop() {}
