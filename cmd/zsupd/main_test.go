package main

import (
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	err := run(t.Context(), &out, []string{"-h"})
	require.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "-config")
}

func TestRun_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	err := run(t.Context(), &out, []string{"--nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag provided but not defined: -nope")
}

func TestRun_BadConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(t.Context(), &out, []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "zsup.yaml")
	require.NoError(t, os.WriteFile(p, []byte("log:\n  level: loud\n"), 0o600))
	err = run(t.Context(), &out, []string{"-config", p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Log.Level (oneof)")
}

func TestRun_SamplesUntilContextDone(t *testing.T) {
	p := filepath.Join(t.TempDir(), "zsup.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
supervisor:
  poll_interval: 10ms
ops:
  enable: false
log:
  level: debug
  format: text
shutdown_timeout: 2s
`), 0o600))

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, run(ctx, &out, []string{"-config", p}))

	logs := out.String()
	assert.Contains(t, logs, "msg=heartbeat")
	assert.Contains(t, logs, `msg="warmup done"`)
	assert.Contains(t, logs, `msg="worker stopped"`)
	assert.Contains(t, logs, `msg="zsup: stopped"`)
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "json", new(slog.LevelVar)).Info("hi")
	assert.Contains(t, buf.String(), `"msg":"hi"`)

	buf.Reset()
	newLogger(&buf, "text", new(slog.LevelVar)).Info("hi")
	assert.Contains(t, buf.String(), "msg=hi")
}
