// Command zsupd runs the task supervisor with a few sample tasks and the ops server.
//
// Usage:
//
//	zsupd [-config zsup.yaml] [-no-samples]
//
// Every config key can be overridden with a ZSUP_ environment variable, e.g.
// ZSUP_OPS_ADDR=127.0.0.1:9000.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/evan-idocoding/zsup"
	"github.com/evan-idocoding/zsup/config"
)

func main() {
	if err := run(context.Background(), os.Stderr, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("zsupd", flag.ContinueOnError)
	fs.SetOutput(out)
	cfgPath := fs.String("config", "", "path to a YAML config file")
	noSamples := fs.Bool("no-samples", false, "do not register the sample tasks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	lv := new(slog.LevelVar)
	lv.Set(cfg.SlogLevel())
	logger := newLogger(out, cfg.Log.Format, lv)
	slog.SetDefault(logger)

	spec := zsup.Spec{
		RegistryOptions: cfg.RegistryOptions(),
		Logger:          logger,
		LogLevelVar:     lv,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if cfg.Ops.Enable {
		spec.Ops = &zsup.OpsSpec{Addr: cfg.Ops.Addr, Token: cfg.Ops.Token}
	}
	svc := zsup.NewService(spec)

	if !*noSamples {
		if err := registerSamples(svc, logger); err != nil {
			return err
		}
	}
	return svc.Run(ctx)
}

func newLogger(w io.Writer, format string, lv *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lv}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
