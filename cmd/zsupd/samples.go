package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evan-idocoding/zsup"
	"github.com/evan-idocoding/zsup/rt/task"
)

const (
	heartbeatEvery = 5 * time.Second
	workerStep     = time.Second
)

// registerSamples adds one task of each kind: a keep-alive heartbeat, a cooperative
// worker with a cancel hook, and a one-shot warmup.
func registerSamples(svc *zsup.Service, lg *slog.Logger) error {
	r := svc.Registry

	// One beat per execution; the supervisor relaunches it.
	heartbeat := task.Action(func(ctx context.Context) error {
		lg.Info("heartbeat", "tasks", r.TaskCount())
		select {
		case <-ctx.Done():
			return task.ErrCanceled
		case <-time.After(heartbeatEvery):
			return nil
		}
	})
	if _, err := r.Add(heartbeat, task.WithName("sample.heartbeat"), task.WithKeepAlive(true)); err != nil {
		return fmt.Errorf("zsupd: add heartbeat: %w", err)
	}

	w := &worker{lg: lg}
	if _, err := r.Add(task.WithOnCancel(w, w.stopped), task.WithName("sample.worker")); err != nil {
		return fmt.Errorf("zsupd: add worker: %w", err)
	}

	warmup := task.Func(func() { lg.Info("warmup done") })
	if _, err := r.Add(warmup, task.WithName("sample.warmup")); err != nil {
		return fmt.Errorf("zsupd: add warmup: %w", err)
	}
	return nil
}

// worker counts steps until it is stopped.
type worker struct {
	lg    *slog.Logger
	steps int
}

func (w *worker) Run(ctx context.Context) error {
	t := time.NewTicker(workerStep)
	defer t.Stop()
	for {
		if err := task.Canceled(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-t.C:
			w.steps++
			w.lg.Debug("worker step", "steps", w.steps)
		}
	}
}

func (w *worker) stopped() {
	w.lg.Info("worker stopped", "steps", w.steps)
}
