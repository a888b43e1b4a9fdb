// Package zsup runs an in-process task supervisor with an optional ops HTTP surface.
//
// The supervisor itself lives in rt/task: a Registry holds tasks, and its loop polls
// them on a fixed interval, starting each task once and relaunching keep-alive tasks
// after their unit returns. Package zsup assembles a Registry with logging, Prometheus
// metrics and an ops server into a Service with a single lifecycle:
//
//	svc := zsup.NewService(zsup.Spec{
//		Ops: &zsup.OpsSpec{Addr: "127.0.0.1:8089"},
//	})
//	svc.Registry.MustAdd(task.Action(pump), task.WithName("pump"), task.WithKeepAlive(true))
//	_ = svc.Run(context.Background())
//
// Run returns after ctx is done, SIGINT/SIGTERM arrives or the ops server fails.
//
// # Shutdown order
//
// Shutdown stops the ops server, then cancels every running task and waits for it
// (task.Registry.Shutdown), then runs Hooks.OnShutdown. The whole sequence is bounded by
// Spec.ShutdownTimeout.
//
// # Ops routes
//
// See OpsSpec. Mutating routes can be protected with OpsSpec.Token; read routes are
// always open, so bind the ops server to a private address.
//
// Building blocks:
//   - rt/task: the registry and supervisor loop
//   - rt/task/taskprom: Prometheus metrics from registry hooks
//   - rt/safego: panic/error containment for goroutines
//   - ops: the HTTP handlers
//   - config: viper-backed configuration for cmd/zsupd
package zsup
