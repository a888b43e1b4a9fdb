// Package ops provides net/http handlers for operating a task supervisor.
//
// Handlers are meant to be mounted into your own router; ops does not pick paths,
// do authn/authz, or start servers.
//
// # Formats
//
// Every handler renders text by default. The default is set per handler family with
// options and overridden per request with ?format=text|json|yaml.
//
// Text output is line-based and tab-separated:
//
//	task	flush	state	running
//
// # Handlers
//
//   - health: HealthzHandler (liveness), ReadyzHandler with SupervisorCheck (readiness)
//   - tasks: TasksSnapshotHandler, TaskStopHandler (rt/task integration)
//   - logging: LogLevelHandler (slog.LevelVar)
//
// # Security notes
//
// TaskStopHandler cancels running work. Mount it behind your own authentication and
// consider WithTaskAllowNames / WithTaskAllowPrefixes.
package ops
