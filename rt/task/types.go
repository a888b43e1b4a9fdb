package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Handle is a registered task.
//
// Handles stay valid after Remove; a removed handle never starts again.
type Handle interface {
	// ID returns the process-unique id assigned by Add.
	ID() uuid.UUID

	// Name returns the explicit name, or the name derived from the unit.
	Name() string

	// KeepAlive reports whether the supervisor relaunches the task after each execution.
	KeepAlive() bool

	// Start launches an execution unless one is live. A task that is not keep-alive
	// runs at most once; later calls are no-ops.
	Start()

	// Stop requests cancellation of the live execution, if any. It does not wait.
	Stop()

	// IsRunning reports whether an execution is live. It never blocks on the unit.
	IsRunning() bool

	// Status returns a snapshot of the task's current status.
	Status() Status
}

// State is the lifecycle state of a task.
//
// Completed and Canceled both read as not running; for keep-alive tasks the next
// supervisor tick moves them back to Running.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is how one execution ended.
type Outcome int

const (
	// OutcomeNone means no execution has finished yet.
	OutcomeNone Outcome = iota
	// OutcomeCompleted means the unit returned nil.
	OutcomeCompleted
	// OutcomeFailed means the unit returned an error other than the cancellation signal.
	OutcomeFailed
	// OutcomePanicked means the unit panicked (recovered and reported).
	OutcomePanicked
	// OutcomeCanceled means the unit returned the cancellation signal.
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomePanicked:
		return "panicked"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Status is a task state snapshot.
type Status struct {
	ID        uuid.UUID
	Name      string
	KeepAlive bool
	State     State
	// Removed is true once the task was removed from its registry.
	Removed bool

	// Runs counts launched executions. Completed+Failed+Panicked+Canceled trails Runs
	// by one while an execution is live.
	Runs      uint64
	Completed uint64
	Failed    uint64
	Panicked  uint64
	Canceled  uint64

	LastStarted  time.Time
	LastFinished time.Time
	LastDuration time.Duration
	LastOutcome  Outcome
	// LastError is the error text of the most recent failed or panicked execution.
	// It is not cleared by later successful executions.
	LastError string
}

// Snapshot is a point-in-time view of all tasks in a Registry, sorted by name then id.
type Snapshot struct {
	Tasks []Status
}

// Get finds a task status by name. With duplicate names, any match may be returned.
func (s Snapshot) Get(name string) (Status, bool) {
	for _, st := range s.Tasks {
		if st.Name == name {
			return st, true
		}
	}
	return Status{}, false
}

// GetID finds a task status by id.
func (s Snapshot) GetID(id uuid.UUID) (Status, bool) {
	for _, st := range s.Tasks {
		if st.ID == id {
			return st, true
		}
	}
	return Status{}, false
}

// RunStartInfo is passed to OnRunStart hooks.
type RunStartInfo struct {
	ID        uuid.UUID
	Name      string
	KeepAlive bool

	// Run is the 1-based execution number of this task.
	Run       uint64
	StartedAt time.Time
}

// RunFinishInfo is passed to OnRunFinish hooks.
type RunFinishInfo struct {
	ID        uuid.UUID
	Name      string
	KeepAlive bool

	Run        uint64
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration

	Outcome Outcome
	Err     string
}
