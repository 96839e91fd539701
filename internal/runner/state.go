// Package runner manages the lifecycle of one spawned agent process:
// command construction, launch, live stream observation and termination.
package runner

import "fmt"

// State is the explicit lifecycle of a Runner. Exactly one Runner is live
// per agent process; terminal states reject further transitions.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// canTransition encodes the allowed lifecycle edges.
func canTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateStarting || to == StateFailed
	case StateStarting:
		// A spawn that never reaches Running can still hit the
		// deadline, so Starting admits every terminal state but
		// Completed.
		return to == StateRunning || to == StateFailed ||
			to == StateCancelled || to == StateTimedOut
	case StateRunning:
		return to.Terminal()
	default:
		return false
	}
}
