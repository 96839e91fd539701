// Package looprun implements the orchestration loop: it routes pending
// events to hats, drives agent invocations, enforces safety limits and
// decides when the loop stops.
package looprun

// Reason explains why an orchestration loop terminated.
type Reason int

const (
	ReasonCompleted Reason = iota
	ReasonFailed
	ReasonMaxIterations
	ReasonMaxRuntime
	ReasonMaxCost
	ReasonNoProgress
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonCompleted:
		return "completed"
	case ReasonFailed:
		return "failed"
	case ReasonMaxIterations:
		return "max_iterations"
	case ReasonMaxRuntime:
		return "max_runtime"
	case ReasonMaxCost:
		return "max_cost"
	case ReasonNoProgress:
		return "no_progress"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ExitCode maps the termination reason to the process exit code:
// 0 success, 1 failure or stall, 2 safety limit, 130 user interrupt.
func (r Reason) ExitCode() int {
	switch r {
	case ReasonCompleted:
		return 0
	case ReasonFailed, ReasonNoProgress:
		return 1
	case ReasonMaxIterations, ReasonMaxRuntime, ReasonMaxCost:
		return 2
	case ReasonCancelled:
		return 130
	default:
		return 1
	}
}
