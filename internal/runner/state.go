package runner

// State is the lifecycle position of one invocation.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
