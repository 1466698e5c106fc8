package ghci

// State is the lifecycle state of a Session.
type State int

const (
	// StateInitializing covers spawning and prompt negotiation.
	StateInitializing State = iota

	// StateReady means the session accepts Eval calls.
	StateReady

	// StateEvaluating means an Eval is waiting for output.
	StateEvaluating

	// StateTimedOut means a wait expired. Terminal: the interpreter may still
	// be evaluating and its output can no longer be framed.
	StateTimedOut

	// StateClosed means Close was called. Terminal.
	StateClosed
)

// String returns a human-readable string for the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateEvaluating:
		return "evaluating"
	case StateTimedOut:
		return "timed_out"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further evaluation can succeed.
func (s State) IsTerminal() bool {
	return s == StateTimedOut || s == StateClosed
}
