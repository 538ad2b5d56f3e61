package engine

// State represents the loader's lifecycle state.
type State int

const (
	// StateIdle indicates no load has been attempted yet.
	StateIdle State = iota
	// StateLoading indicates blobs are being resolved and the engine is
	// initializing.
	StateLoading
	// StateReady indicates the engine initialized successfully.
	StateReady
	// StateFailed indicates a fetch or initialization failure; the
	// handle must be rebuilt before another attempt.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateMachine guards the loader's transitions. Only the transitions in
// the table are legal; everything else is rejected.
type stateMachine struct {
	current     State
	transitions map[State][]State
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:    {StateLoading, StateReady},
			StateLoading: {StateReady, StateFailed},
			StateReady:   {},
			StateFailed:  {},
		},
	}
}

// transition attempts to move to the given state and reports whether the
// move was legal.
func (sm *stateMachine) transition(to State) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			sm.current = to
			return true
		}
	}
	return false
}

func (sm *stateMachine) state() State {
	return sm.current
}
