package speech

// StateType is the playback state of the driver.
type StateType int

const (
	// StateIdle indicates nothing is being read.
	StateIdle StateType = iota
	// StateSpeaking indicates sentences are being spoken.
	StateSpeaking
	// StatePaused indicates playback is paused on the current sentence.
	StatePaused
	// StateFinished indicates the end of the document was reached.
	StateFinished
	// StateError indicates the engine failed.
	StateError
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateMachine validates playback state transitions.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func(from StateType)
}

// NewStateMachine creates a state machine in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:     {StateSpeaking},
			StateSpeaking: {StatePaused, StateIdle, StateFinished, StateError},
			StatePaused:   {StateSpeaking, StateIdle},
			StateFinished: {StateSpeaking, StateIdle},
			StateError:    {StateSpeaking, StateIdle},
		},
		onEnter: make(map[StateType]func(StateType)),
	}
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Transition moves to the given state if allowed and runs its enter hook.
func (sm *StateMachine) Transition(to StateType) bool {
	if !sm.CanTransition(to) {
		return false
	}

	from := sm.current
	sm.current = to

	if fn, ok := sm.onEnter[to]; ok && fn != nil {
		fn(from)
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a hook run after entering state.
func (sm *StateMachine) OnEnter(state StateType, fn func(from StateType)) {
	sm.onEnter[state] = fn
}
