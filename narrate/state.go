// Package narrate orchestrates chunked document playback across speech
// backends.
package narrate

// StateType represents the current state of the playback engine.
type StateType int

const (
	// StateIdle indicates no narration session is active.
	StateIdle StateType = iota
	// StateLoading indicates audio for the current chunk is being prepared.
	StateLoading
	// StatePlaying indicates a chunk is being spoken.
	StatePlaying
	// StatePaused indicates playback is suspended mid-chunk.
	StatePaused
	// StateEnded indicates the selection finished naturally.
	StateEnded
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// State holds a snapshot of the engine observable from outside the
// dispatch loop.
type State struct {
	CurrentState StateType // Current state of the engine
	Chunk        int       // Current chunk index (0-based)
	TotalChunks  int       // Total number of chunks in the document
	Rate         float64   // Current playback rate
	Backend      string    // Name of the backend speaking the current chunk
	LastError    error     // Last error encountered
}

// IsActive returns true if a narration session is in progress.
func (s *State) IsActive() bool {
	return s.CurrentState == StateLoading ||
		s.CurrentState == StatePlaying ||
		s.CurrentState == StatePaused
}

// CanPause returns true if playback can be paused.
func (s *State) CanPause() bool {
	return s.CurrentState == StatePlaying
}

// CanResume returns true if playback can be resumed.
func (s *State) CanResume() bool {
	return s.CurrentState == StatePaused
}

// CanStop returns true if stopping would change anything.
func (s *State) CanStop() bool {
	return s.CurrentState != StateIdle
}

// StateMachine manages state transitions for the playback engine.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onExit      map[StateType]func()
}

// NewStateMachine creates a new state machine with valid transitions.
// Every state may fall back to Idle, which is how Stop and fatal
// errors are modeled.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:    {StateLoading},
			StateLoading: {StateLoading, StatePlaying, StateIdle},
			StatePlaying: {StateLoading, StatePaused, StateEnded, StateIdle},
			StatePaused:  {StatePlaying, StateLoading, StateIdle},
			StateEnded:   {StateLoading, StateIdle},
		},
		onEnter: make(map[StateType]func()),
		onExit:  make(map[StateType]func()),
	}
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to StateType) bool {
	validTransitions, ok := sm.transitions[sm.current]
	if !ok {
		return false
	}

	valid := false
	for _, state := range validTransitions {
		if state == to {
			valid = true
			break
		}
	}

	if !valid {
		return false
	}

	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}

	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}

	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state StateType, fn func()) {
	sm.onExit[state] = fn
}
