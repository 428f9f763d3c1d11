package conversation

// State is the view state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateResolvingParticipants
	StateIdle
	StateLoadingHistory
	StateThreadOpen
)

func (s State) String() string {
	switch s {
	case StateResolvingParticipants:
		return "resolving_participants"
	case StateIdle:
		return "idle"
	case StateLoadingHistory:
		return "loading_history"
	case StateThreadOpen:
		return "thread_open"
	default:
		return "uninitialized"
	}
}
