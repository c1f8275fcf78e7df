package capture

// State is the observable lifecycle position of a capture handle.
type State int

const (
	StateUninitialized State = iota
	StateNegotiating
	StateStreaming
	StateTerminateRequested
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNegotiating:
		return "negotiating"
	case StateStreaming:
		return "streaming"
	case StateTerminateRequested:
		return "terminate-requested"
	case StateJoined:
		return "joined"
	default:
		return "unknown"
	}
}
