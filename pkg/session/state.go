package session

// State is the session's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Recording
	// Reconnecting is entered when streaming audio fails mid-session.
	Reconnecting
	// Failed is entered when reconnect attempts are exhausted. Connect
	// starts over from here.
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Recording:
		return "recording"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	}
	return "unknown"
}
