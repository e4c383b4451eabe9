package chat

// Status is the connection state of a Client. Reconnecting is the part of connecting that is driven by the
// transport's reconnection policy.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Reconnecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Reconnecting:
		return "reconnecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// eventKind is everything that moves the connection state.
type eventKind int

const (
	evDial eventKind = iota
	evConnected
	evConnectionLost
	evConnectError
	evReconnectAttempt
	evReconnectFailed
	evAuthRejected
	evClose
)

func (e eventKind) String() string {
	switch e {
	case evDial:
		return "dial"
	case evConnected:
		return "connect"
	case evConnectionLost:
		return "disconnect"
	case evConnectError:
		return "connect_error"
	case evReconnectAttempt:
		return "reconnect_attempt"
	case evReconnectFailed:
		return "reconnect_failed"
	case evAuthRejected:
		return "auth_rejected"
	case evClose:
		return "close"
	}
	return "unknown"
}

// transition is total: every (status, event) pair has a defined result.
func transition(s Status, e eventKind) Status {
	switch e {
	case evDial:
		if s == Disconnected {
			return Connecting
		}
		return s
	case evConnected:
		return Connected
	case evReconnectAttempt:
		if s == Connected {
			return s
		}
		return Reconnecting
	case evConnectionLost, evConnectError, evReconnectFailed, evAuthRejected, evClose:
		return Disconnected
	}
	return s
}
