package service

// ConnectionState is the state of the broker connection.
type ConnectionState int

// Connection states, in lifecycle order.
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
	Terminated
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Disconnecting:
		return "DISCONNECTING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// State is the lifecycle state of a Service.
type State int32

// Lifecycle states.
const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
