package core

// Direction identifies one of the two forwarding loops.
type Direction int

const (
	// SocketToInterface copies from the transport stream into the TUN device.
	SocketToInterface Direction = iota
	// InterfaceToSocket copies from the TUN device into the transport stream.
	InterfaceToSocket
)

// String returns the directional label used in logs.
func (d Direction) String() string {
	switch d {
	case SocketToInterface:
		return "socket→interface"
	case InterfaceToSocket:
		return "interface→socket"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one forwarding direction.
type Outcome struct {
	// Direction is the loop this outcome belongs to.
	Direction Direction

	// Err is nil when the source reached end-of-stream.
	Err error

	// Metrics is a snapshot of the direction's counters at termination.
	Metrics DirectionMetrics
}

// OK reports whether the direction ended cleanly.
func (o Outcome) OK() bool { return o.Err == nil }

// DirectionMetrics contains counters for one forwarding direction.
type DirectionMetrics struct {
	// Frames is the number of frames forwarded.
	Frames uint64

	// Bytes is the number of bytes forwarded.
	Bytes uint64

	// Errors is the number of terminal errors (0 or 1).
	Errors uint64
}
