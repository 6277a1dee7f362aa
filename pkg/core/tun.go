package core

import "io"

// TUNDevice is an activated virtual interface. Each Read returns exactly one
// frame (packet-info prefix followed by one IP packet) and each Write
// injects exactly one frame.
type TUNDevice interface {
	io.ReadWriteCloser

	// Name returns the name of the TUN device
	Name() string

	// MTU returns the Maximum Transmission Unit of the TUN device
	MTU() int
}

// TUNMetrics contains metrics for a TUN device
type TUNMetrics struct {
	// PacketsReceived is the number of frames read from the TUN device
	PacketsReceived uint64

	// PacketsSent is the number of frames written to the TUN device
	PacketsSent uint64

	// BytesReceived is the number of bytes read from the TUN device
	BytesReceived uint64

	// BytesSent is the number of bytes written to the TUN device
	BytesSent uint64

	// Errors is the number of errors encountered
	Errors uint64
}
