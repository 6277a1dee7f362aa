package socket

import "github.com/irctrakz/prototun/pkg/core"

// Config contains configuration for the transport endpoint
type Config struct {
	// FrameCapacity is the largest frame carried by the stream (MTU plus
	// the packet-info prefix). It sizes the UDP server's first receive.
	FrameCapacity int

	// Debug enables per-datagram debug logging of rejected peers
	Debug bool
}

// DefaultConfig returns the default configuration for the transport endpoint
func DefaultConfig() Config {
	return Config{
		FrameCapacity: core.FrameCapacity(1500),
		Debug:         false,
	}
}
