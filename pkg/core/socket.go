package core

import (
	"io"
	"net"
)

// Stream is an established duplex byte channel bound to exactly one peer.
// Read and Write may be called concurrently from different goroutines;
// each half is owned by a single forwarder.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// PeerStream is a Stream backed by a network socket.
type PeerStream interface {
	Stream

	// LocalAddr returns the local socket address.
	LocalAddr() net.Addr

	// RemoteAddr returns the address of the pinned peer.
	RemoteAddr() net.Addr
}

// Split returns the independent read and write halves of s. Go streams are
// safe for one concurrent reader and one concurrent writer, so the halves
// are views onto the same value.
func Split(s Stream) (io.Reader, io.Writer) {
	return readHalf{s}, writeHalf{s}
}

type readHalf struct{ r io.Reader }

func (h readHalf) Read(p []byte) (int, error) { return h.r.Read(p) }

type writeHalf struct{ w io.Writer }

func (h writeHalf) Write(p []byte) (int, error) { return h.w.Write(p) }

// TransportMetrics contains counters for the transport endpoint.
type TransportMetrics struct {
	// DatagramsRejected is the number of UDP datagrams dropped because they
	// came from a source other than the pinned peer.
	DatagramsRejected uint64

	// PacketsSent is the number of writes handed to the socket.
	PacketsSent uint64

	// PacketsReceived is the number of reads returned from the socket.
	PacketsReceived uint64

	// BytesSent is the number of bytes written to the socket.
	BytesSent uint64

	// BytesReceived is the number of bytes read from the socket.
	BytesReceived uint64
}
