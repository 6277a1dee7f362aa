// Package socket establishes the single transport stream of the tunnel: a
// TCP connection or a peer-pinned UDP pseudo-stream, as listener or
// initiator.
package socket

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
)

// conn is the closed set of transport variants. Every variant is bound to
// exactly one peer once constructed.
type conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

var (
	_ conn = (*net.TCPConn)(nil)
	_ conn = (*udpServerConn)(nil)
	_ conn = (*udpClientConn)(nil)
)

// Stream is an established transport stream. It implements core.PeerStream.
type Stream struct {
	endpoint core.EndpointConfig
	conn     conn
	metrics  Metrics
}

// Ensure Stream implements core.PeerStream
var _ core.PeerStream = (*Stream)(nil)

// Establish binds or connects according to endpoint and returns the single
// peer stream. It blocks until the peer is known: an accepted connection
// (TCP server), a completed connect (TCP client), or the first datagram
// (UDP server). UDP clients return immediately. Failures are returned as
// *core.SetupError. Cancelling ctx aborts a pending bind, accept, connect
// or first receive.
func Establish(ctx context.Context, endpoint core.EndpointConfig, config Config) (*Stream, error) {
	if config.FrameCapacity <= core.PacketInfoLen {
		return nil, &core.SetupError{Stage: "configure", Addr: endpoint.Address,
			Err: fmt.Errorf("invalid frame capacity %d", config.FrameCapacity)}
	}

	s := &Stream{endpoint: endpoint}

	var (
		c   conn
		err error
	)
	switch {
	case endpoint.Role == core.Server && endpoint.Protocol == core.TCP:
		c, err = acceptTCP(ctx, endpoint.Address)
	case endpoint.Role == core.Client && endpoint.Protocol == core.TCP:
		c, err = dialTCP(ctx, endpoint.Address)
	case endpoint.Role == core.Server && endpoint.Protocol == core.UDP:
		c, err = acceptUDP(ctx, endpoint.Address, config, &s.metrics)
	case endpoint.Role == core.Client && endpoint.Protocol == core.UDP:
		c, err = dialUDP(ctx, endpoint.Address, config)
	default:
		return nil, &core.SetupError{Stage: "configure", Addr: endpoint.Address,
			Err: fmt.Errorf("unsupported endpoint %s", endpoint)}
	}
	if err != nil {
		return nil, err
	}
	s.conn = c

	logging.Infof("Transport stream established: %s local=%s remote=%s",
		endpoint, c.LocalAddr(), c.RemoteAddr())
	return s, nil
}

// Read reads one chunk from the peer.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if n > 0 {
		atomic.AddUint64(&s.metrics.PacketsReceived, 1)
		atomic.AddUint64(&s.metrics.BytesReceived, uint64(n))
	}
	return n, err
}

// Write sends p to the peer in a single call.
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.conn.Write(p)
	if n > 0 {
		atomic.AddUint64(&s.metrics.PacketsSent, 1)
		atomic.AddUint64(&s.metrics.BytesSent, uint64(n))
	}
	return n, err
}

// Close closes the underlying socket, unblocking pending reads and writes.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// LocalAddr returns the local socket address.
func (s *Stream) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr returns the pinned peer address.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Endpoint returns the configuration the stream was established from.
func (s *Stream) Endpoint() core.EndpointConfig { return s.endpoint }

// Metrics returns a snapshot of the stream counters.
func (s *Stream) Metrics() Metrics { return loadMetrics(&s.metrics) }
