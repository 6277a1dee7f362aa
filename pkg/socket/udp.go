package socket

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"
	"syscall"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
	"github.com/sirupsen/logrus"
)

// udpServerConn is a UDP socket pinned to the source of the first datagram
// it received. Datagrams from any other source are dropped.
type udpServerConn struct {
	pc      *net.UDPConn
	peer    netip.AddrPort
	debug   bool
	metrics *Metrics

	// first holds the datagram that pinned the peer until the first Read.
	// Only the reading goroutine touches it.
	first []byte
}

// acceptUDP binds addr and blocks until the first datagram arrives. The
// datagram's source becomes the only peer for the life of the stream and the
// datagram itself is delivered by the first Read.
func acceptUDP(ctx context.Context, addr string, config Config, metrics *Metrics) (*udpServerConn, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, &core.SetupError{Stage: "bind", Addr: addr, Err: err}
	}
	uc := pc.(*net.UDPConn)

	stop := context.AfterFunc(ctx, func() { uc.Close() })
	defer stop()

	logging.Infof("Waiting for first UDP datagram on %s", uc.LocalAddr())
	buf := make([]byte, config.FrameCapacity)
	n, from, err := uc.ReadFromUDPAddrPort(buf)
	if err != nil {
		uc.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &core.SetupError{Stage: "receive", Addr: addr, Err: err}
	}

	c := &udpServerConn{
		pc:      uc,
		peer:    normalizeAddrPort(from),
		debug:   config.Debug,
		metrics: metrics,
	}
	if n > 0 {
		c.first = buf[:n]
	}
	logging.InfoWithFields(logrus.Fields{"peer": c.peer.String()}, "UDP peer pinned")
	return c, nil
}

// Read returns the next non-empty datagram from the pinned peer. If p is
// shorter than the datagram, the excess is discarded.
func (c *udpServerConn) Read(p []byte) (int, error) {
	if c.first != nil {
		n := copy(p, c.first)
		c.first = nil
		return n, nil
	}
	for {
		n, from, err := c.pc.ReadFromUDPAddrPort(p)
		if err != nil {
			return n, err
		}
		if normalizeAddrPort(from) != c.peer {
			atomic.AddUint64(&c.metrics.DatagramsRejected, 1)
			if c.debug {
				logging.DebugWithFields(logrus.Fields{"from": from.String(), "peer": c.peer.String()},
					"dropping datagram from foreign source")
			}
			continue
		}
		if n == 0 {
			continue
		}
		return n, nil
	}
}

// Write sends p as one datagram to the pinned peer.
func (c *udpServerConn) Write(p []byte) (int, error) {
	return c.pc.WriteToUDPAddrPort(p, c.peer)
}

func (c *udpServerConn) Close() error { return c.pc.Close() }

func (c *udpServerConn) LocalAddr() net.Addr { return c.pc.LocalAddr() }

func (c *udpServerConn) RemoteAddr() net.Addr { return net.UDPAddrFromAddrPort(c.peer) }

// udpClientConn is a connected UDP socket. The kernel only delivers
// datagrams from the connected address.
type udpClientConn struct {
	*net.UDPConn
	debug bool
}

// dialUDP creates a UDP socket connected to addr. No datagram is exchanged.
func dialUDP(ctx context.Context, addr string, config Config) (*udpClientConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, &core.SetupError{Stage: "connect", Addr: addr, Err: err}
	}
	return &udpClientConn{UDPConn: c.(*net.UDPConn), debug: config.Debug}, nil
}

// Read returns the next non-empty datagram. ICMP port-unreachable reports
// surface as ECONNREFUSED on connected sockets while the server is not yet
// listening; they are skipped since the client has no handshake.
func (c *udpClientConn) Read(p []byte) (int, error) {
	for {
		n, err := c.UDPConn.Read(p)
		if err != nil {
			if errors.Is(err, syscall.ECONNREFUSED) {
				if c.debug {
					logging.Debugf("udp peer %s refused, waiting: %v", c.RemoteAddr(), err)
				}
				continue
			}
			return n, err
		}
		if n == 0 {
			continue
		}
		return n, nil
	}
}

// Write sends p as one datagram. A refusal caused by an earlier datagram is
// reported by the kernel on the next send; the frame is retried once so the
// refusal is not charged to it.
func (c *udpClientConn) Write(p []byte) (int, error) {
	n, err := c.UDPConn.Write(p)
	if err != nil && errors.Is(err, syscall.ECONNREFUSED) {
		return c.UDPConn.Write(p)
	}
	return n, err
}

func normalizeAddrPort(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
