package socket

import (
	"context"
	"net"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
)

// acceptTCP listens on addr, accepts exactly one connection and closes the
// listener so that further connection attempts are refused.
func acceptTCP(ctx context.Context, addr string) (*net.TCPConn, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &core.SetupError{Stage: "bind", Addr: addr, Err: err}
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	logging.Infof("Waiting for TCP peer on %s", ln.Addr())
	c, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &core.SetupError{Stage: "accept", Addr: addr, Err: err}
	}
	tc := c.(*net.TCPConn)
	tuneTCP(tc)
	return tc, nil
}

// dialTCP connects to addr.
func dialTCP(ctx context.Context, addr string) (*net.TCPConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &core.SetupError{Stage: "connect", Addr: addr, Err: err}
	}
	tc := c.(*net.TCPConn)
	tuneTCP(tc)
	return tc, nil
}

// tuneTCP disables Nagle so each forwarded frame leaves immediately.
func tuneTCP(c *net.TCPConn) {
	if err := c.SetNoDelay(true); err != nil {
		logging.Debugf("tcp set nodelay: %v", err)
	}
}
