// Package forward moves frames between the transport stream and the TUN
// device: one copy loop per direction and an orchestrator joining both.
package forward

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
)

// Forward copies chunks from src to dst using a single buffer of capacity
// bytes until src signals end-of-stream. See Forwarder.Run.
func Forward(src io.Reader, dst io.Writer, capacity int) error {
	return NewForwarder(core.SocketToInterface, capacity).Run(src, dst)
}

// Tap observes every frame read by a forwarder before it is written.
// Implementations must not retain frame.
type Tap interface {
	Capture(direction core.Direction, frame []byte)
}

// Forwarder is a single-direction copy loop. It is not safe for concurrent
// use by more than one Run; Metrics may be called at any time.
type Forwarder struct {
	direction core.Direction
	capacity  int
	tap       Tap
	metrics   core.DirectionMetrics
}

// NewForwarder returns a forwarder for direction whose buffer holds capacity
// bytes (MTU plus the packet-info prefix).
func NewForwarder(direction core.Direction, capacity int) *Forwarder {
	return &Forwarder{direction: direction, capacity: capacity}
}

// Direction returns the direction the forwarder serves.
func (f *Forwarder) Direction() core.Direction { return f.direction }

// Run reads into one buffer allocated up front and writes each chunk to dst
// in a single call. A zero-byte read or io.EOF ends the loop with nil and no
// further reads. A sink that accepts a different byte count than offered
// ends the loop with *core.PartialWriteError wrapping whatever error the
// sink returned with it; the remainder is never retried
// because splitting a frame would destroy its boundary. Any other read or
// write error ends the loop with that error.
func (f *Forwarder) Run(src io.Reader, dst io.Writer) error {
	buf := make([]byte, f.capacity)
	trace := core.IsDebugMode() && logging.IsDebug()
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if trace {
				logging.WithDirection(f.direction).Debugf("frame %s", core.DescribeFrame(buf[:n]))
			}
			if f.tap != nil {
				f.tap.Capture(f.direction, buf[:n])
			}
			m, werr := dst.Write(buf[:n])
			if m != n {
				atomic.AddUint64(&f.metrics.Errors, 1)
				return &core.PartialWriteError{Read: n, Written: m, Err: werr}
			}
			if werr != nil {
				atomic.AddUint64(&f.metrics.Errors, 1)
				return werr
			}
			atomic.AddUint64(&f.metrics.Frames, 1)
			atomic.AddUint64(&f.metrics.Bytes, uint64(n))
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			atomic.AddUint64(&f.metrics.Errors, 1)
			return rerr
		}
		if n == 0 {
			return nil
		}
	}
}

// Metrics returns a snapshot of the forwarder counters.
func (f *Forwarder) Metrics() core.DirectionMetrics {
	return core.DirectionMetrics{
		Frames: atomic.LoadUint64(&f.metrics.Frames),
		Bytes:  atomic.LoadUint64(&f.metrics.Bytes),
		Errors: atomic.LoadUint64(&f.metrics.Errors),
	}
}
