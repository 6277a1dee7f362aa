package forward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options configures an Orchestrator.
type Options struct {
	// MTU of the TUN device; each direction buffers MTU+4 bytes.
	MTU int

	// Policy selects sibling cancellation on failure.
	Policy FailurePolicy

	// Tap, when set, sees every frame in both directions.
	Tap Tap
}

// Orchestrator runs the two forwarding directions between a transport
// stream and a TUN device and joins their outcomes.
type Orchestrator struct {
	socket core.Stream
	iface  core.Stream
	opts   Options

	s2i *Forwarder
	i2s *Forwarder

	closeOnce sync.Once
}

// Metrics contains per-direction counters.
type Metrics struct {
	SocketToInterface core.DirectionMetrics
	InterfaceToSocket core.DirectionMetrics
}

// New returns an orchestrator owning both streams. Run closes them before
// returning.
func New(socket, iface core.Stream, opts Options) *Orchestrator {
	capacity := core.FrameCapacity(opts.MTU)
	o := &Orchestrator{
		socket: socket,
		iface:  iface,
		opts:   opts,
		s2i:    NewForwarder(core.SocketToInterface, capacity),
		i2s:    NewForwarder(core.InterfaceToSocket, capacity),
	}
	o.s2i.tap = opts.Tap
	o.i2s.tap = opts.Tap
	return o
}

// Metrics returns a snapshot of both directions' counters.
func (o *Orchestrator) Metrics() Metrics {
	return Metrics{
		SocketToInterface: o.s2i.Metrics(),
		InterfaceToSocket: o.i2s.Metrics(),
	}
}

// Run forwards socket→interface and interface→socket concurrently and
// returns once both directions have terminated. Cancelling ctx closes both
// streams; directions unblocked that way report core.ErrCancelled. Under
// CancelOnFailure the first failing direction does the same to its sibling.
func (o *Orchestrator) Run(ctx context.Context) Result {
	sockR, sockW := core.Split(o.socket)
	ifR, ifW := core.Split(o.iface)

	// stopping is set before the streams are closed, so a direction that
	// fails after observing it was unblocked by the close.
	var stopping atomic.Bool
	stop := func() {
		stopping.Store(true)
		o.close()
	}
	unwatch := context.AfterFunc(ctx, stop)
	defer unwatch()

	logging.Infof("Forwarding started (mtu=%d, policy=%s)", o.opts.MTU, o.opts.Policy)

	var (
		errs      [2]error
		cancelled [2]bool
	)
	run := func(f *Forwarder, src io.Reader, dst io.Writer) error {
		err := f.Run(src, dst)
		errs[f.direction] = err
		cancelled[f.direction] = err != nil && stopping.Load()
		return err
	}

	switch o.opts.Policy {
	case CancelOnFailure:
		g, gctx := errgroup.WithContext(ctx)
		unwatchGroup := context.AfterFunc(gctx, stop)
		g.Go(func() error { return run(o.s2i, sockR, ifW) })
		g.Go(func() error { return run(o.i2s, ifR, sockW) })
		_ = g.Wait()
		unwatchGroup()
	default:
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); run(o.s2i, sockR, ifW) }()
		go func() { defer wg.Done(); run(o.i2s, ifR, sockW) }()
		wg.Wait()
	}

	o.close()

	var res Result
	for _, f := range []*Forwarder{o.s2i, o.i2s} {
		d := f.direction
		err := errs[d]
		if err != nil {
			if cancelled[d] {
				err = fmt.Errorf("%w: %v", core.ErrCancelled, err)
			}
			err = &core.DirectionError{Direction: d, Err: err}
		}
		res.Outcomes[d] = core.Outcome{Direction: d, Err: err, Metrics: f.Metrics()}
	}
	res.log()
	return res
}

// close closes both streams once.
func (o *Orchestrator) close() {
	o.closeOnce.Do(func() {
		if err := o.socket.Close(); err != nil {
			logging.Debugf("close transport stream: %v", err)
		}
		if err := o.iface.Close(); err != nil {
			logging.Debugf("close interface: %v", err)
		}
	})
}

// Result is the joined outcome of both directions, indexed by
// core.Direction.
type Result struct {
	Outcomes [2]core.Outcome
}

// Err returns the joined errors of every direction that did not end
// cleanly, or nil.
func (r Result) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Failed reports whether any direction failed on its own, as opposed to
// being cancelled.
func (r Result) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil && !errors.Is(o.Err, core.ErrCancelled) {
			return true
		}
	}
	return false
}

// ExitCode maps the result to a process exit status: 0 when both
// directions reached end-of-stream, 2 otherwise.
func (r Result) ExitCode() int {
	if r.Err() == nil {
		return 0
	}
	return 2
}

func (r Result) log() {
	for _, o := range r.Outcomes {
		entry := logging.WithDirection(o.Direction).WithFields(logrus.Fields{
			"frames": o.Metrics.Frames,
			"bytes":  o.Metrics.Bytes,
		})
		switch {
		case o.Err == nil:
			entry.Info("direction finished: end of stream")
		case errors.Is(o.Err, core.ErrCancelled):
			entry.Warnf("direction cancelled: %v", o.Err)
		default:
			entry.Errorf("direction failed: %v", o.Err)
		}
	}
}
