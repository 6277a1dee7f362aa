package core

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a direction that was stopped because its sibling failed
// or because the process is shutting down.
var ErrCancelled = errors.New("forwarding cancelled")

// SetupError reports a failure to establish the transport stream or the
// interface before any forwarding starts.
type SetupError struct {
	// Stage is the failed step ("bind", "listen", "accept", "connect",
	// "receive", "open", "configure").
	Stage string
	// Addr is the address or device involved.
	Addr string
	// Err is the underlying cause.
	Err error
}

func (e *SetupError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("setup %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("setup %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// PartialWriteError reports that a sink accepted fewer (or more) bytes than
// the frame that was offered. Frames are never split, so this ends the
// direction. Err is the error the sink returned with the short count, if any.
type PartialWriteError struct {
	Read    int
	Written int
	Err     error
}

func (e *PartialWriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("read %d bytes but sent %d bytes: %v", e.Read, e.Written, e.Err)
	}
	return fmt.Sprintf("read %d bytes but sent %d bytes", e.Read, e.Written)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// DirectionError attaches directional context to a forwarding failure.
type DirectionError struct {
	Direction Direction
	Err       error
}

func (e *DirectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Direction, e.Err)
}

func (e *DirectionError) Unwrap() error { return e.Err }
