package tun

import (
	"fmt"
	"io"

	"github.com/irctrakz/prototun/pkg/core"
)

// piFrames adds the packet-info prefix to a device that exchanges bare IP
// packets, so every driver presents the same frame format.
type piFrames struct {
	rw io.ReadWriteCloser
}

// Read reads one packet behind a synthesized prefix.
func (f piFrames) Read(p []byte) (int, error) {
	if len(p) <= core.PacketInfoLen {
		return 0, io.ErrShortBuffer
	}
	n, err := f.rw.Read(p[core.PacketInfoLen:])
	if n <= 0 {
		return 0, err
	}
	core.PutPacketInfo(p, p[core.PacketInfoLen:core.PacketInfoLen+n])
	return n + core.PacketInfoLen, err
}

// Write strips the prefix and writes the packet. The returned count
// includes the prefix.
func (f piFrames) Write(p []byte) (int, error) {
	if len(p) < core.PacketInfoLen {
		return 0, fmt.Errorf("frame of %d bytes has no packet info", len(p))
	}
	n, err := f.rw.Write(p[core.PacketInfoLen:])
	if n > 0 {
		n += core.PacketInfoLen
	}
	return n, err
}

func (f piFrames) Close() error { return f.rw.Close() }
