// Package capture records forwarded frames to a pcap file so a tunnel can
// be inspected with standard tools.
package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
)

const (
	pcapMagic      = 0xa1b2c3d4
	pcapSnapLen    = 65535
	linkTypeRaw    = 101 // LINKTYPE_RAW: bare IPv4 or IPv6 packets
	globalHdrLen   = 24
	recordHdrLen   = 16
	pcapVersionMaj = 2
	pcapVersionMin = 4
)

// Writer appends frames to a pcap stream. The packet-info prefix is
// stripped so records hold the IP packet only. Safe for concurrent use by
// both forwarding directions.
//
// Each record is one chunk as read by a forwarder. Over the TCP transport
// the socket→interface chunks follow TCP segmentation, not frame
// boundaries, so records in that direction can hold a partial frame or
// several frames.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	frames uint64
}

// Create truncates path and returns a Writer over it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	logging.Infof("Capturing frames to %s", path)
	return w, nil
}

// NewWriter writes the pcap global header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	hdr := make([]byte, globalHdrLen)
	binary.LittleEndian.PutUint32(hdr[0:4], pcapMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], pcapVersionMaj)
	binary.LittleEndian.PutUint16(hdr[6:8], pcapVersionMin)
	// 8:12 thiszone, 12:16 sigfigs
	binary.LittleEndian.PutUint32(hdr[16:20], pcapSnapLen)
	binary.LittleEndian.PutUint32(hdr[20:24], linkTypeRaw)
	if _, err := w.Write(hdr); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{w: w}, nil
}

// WriteFrame records one tunnel frame. Frames without a payload after the
// prefix are ignored.
func (w *Writer) WriteFrame(frame []byte, ts time.Time) error {
	if len(frame) <= core.PacketInfoLen {
		return nil
	}
	pkt := frame[core.PacketInfoLen:]
	if len(pkt) > pcapSnapLen {
		pkt = pkt[:pcapSnapLen]
	}

	rec := make([]byte, recordHdrLen+len(pkt))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(ts.Unix()))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(ts.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(rec[8:12], uint32(len(pkt)))
	binary.LittleEndian.PutUint32(rec[12:16], uint32(len(frame)-core.PacketInfoLen))
	copy(rec[recordHdrLen:], pkt)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(rec); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Capture records frame, logging rather than returning write failures so
// forwarding is never interrupted by the capture file.
func (w *Writer) Capture(direction core.Direction, frame []byte) {
	if err := w.WriteFrame(frame, time.Now()); err != nil {
		logging.WithDirection(direction).Debugf("capture: %v", err)
	}
}

// Frames returns the number of records written.
func (w *Writer) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close closes the underlying file when the Writer owns it.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
