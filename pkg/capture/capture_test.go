package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipv4Frame(payload int) []byte {
	frame := make([]byte, core.PacketInfoLen+20+payload)
	binary.BigEndian.PutUint16(frame[2:4], core.EtherTypeIPv4)
	frame[core.PacketInfoLen] = 0x45
	return frame
}

func TestWriterHeader(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf)
	require.NoError(t, err)

	hdr := buf.Bytes()
	require.Len(t, hdr, globalHdrLen)
	assert.Equal(t, uint32(pcapMagic), binary.LittleEndian.Uint32(hdr[0:4]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(hdr[4:6]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(hdr[6:8]))
	assert.Equal(t, uint32(linkTypeRaw), binary.LittleEndian.Uint32(hdr[20:24]))
}

func TestWriteFrameStripsPacketInfo(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	frame := ipv4Frame(8)
	ts := time.Unix(1700000000, 250000000)
	require.NoError(t, w.WriteFrame(frame, ts))

	rec := buf.Bytes()[globalHdrLen:]
	require.Len(t, rec, recordHdrLen+28)
	assert.Equal(t, uint32(1700000000), binary.LittleEndian.Uint32(rec[0:4]))
	assert.Equal(t, uint32(250000), binary.LittleEndian.Uint32(rec[4:8]))
	assert.Equal(t, uint32(28), binary.LittleEndian.Uint32(rec[8:12]))
	assert.Equal(t, uint32(28), binary.LittleEndian.Uint32(rec[12:16]))
	assert.Equal(t, frame[core.PacketInfoLen:], rec[recordHdrLen:])
	assert.Equal(t, uint64(1), w.Frames())
}

func TestWriteFrameSkipsBareHeader(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.WriteFrame(make([]byte, core.PacketInfoLen), time.Now()))
	assert.Equal(t, globalHdrLen, buf.Len())
	assert.Zero(t, w.Frames())
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.calls++
	if f.calls > 1 {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func TestCaptureSwallowsWriteErrors(t *testing.T) {
	fw := &failingWriter{}
	w, err := NewWriter(fw)
	require.NoError(t, err)

	assert.NotPanics(t, func() { w.Capture(core.InterfaceToSocket, ipv4Frame(0)) })
	assert.Zero(t, w.Frames())
	assert.NoError(t, w.Close())
}

func TestCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunnel.pcap")
	w, err := Create(path)
	require.NoError(t, err)

	w.Capture(core.SocketToInterface, ipv4Frame(4))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, globalHdrLen+recordHdrLen+24)

	_, err = Create(filepath.Join(t.TempDir(), "missing", "x.pcap"))
	assert.Error(t, err)
}
