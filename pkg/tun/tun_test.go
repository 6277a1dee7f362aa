package tun

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packetPipe is a bare-packet device: Read pops queued packets, Write
// records them.
type packetPipe struct {
	in     [][]byte
	out    [][]byte
	closed bool
}

func (p *packetPipe) Read(b []byte) (int, error) {
	if len(p.in) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.in[0])
	p.in = p.in[1:]
	return n, nil
}

func (p *packetPipe) Write(b []byte) (int, error) {
	p.out = append(p.out, append([]byte(nil), b...))
	return len(b), nil
}

func (p *packetPipe) Close() error { p.closed = true; return nil }

func testIPv4Packet(size int) []byte {
	pkt := make([]byte, size)
	pkt[0] = 0x45
	pkt[2] = byte(size >> 8)
	pkt[3] = byte(size)
	for i := 20; i < size; i++ {
		pkt[i] = byte(i)
	}
	return pkt
}

func TestParseDriver(t *testing.T) {
	for _, in := range []string{"kernel", "WATER", " wireguard "} {
		_, err := ParseDriver(in)
		assert.NoError(t, err, in)
	}
	d, err := ParseDriver("")
	require.NoError(t, err)
	assert.Equal(t, DriverKernel, d)

	_, err = ParseDriver("tap")
	assert.Error(t, err)
}

func TestPIFrames_Read(t *testing.T) {
	v4 := testIPv4Packet(60)
	v6 := make([]byte, 48)
	v6[0] = 0x60
	pipe := &packetPipe{in: [][]byte{v4, v6}}
	f := piFrames{rw: pipe}

	buf := make([]byte, core.FrameCapacity(1500))
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.Equal(t, []byte{0, 0, 0x08, 0x00}, buf[:4])
	assert.Equal(t, v4, buf[4:n])

	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 52, n)
	assert.Equal(t, []byte{0, 0, 0x86, 0xdd}, buf[:4])

	n, err = f.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = f.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestPIFrames_Write(t *testing.T) {
	pipe := &packetPipe{}
	f := piFrames{rw: pipe}

	pkt := testIPv4Packet(100)
	frame := append([]byte{0, 0, 0x08, 0x00}, pkt...)
	n, err := f.Write(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n, "count includes the prefix")
	require.Len(t, pipe.out, 1)
	assert.Equal(t, pkt, pipe.out[0])

	_, err = f.Write([]byte{0, 0})
	assert.Error(t, err)

	require.NoError(t, f.Close())
	assert.True(t, pipe.closed)
}

func TestDevice_Metrics(t *testing.T) {
	pkt := testIPv4Packet(40)
	d := newDevice("tun-test", 1500, piFrames{rw: &packetPipe{in: [][]byte{pkt}}})
	assert.Equal(t, "tun-test", d.Name())
	assert.Equal(t, 1500, d.MTU())

	buf := make([]byte, 1504)
	n, err := d.Read(buf)
	require.NoError(t, err)
	_, err = d.Write(buf[:n])
	require.NoError(t, err)
	_, err = d.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	m := d.Metrics()
	assert.Equal(t, uint64(1), m.PacketsReceived)
	assert.Equal(t, uint64(44), m.BytesReceived)
	assert.Equal(t, uint64(1), m.PacketsSent)
	assert.Equal(t, uint64(44), m.BytesSent)
	assert.Equal(t, uint64(1), m.Errors)
}

func TestMockDevice(t *testing.T) {
	m := NewMockDevice("mock-tun", 1500)

	frame := append([]byte{0, 0, 0x08, 0x00}, testIPv4Packet(20)...)
	require.NoError(t, m.SimulatePacketReceived(frame))

	buf := make([]byte, 1504)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, frame, buf[:n])

	n, err = m.Write(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)
	assert.Len(t, m.WaitForPackets(1, time.Second), 1)

	m.ShortWrites(3)
	n, err = m.Write(frame)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, len(frame)-3, n)
	m.ShortWrites(0)

	boom := errors.New("boom")
	m.FailWrites(boom)
	_, err = m.Write(frame)
	assert.ErrorIs(t, err, boom)
	m.FailWrites(nil)

	m.ClearWrittenPackets()
	assert.Empty(t, m.GetWrittenPackets())

	m.SimulateEOF()
	_, err = m.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, m.Close())
	_, err = m.Write(frame)
	assert.ErrorIs(t, err, ErrMockClosed)

	metrics := m.Metrics()
	assert.Equal(t, uint64(1), metrics.PacketsReceived)
	assert.Equal(t, uint64(2), metrics.PacketsSent)
	assert.Equal(t, uint64(1), metrics.Errors)
}

func TestMockDevice_CloseUnblocksRead(t *testing.T) {
	m := NewMockDevice("mock-tun", 1500)
	done := make(chan error, 1)
	go func() {
		_, err := m.Read(make([]byte, 16))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrMockClosed)
	case <-time.After(time.Second):
		t.Fatal("read not unblocked by close")
	}
}
