package tun

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
)

// ErrMockClosed is returned by a closed MockDevice.
var ErrMockClosed = errors.New("mock tun device closed")

// MockDevice is an in-memory core.TUNDevice for testing that doesn't
// require kernel access or elevated privileges. Frames queued with
// SimulatePacketReceived are returned by Read; frames passed to Write are
// recorded for inspection.
type MockDevice struct {
	name string
	mtu  int

	packetCh chan []byte
	eofOnce  sync.Once
	closed   chan struct{}
	closeMu  sync.Once

	mu             sync.Mutex
	packetsWritten [][]byte
	written        chan struct{}
	writeErr       error
	shortBy        int
	writeDelay     time.Duration

	metrics core.TUNMetrics
}

// Ensure MockDevice implements core.TUNDevice
var _ core.TUNDevice = (*MockDevice)(nil)

// NewMockDevice creates a new mock TUN device for testing
func NewMockDevice(name string, mtu int) *MockDevice {
	return &MockDevice{
		name:     name,
		mtu:      mtu,
		packetCh: make(chan []byte, 100),
		closed:   make(chan struct{}),
		written:  make(chan struct{}, 1),
	}
}

// Name returns the name of the TUN device
func (m *MockDevice) Name() string { return m.name }

// MTU returns the Maximum Transmission Unit of the TUN device
func (m *MockDevice) MTU() int { return m.mtu }

// Read blocks until a simulated frame is available, end-of-stream was
// signalled, or the device is closed.
func (m *MockDevice) Read(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, ErrMockClosed
	case data, ok := <-m.packetCh:
		if !ok {
			return 0, io.EOF
		}
		atomic.AddUint64(&m.metrics.PacketsReceived, 1)
		atomic.AddUint64(&m.metrics.BytesReceived, uint64(len(data)))
		return copy(p, data), nil
	}
}

// Write records the frame. Configured faults are applied first.
func (m *MockDevice) Write(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, ErrMockClosed
	default:
	}

	m.mu.Lock()
	err, shortBy, delay := m.writeErr, m.shortBy, m.writeDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		atomic.AddUint64(&m.metrics.Errors, 1)
		return 0, err
	}
	n := len(p)
	if shortBy > 0 {
		n -= shortBy
		if n < 0 {
			n = 0
		}
	}

	dataCopy := make([]byte, n)
	copy(dataCopy, p[:n])

	m.mu.Lock()
	m.packetsWritten = append(m.packetsWritten, dataCopy)
	m.mu.Unlock()
	select {
	case m.written <- struct{}{}:
	default:
	}

	atomic.AddUint64(&m.metrics.PacketsSent, 1)
	atomic.AddUint64(&m.metrics.BytesSent, uint64(n))
	logging.Debugf("Mock TUN device %s wrote frame of length %d", m.name, n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Close unblocks pending reads; later reads and writes fail.
func (m *MockDevice) Close() error {
	m.closeMu.Do(func() { close(m.closed) })
	return nil
}

// Metrics returns metrics for the TUN device
func (m *MockDevice) Metrics() core.TUNMetrics {
	return core.TUNMetrics{
		PacketsReceived: atomic.LoadUint64(&m.metrics.PacketsReceived),
		PacketsSent:     atomic.LoadUint64(&m.metrics.PacketsSent),
		BytesReceived:   atomic.LoadUint64(&m.metrics.BytesReceived),
		BytesSent:       atomic.LoadUint64(&m.metrics.BytesSent),
		Errors:          atomic.LoadUint64(&m.metrics.Errors),
	}
}

// SimulatePacketReceived queues a frame to be returned by Read.
func (m *MockDevice) SimulatePacketReceived(data []byte) error {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	select {
	case m.packetCh <- dataCopy:
		return nil
	default:
		return fmt.Errorf("packet channel full, packet dropped")
	}
}

// SimulateEOF makes Read return io.EOF once queued frames are consumed.
func (m *MockDevice) SimulateEOF() {
	m.eofOnce.Do(func() { close(m.packetCh) })
}

// FailWrites makes every later Write fail with err (nil clears the fault).
func (m *MockDevice) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// ShortWrites makes every later Write accept `by` bytes fewer than offered
// and return io.ErrShortWrite with the short count.
func (m *MockDevice) ShortWrites(by int) {
	m.mu.Lock()
	m.shortBy = by
	m.mu.Unlock()
}

// SlowWrites delays every later Write by d.
func (m *MockDevice) SlowWrites(d time.Duration) {
	m.mu.Lock()
	m.writeDelay = d
	m.mu.Unlock()
}

// GetWrittenPackets returns the frames written to the device so far.
func (m *MockDevice) GetWrittenPackets() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.packetsWritten))
	for i, packet := range m.packetsWritten {
		result[i] = append([]byte(nil), packet...)
	}
	return result
}

// WaitForPackets waits until at least n frames were written or the timeout
// expires, and returns what was written.
func (m *MockDevice) WaitForPackets(n int, timeout time.Duration) [][]byte {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		pkts := m.GetWrittenPackets()
		if len(pkts) >= n {
			return pkts
		}
		select {
		case <-m.written:
		case <-deadline.C:
			return m.GetWrittenPackets()
		}
	}
}

// ClearWrittenPackets clears the recorded frames.
func (m *MockDevice) ClearWrittenPackets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packetsWritten = nil
}
