//go:build linux

package tun

import (
	"io"
	"sync"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
	wgtun "golang.zx2c4.com/wireguard/tun"
)

// wgOffset is the headroom wireguard-go needs in front of every packet for
// its virtio-net header.
const wgOffset = 16

// wgFrames adapts a wireguard-go batch device to one frame per call. Read
// and Write each keep their own buffers so they can run concurrently.
type wgFrames struct {
	dev wgtun.Device

	// reader side
	bufs    [][]byte
	sizes   []int
	pending int
	next    int

	// writer side
	wbuf []byte

	closeOnce sync.Once
}

// openWireGuard creates the device through wireguard-go's tun package.
func openWireGuard(name string, mtu int) (io.ReadWriteCloser, string, error) {
	dev, err := wgtun.CreateTUN(name, mtu)
	if err != nil {
		return nil, "", errDriver(DriverWireGuard, err)
	}
	realName, err := dev.Name()
	if err != nil {
		dev.Close()
		return nil, "", errDriver(DriverWireGuard, err)
	}

	batch := dev.BatchSize()
	f := &wgFrames{
		dev:   dev,
		bufs:  make([][]byte, batch),
		sizes: make([]int, batch),
		wbuf:  make([]byte, wgOffset+mtu),
	}
	for i := range f.bufs {
		f.bufs[i] = make([]byte, wgOffset+mtu)
	}
	go f.drainEvents(realName)
	return f, realName, nil
}

func (f *wgFrames) drainEvents(name string) {
	for ev := range f.dev.Events() {
		logging.Debugf("tun (%s) event %d", name, ev)
	}
}

// Read returns the next packet of the current batch, reading a new batch
// when the previous one is used up.
func (f *wgFrames) Read(p []byte) (int, error) {
	if len(p) <= core.PacketInfoLen {
		return 0, io.ErrShortBuffer
	}
	for f.next >= f.pending {
		n, err := f.dev.Read(f.bufs, f.sizes, wgOffset)
		f.pending, f.next = n, 0
		if err != nil && n == 0 {
			return 0, err
		}
	}
	pkt := f.bufs[f.next][wgOffset : wgOffset+f.sizes[f.next]]
	f.next++
	core.PutPacketInfo(p, pkt)
	n := copy(p[core.PacketInfoLen:], pkt)
	return n + core.PacketInfoLen, nil
}

// Write strips the prefix and writes the packet with the required headroom.
func (f *wgFrames) Write(p []byte) (int, error) {
	if len(p) < core.PacketInfoLen {
		return 0, io.ErrShortWrite
	}
	pkt := p[core.PacketInfoLen:]
	need := wgOffset + len(pkt)
	if cap(f.wbuf) < need {
		f.wbuf = make([]byte, need)
	}
	buf := f.wbuf[:need]
	copy(buf[wgOffset:], pkt)
	if _, err := f.dev.Write([][]byte{buf}, wgOffset); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *wgFrames) Close() error {
	var err error
	f.closeOnce.Do(func() { err = f.dev.Close() })
	return err
}
