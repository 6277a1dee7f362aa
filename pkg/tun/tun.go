// Package tun opens and activates the TUN device and exposes it as a frame
// stream: every Read returns one packet-info prefix plus one IP packet and
// every Write takes the same.
package tun

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/irctrakz/prototun/pkg/core"
)

// Driver names accepted in configuration.
const (
	// DriverKernel opens /dev/net/tun with packet info enabled; the kernel
	// produces and consumes the prefix itself.
	DriverKernel = "kernel"
	// DriverWater uses github.com/songgao/water; the prefix is synthesized.
	DriverWater = "water"
	// DriverWireGuard uses wireguard-go's tun package; the prefix is synthesized.
	DriverWireGuard = "wireguard"
)

// ParseDriver validates a driver name. An empty name selects DriverKernel.
func ParseDriver(name string) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(name)); d {
	case "":
		return DriverKernel, nil
	case DriverKernel, DriverWater, DriverWireGuard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown tun driver: %q", name)
	}
}

// Config describes the device to create.
type Config struct {
	// Name is the interface name.
	Name string
	// Address is the interface address in CIDR notation.
	Address string
	// MTU is the interface MTU.
	MTU int
	// Driver is one of DriverKernel, DriverWater, DriverWireGuard.
	Driver string
}

// Device is an activated TUN device. It implements core.TUNDevice.
type Device struct {
	name    string
	mtu     int
	rw      io.ReadWriteCloser
	metrics core.TUNMetrics
}

// Ensure Device implements core.TUNDevice
var _ core.TUNDevice = (*Device)(nil)

func newDevice(name string, mtu int, rw io.ReadWriteCloser) *Device {
	return &Device{name: name, mtu: mtu, rw: rw}
}

// Name returns the name of the TUN device
func (d *Device) Name() string { return d.name }

// MTU returns the Maximum Transmission Unit of the TUN device
func (d *Device) MTU() int { return d.mtu }

// Read reads one frame.
func (d *Device) Read(p []byte) (int, error) {
	n, err := d.rw.Read(p)
	if n > 0 {
		atomic.AddUint64(&d.metrics.PacketsReceived, 1)
		atomic.AddUint64(&d.metrics.BytesReceived, uint64(n))
	}
	if err != nil {
		atomic.AddUint64(&d.metrics.Errors, 1)
	}
	return n, err
}

// Write injects one frame.
func (d *Device) Write(p []byte) (int, error) {
	n, err := d.rw.Write(p)
	if n > 0 {
		atomic.AddUint64(&d.metrics.PacketsSent, 1)
		atomic.AddUint64(&d.metrics.BytesSent, uint64(n))
	}
	if err != nil {
		atomic.AddUint64(&d.metrics.Errors, 1)
	}
	return n, err
}

// Close closes the device; pending reads and writes return an error.
func (d *Device) Close() error { return d.rw.Close() }

// Metrics returns a snapshot of the device counters
func (d *Device) Metrics() core.TUNMetrics {
	return core.TUNMetrics{
		PacketsReceived: atomic.LoadUint64(&d.metrics.PacketsReceived),
		PacketsSent:     atomic.LoadUint64(&d.metrics.PacketsSent),
		BytesReceived:   atomic.LoadUint64(&d.metrics.BytesReceived),
		BytesSent:       atomic.LoadUint64(&d.metrics.BytesSent),
		Errors:          atomic.LoadUint64(&d.metrics.Errors),
	}
}
