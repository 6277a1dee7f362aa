//go:build linux

package tun

import (
	"fmt"
	"io"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/logging"
)

// Open creates the TUN device with the configured driver, assigns its
// address and MTU, and brings it up. Failures are *core.SetupError.
// This operation requires CAP_NET_ADMIN.
func Open(cfg Config) (*Device, error) {
	driver, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, &core.SetupError{Stage: "open", Addr: cfg.Name, Err: err}
	}

	var (
		rw   io.ReadWriteCloser
		name string
	)
	switch driver {
	case DriverKernel:
		rw, name, err = openKernel(cfg.Name)
	case DriverWater:
		rw, name, err = openWater(cfg.Name)
	case DriverWireGuard:
		rw, name, err = openWireGuard(cfg.Name, cfg.MTU)
	}
	if err != nil {
		return nil, &core.SetupError{Stage: "open", Addr: cfg.Name, Err: err}
	}

	if err := configureLink(name, cfg.Address, cfg.MTU); err != nil {
		rw.Close()
		return nil, &core.SetupError{Stage: "configure", Addr: name, Err: err}
	}

	logging.Debugf("tun (%s) created with driver %s, address %s, mtu %d", name, driver, cfg.Address, cfg.MTU)
	return newDevice(name, cfg.MTU, rw), nil
}

func errDriver(driver string, err error) error {
	return fmt.Errorf("%s driver: %w", driver, err)
}
