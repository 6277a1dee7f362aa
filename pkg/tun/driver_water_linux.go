//go:build linux

package tun

import (
	"io"

	"github.com/songgao/water"
)

// openWater creates the device through water, which always sets IFF_NO_PI;
// the prefix is synthesized by piFrames.
func openWater(name string) (io.ReadWriteCloser, string, error) {
	ifce, err := water.New(water.Config{
		DeviceType:             water.TUN,
		PlatformSpecificParams: water.PlatformSpecificParams{Name: name},
	})
	if err != nil {
		return nil, "", errDriver(DriverWater, err)
	}
	return piFrames{rw: ifce}, ifce.Name(), nil
}
