//go:build integration && linux
// +build integration,linux

package tun

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/stretchr/testify/require"
)

// TestOpen_AllDrivers creates a real device per driver and checks that a
// UDP datagram sent into the tunnel subnet comes out as a frame with the
// IPv4 packet-info prefix. Requires root.
func TestOpen_AllDrivers(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
	for i, driver := range []string{DriverKernel, DriverWater, DriverWireGuard} {
		t.Run(driver, func(t *testing.T) {
			addr := net.IPv4(10, 213, byte(i), 1)
			dev, err := Open(Config{
				Name:    "prototest" + string(rune('0'+i)),
				Address: addr.String() + "/24",
				MTU:     1400,
				Driver:  driver,
			})
			require.NoError(t, err)
			defer dev.Close()

			go func() {
				c, err := net.Dial("udp", net.IPv4(10, 213, byte(i), 2).String()+":9")
				if err == nil {
					c.Write([]byte("probe"))
					c.Close()
				}
			}()

			buf := make([]byte, core.FrameCapacity(1400))
			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) {
				n, err := dev.Read(buf)
				require.NoError(t, err)
				pi, err := core.ParsePacketInfo(buf[:n])
				require.NoError(t, err)
				if pi.Proto == core.EtherTypeIPv4 && buf[core.PacketInfoLen]>>4 == 4 {
					return
				}
			}
			t.Fatal("no IPv4 frame observed")
		})
	}
}
