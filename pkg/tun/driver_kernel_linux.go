//go:build linux

package tun

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// openKernel opens /dev/net/tun without IFF_NO_PI, so the kernel prefixes
// every packet with struct tun_pi and expects it on writes.
func openKernel(name string) (io.ReadWriteCloser, string, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, "", errDriver(DriverKernel, err)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, "", errDriver(DriverKernel, err)
	}
	ifr.SetUint16(unix.IFF_TUN)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, "", errDriver(DriverKernel, err)
	}

	// Non-blocking so the runtime poller owns the fd and Close unblocks
	// pending reads.
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, "", errDriver(DriverKernel, err)
	}

	return os.NewFile(uintptr(fd), "/dev/net/tun"), ifr.Name(), nil
}
