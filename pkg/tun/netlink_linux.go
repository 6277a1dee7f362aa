//go:build linux

package tun

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// configureLink sets the MTU, assigns the IPv4 address and brings the link
// up. The address is removed again if the link cannot be brought up.
func configureLink(name, cidr string, mtu int) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to find link '%s': %w", name, err)
	}

	if err := netlink.LinkSetMTU(link, mtu); err != nil {
		return fmt.Errorf("failed to set mtu %d on '%s': %w", mtu, name, err)
	}

	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return fmt.Errorf("invalid tunnel address '%s': %w", cidr, err)
	}
	if err := netlink.AddrAdd(link, addr); err != nil {
		return fmt.Errorf("failed to add address to '%s': %w", name, err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		_ = netlink.AddrDel(link, addr) // Rollback
		return fmt.Errorf("failed to bring up '%s': %w", name, err)
	}
	return nil
}
