package core

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// PacketInfoLen is the size of the link-layer metadata prefix (struct
// tun_pi: 2 bytes flags, 2 bytes EtherType) carried on every TUN frame.
const PacketInfoLen = 4

// EtherType values used in the packet-info prefix.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeIPv6 uint16 = 0x86dd
)

// FrameCapacity returns the buffer size needed to carry one frame for the
// given MTU.
func FrameCapacity(mtu int) int {
	return mtu + PacketInfoLen
}

// Global debug flag that can be set via configuration
var debugMode uint32

// SetDebugMode sets the global debug mode flag.
// When debug mode is enabled, every forwarded frame is traced.
func SetDebugMode(enabled bool) {
	if enabled {
		atomic.StoreUint32(&debugMode, 1)
	} else {
		atomic.StoreUint32(&debugMode, 0)
	}
}

// IsDebugMode returns whether debug mode is enabled
func IsDebugMode() bool {
	return atomic.LoadUint32(&debugMode) == 1
}

// PacketInfo is the decoded packet-info prefix.
type PacketInfo struct {
	Flags uint16
	Proto uint16
}

// PutPacketInfo writes the prefix for an IP packet into b[:PacketInfoLen].
// The EtherType is derived from the IP version nibble of packet.
func PutPacketInfo(b []byte, packet []byte) {
	proto := EtherTypeIPv4
	if len(packet) > 0 && packet[0]>>4 == 6 {
		proto = EtherTypeIPv6
	}
	binary.BigEndian.PutUint16(b[0:2], 0)
	binary.BigEndian.PutUint16(b[2:4], proto)
}

// ParsePacketInfo decodes the prefix of a frame.
func ParsePacketInfo(frame []byte) (PacketInfo, error) {
	if len(frame) < PacketInfoLen {
		return PacketInfo{}, fmt.Errorf("frame too short for packet info: %d bytes", len(frame))
	}
	return PacketInfo{
		Flags: binary.BigEndian.Uint16(frame[0:2]),
		Proto: binary.BigEndian.Uint16(frame[2:4]),
	}, nil
}

// DescribeFrame returns a short human-readable summary of a frame for debug
// traces. It never modifies the frame. Frames that cannot be parsed are
// described by their length only.
func DescribeFrame(frame []byte) string {
	if len(frame) <= PacketInfoLen {
		return fmt.Sprintf("len=%d", len(frame))
	}
	pkt := frame[PacketInfoLen:]
	switch pkt[0] >> 4 {
	case 4:
		h, err := ipv4.ParseHeader(pkt)
		if err != nil {
			return fmt.Sprintf("len=%d ipv4 (bad header: %v)", len(frame), err)
		}
		return fmt.Sprintf("len=%d ipv4 %s -> %s proto=%d ttl=%d", len(frame), h.Src, h.Dst, h.Protocol, h.TTL)
	case 6:
		h, err := ipv6.ParseHeader(pkt)
		if err != nil {
			return fmt.Sprintf("len=%d ipv6 (bad header: %v)", len(frame), err)
		}
		return fmt.Sprintf("len=%d ipv6 %s -> %s next=%d hop=%d", len(frame), h.Src, h.Dst, h.NextHeader, h.HopLimit)
	default:
		return fmt.Sprintf("len=%d", len(frame))
	}
}
