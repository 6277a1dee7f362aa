package core

import (
	"fmt"
	"strings"
)

// Role selects whether the transport endpoint listens or initiates.
type Role int

const (
	// Client connects (TCP) or sends (UDP) to a remote address.
	Client Role = iota
	// Server binds a local address and waits for the single peer.
	Server
)

// String returns the lower-case role name.
func (r Role) String() string {
	switch r {
	case Client:
		return "client"
	case Server:
		return "server"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Protocol selects the transport protocol.
type Protocol int

const (
	// UDP carries one frame per datagram.
	UDP Protocol = iota
	// TCP carries frames as a byte stream.
	TCP
)

// String returns the network name understood by the net package.
func (p Protocol) String() string {
	switch p {
	case UDP:
		return "udp"
	case TCP:
		return "tcp"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// ParseProtocol maps "tcp"/"udp" (any case) to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return TCP, nil
	case "udp":
		return UDP, nil
	default:
		return UDP, fmt.Errorf("unknown transport protocol: %q", s)
	}
}

// EndpointConfig describes how the single transport stream is established.
// It is built once from validated configuration and consumed once.
type EndpointConfig struct {
	// Role is Server (bind) or Client (connect).
	Role Role `json:"role" yaml:"role"`

	// Protocol is TCP or UDP.
	Protocol Protocol `json:"protocol" yaml:"protocol"`

	// Address is the local bind address for servers and the remote
	// address for clients, in host:port form.
	Address string `json:"address" yaml:"address"`
}

// String renders the endpoint as "tcp server 127.0.0.1:9000".
func (c EndpointConfig) String() string {
	return fmt.Sprintf("%s %s %s", c.Protocol, c.Role, c.Address)
}

// TunnelConfig carries the interface-side parameters the forwarding engine
// depends on.
type TunnelConfig struct {
	// Name is the TUN device name.
	Name string `json:"name" yaml:"name"`

	// Address is the local tunnel address in CIDR notation (e.g. "10.0.0.1/24").
	Address string `json:"address" yaml:"address"`

	// MTU is the maximum IP packet size carried by the interface.
	MTU int `json:"mtu" yaml:"mtu"`

	// Driver selects the TUN backend (kernel, water, wireguard).
	Driver string `json:"driver" yaml:"driver"`
}

// FrameCapacity returns the forwarding buffer size for the tunnel: the MTU
// plus the packet-info prefix.
func (c TunnelConfig) FrameCapacity() int {
	return FrameCapacity(c.MTU)
}
