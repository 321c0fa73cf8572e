package provision

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Transport opens the sockets the captive portal listens on.
type Transport interface {
	ListenPacket(port int) (net.PacketConn, error)
	Listen(port int) (net.Listener, error)
}

// NetTransport opens real UDP and TCP sockets on Host. A zero Host binds
// all IPv4 interfaces.
type NetTransport struct {
	Host netip.Addr
}

func (t NetTransport) host() string {
	if !t.Host.IsValid() {
		return "0.0.0.0"
	}
	return t.Host.String()
}

func (t NetTransport) ListenPacket(port int) (net.PacketConn, error) {
	pc, err := net.ListenPacket("udp4", net.JoinHostPort(t.host(), strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on udp port %d: %w", port, err)
	}
	return pc, nil
}

func (t NetTransport) Listen(port int) (net.Listener, error) {
	l, err := net.Listen("tcp4", net.JoinHostPort(t.host(), strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on tcp port %d: %w", port, err)
	}
	return l, nil
}
