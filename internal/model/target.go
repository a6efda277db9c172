package model

import (
	"net/netip"
	"strconv"
)

// Target is a single endpoint to scan.
// It is an immutable value; the target stream produces it and exactly one
// connection task consumes it.
type Target struct {
	// Addr is the resolved IP address and TCP port.
	Addr netip.AddrPort

	// Host is the hostname the address was resolved from.
	// Empty when the input was an IP literal.
	Host string
}

// NewTarget creates a Target for the given address and originating hostname.
func NewTarget(addr netip.Addr, port uint16, host string) Target {
	return Target{
		Addr: netip.AddrPortFrom(addr.Unmap(), port),
		Host: host,
	}
}

// Port returns the TCP port of the target.
func (t Target) Port() uint16 {
	return t.Addr.Port()
}

// Address returns the dialable "ip:port" form of the target.
// IPv6 addresses are bracketed.
func (t Target) Address() string {
	return t.Addr.String()
}

// String returns the target for display, preferring the hostname when known.
func (t Target) String() string {
	if t.Host == "" {
		return t.Addr.String()
	}
	return t.Host + " (" + t.Addr.String() + ")"
}

// HostOrIP returns the originating hostname, or the IP when there is none.
func (t Target) HostOrIP() string {
	if t.Host != "" {
		return t.Host
	}
	return t.Addr.Addr().String()
}

// PortString returns the port as a decimal string.
func (t Target) PortString() string {
	return strconv.Itoa(int(t.Addr.Port()))
}
