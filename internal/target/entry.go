package target

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// MaxPrefixAddresses bounds how many addresses one CIDR line may expand to.
const MaxPrefixAddresses = 1 << 16

// Entry is one parsed input line. Exactly one of Addr, Prefix and Host is set.
type Entry struct {
	// Addr is set for IP literals.
	Addr netip.Addr

	// Prefix is set for CIDR lines.
	Prefix netip.Prefix

	// Host is set for hostnames that still need resolving.
	Host string

	// Port is the TCP port.
	Port uint16
}

// ParseLine parses one input line. It returns ok=false for blank lines and
// comments.
func ParseLine(line string) (entry Entry, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false, nil
	}

	i := strings.LastIndexByte(line, ':')
	if i < 0 {
		return Entry{}, false, fmt.Errorf("%q: %w", line, ErrMissingPort)
	}

	port, err := ParsePort(line[i+1:])
	if err != nil {
		return Entry{}, false, fmt.Errorf("%q: %w", line, err)
	}

	entry, err = parseHost(line[:i])
	if err != nil {
		return Entry{}, false, fmt.Errorf("%q: %w", line, err)
	}
	entry.Port = port
	return entry, true, nil
}

// NewEntry builds an Entry from a separate host and port, as given on the
// command line.
func NewEntry(host string, port uint16) (Entry, error) {
	if port == 0 {
		return Entry{}, ErrInvalidPort
	}
	entry, err := parseHost(strings.TrimSpace(host))
	if err != nil {
		return Entry{}, fmt.Errorf("%q: %w", host, err)
	}
	entry.Port = port
	return entry, nil
}

// ParsePort parses a decimal TCP port.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, ErrInvalidPort
	}
	return uint16(n), nil
}

// parseHost classifies the host part of an entry.
func parseHost(host string) (Entry, error) {
	if strings.HasPrefix(host, "[") {
		if !strings.HasSuffix(host, "]") {
			return Entry{}, ErrInvalidHost
		}
		host = host[1 : len(host)-1]
	}
	if host == "" {
		return Entry{}, ErrInvalidHost
	}

	if strings.Contains(host, "/") {
		prefix, err := netip.ParsePrefix(host)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %v", ErrInvalidHost, err)
		}
		prefix = prefix.Masked()
		if prefix.Addr().BitLen()-prefix.Bits() > 16 {
			return Entry{}, fmt.Errorf("%w: %s covers more than %d addresses", ErrPrefixTooLarge, prefix, MaxPrefixAddresses)
		}
		return Entry{Prefix: prefix}, nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return Entry{Addr: addr.Unmap()}, nil
	}

	if !validHostname(host) {
		return Entry{}, ErrInvalidHost
	}
	return Entry{Host: strings.ToLower(host)}, nil
}

// validHostname accepts letters, digits, hyphens, underscores and dots.
func validHostname(host string) bool {
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}
