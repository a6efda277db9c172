package protocol

import (
	"fmt"
	"strings"
)

// Selector picks the probe variant for a target port.
//
// Precedence: an explicit hint wins, then the configured port mapping, then
// the built-in well-known ports. Anything else gets GenericRaw.
type Selector struct {
	hint    Protocol
	hinted  bool
	ports   map[uint16]Protocol
	builtin map[uint16]Protocol
}

// NewSelector builds a Selector from an explicit hint ("" or "auto" for none)
// and a port→protocol-name mapping.
func NewSelector(hint string, mapping map[uint16]string) (*Selector, error) {
	s := &Selector{
		ports:   make(map[uint16]Protocol, len(mapping)),
		builtin: make(map[uint16]Protocol),
	}

	for _, p := range All() {
		for _, port := range p.DefaultPorts() {
			s.builtin[port] = p
		}
	}

	if h := strings.TrimSpace(hint); h != "" && !strings.EqualFold(h, "auto") {
		p, err := ParseProtocol(h)
		if err != nil {
			return nil, fmt.Errorf("protocol hint %q: %w", hint, err)
		}
		s.hint = p
		s.hinted = true
	}

	for port, name := range mapping {
		p, err := ParseProtocol(name)
		if err != nil {
			return nil, fmt.Errorf("port %d mapped to %q: %w", port, name, err)
		}
		s.ports[port] = p
	}

	return s, nil
}

// Select returns the protocol to use for the given port.
func (s *Selector) Select(port uint16) Protocol {
	if s.hinted {
		return s.hint
	}
	if p, ok := s.ports[port]; ok {
		return p
	}
	if p, ok := s.builtin[port]; ok {
		return p
	}
	return GenericRaw
}
