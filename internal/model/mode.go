package model

import (
	"errors"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for unrecognized mode names.
var ErrUnknownMode = errors.New("unknown mode: expected passive or active")

// Mode selects how a probe interacts with the target.
type Mode int

const (
	// ModePassive never writes to the socket. The probe only reads what the
	// service sends unprompted.
	ModePassive Mode = iota

	// ModeActive runs the protocol-specific write/read sequence to elicit
	// richer metadata.
	ModeActive
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModePassive:
		return "passive"
	case ModeActive:
		return "active"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name into a Mode. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passive":
		return ModePassive, nil
	case "active":
		return ModeActive, nil
	default:
		return ModePassive, ErrUnknownMode
	}
}

// Phase identifies which part of a connection task was running when a
// deadline fired.
type Phase string

const (
	// PhaseConnect covers the TCP connect (or proxy CONNECT) attempt.
	PhaseConnect Phase = "connect"

	// PhaseProbe covers every read and write after the connection is up.
	PhaseProbe Phase = "probe"
)
