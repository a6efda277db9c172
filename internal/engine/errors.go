package engine

import (
	"errors"
	"fmt"
	"syscall"
)

// Connect failure reasons reported in ConnectFailed outcomes.
const (
	ReasonRefused           = "connection refused"
	ReasonHostUnreachable   = "host unreachable"
	ReasonNetUnreachable    = "network unreachable"
	ReasonReset             = "connection reset"
	ReasonResourceExhausted = "local resource exhaustion"
	ReasonProxy             = "proxy failure"
	ReasonConnectFailed     = "connect failed"
	ReasonCancelled         = "scan cancelled"
)

// ErrProxy marks a dial failure caused by the proxy itself rather than the
// target. Dialers that go through a proxy wrap their errors with it.
var ErrProxy = errors.New("proxy failure")

// ConnectError describes why a connection could not be established.
type ConnectError struct {
	// Reason is one of the Reason* constants.
	Reason string

	// Err is the underlying dial error.
	Err error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying dial error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// classifyConnectError maps a dial error onto a ConnectError reason.
func classifyConnectError(err error) *ConnectError {
	reason := ReasonConnectFailed
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		reason = ReasonRefused
	case errors.Is(err, syscall.EHOSTUNREACH):
		reason = ReasonHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH):
		reason = ReasonNetUnreachable
	case errors.Is(err, syscall.ECONNRESET):
		reason = ReasonReset
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE),
		errors.Is(err, syscall.EADDRNOTAVAIL), errors.Is(err, syscall.ENOBUFS):
		reason = ReasonResourceExhausted
	case errors.Is(err, ErrProxy):
		reason = ReasonProxy
	}
	return &ConnectError{Reason: reason, Err: err}
}
