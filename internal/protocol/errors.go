package protocol

import (
	"errors"
	"fmt"
)

// Parse failure causes. They are wrapped in *ParseError and end up as notes
// on a degraded result; none of them aborts a task.
var (
	// ErrShortResponse means the response ended before a required field.
	ErrShortResponse = errors.New("response too short")

	// ErrMalformedResponse means the response does not follow the protocol's framing.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnexpectedResponse means the response is well-formed but is not
	// the reply the step expects.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// ParseError describes a response that could not be parsed.
type ParseError struct {
	// Protocol is the probe variant that was parsing.
	Protocol Protocol

	// Step names the probe step, such as "banner" or "FEAT".
	Step string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Protocol, e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// parseErr is shorthand for building a *ParseError.
func parseErr(p Protocol, step string, err error) *ParseError {
	return &ParseError{Protocol: p, Step: step, Err: err}
}

// parseErrf builds a *ParseError whose cause wraps base with extra detail.
func parseErrf(p Protocol, step string, base error, format string, args ...any) *ParseError {
	return &ParseError{Protocol: p, Step: step, Err: fmt.Errorf("%w: "+format, append([]any{base}, args...)...)}
}
