package timeout

import (
	"errors"
	"time"
)

// Policy validation errors.
var (
	// ErrNonPositive is returned when any of the three durations is zero or negative.
	ErrNonPositive = errors.New("timeouts must be greater than 0")

	// ErrOverallTooShort is returned when the overall timeout cannot even
	// cover the connect timeout.
	ErrOverallTooShort = errors.New("overall timeout must be greater than or equal to connect timeout")
)

// Default durations.
const (
	DefaultConnect = 1500 * time.Millisecond
	DefaultRead    = 2000 * time.Millisecond
	DefaultOverall = 4000 * time.Millisecond
)

// DefaultPolicy returns the policy built from the default durations.
func DefaultPolicy() Policy {
	return Policy{Connect: DefaultConnect, Read: DefaultRead, Overall: DefaultOverall}
}

// Policy holds the three independent deadlines for a connection task.
type Policy struct {
	// Connect bounds the connect attempt alone.
	Connect time.Duration

	// Read bounds each individual read within the probe.
	Read time.Duration

	// Overall bounds connect and probe combined, measured from task start.
	Overall time.Duration
}

// Validate checks that every duration is positive and that Overall >= Connect.
func (p Policy) Validate() error {
	if p.Connect <= 0 || p.Read <= 0 || p.Overall <= 0 {
		return ErrNonPositive
	}
	if p.Overall < p.Connect {
		return ErrOverallTooShort
	}
	return nil
}

// Start anchors a Budget at the given task start time.
func (p Policy) Start(start time.Time) *Budget {
	return &Budget{
		policy:   p,
		start:    start,
		deadline: start.Add(p.Overall),
		now:      time.Now,
	}
}
