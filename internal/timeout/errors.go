package timeout

import (
	"errors"
	"fmt"

	"github.com/nao1215/bannerscan/internal/model"
)

// Error reports that a deadline fired during a task phase.
type Error struct {
	// Phase is the phase that was active when the deadline fired.
	Phase model.Phase

	// Overall is true when the overall budget fired rather than the
	// phase's own timeout.
	Overall bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Overall {
		return fmt.Sprintf("overall timeout during %s", e.Phase)
	}
	return fmt.Sprintf("%s timeout", e.Phase)
}

// Timeout reports true so the error satisfies net.Error style checks.
func (e *Error) Timeout() bool {
	return true
}

// IsTimeout reports whether err is, or wraps, a timeout *Error.
func IsTimeout(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
