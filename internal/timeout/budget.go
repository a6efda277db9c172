package timeout

import (
	"time"

	"github.com/nao1215/bannerscan/internal/model"
)

// Budget tracks the remaining overall time of one task.
// A Budget belongs to a single task and is not safe for concurrent use.
type Budget struct {
	policy   Policy
	start    time.Time
	deadline time.Time
	now      func() time.Time
}

// Start returns the task start time.
func (b *Budget) Start() time.Time {
	return b.start
}

// Deadline returns the absolute overall deadline.
func (b *Budget) Deadline() time.Time {
	return b.deadline
}

// Elapsed returns the time since task start.
func (b *Budget) Elapsed() time.Duration {
	return b.now().Sub(b.start)
}

// Remaining returns what is left of the overall budget, never negative.
func (b *Budget) Remaining() time.Duration {
	left := b.deadline.Sub(b.now())
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the overall budget is used up.
func (b *Budget) Expired() bool {
	return b.Remaining() <= 0
}

// ConnectTimeout returns min(connect timeout, remaining overall budget).
func (b *Budget) ConnectTimeout() time.Duration {
	return min(b.policy.Connect, b.Remaining())
}

// NextRead returns the timeout for the next read: min(read timeout,
// remaining overall budget). It returns a probe-phase *Error once the
// overall budget is exhausted.
func (b *Budget) NextRead() (time.Duration, error) {
	left := b.Remaining()
	if left <= 0 {
		return 0, &Error{Phase: model.PhaseProbe, Overall: true}
	}
	return min(b.policy.Read, left), nil
}

// ReadLimited reports whether a read given d was capped by the overall
// budget rather than by the read timeout.
func (b *Budget) ReadLimited(d time.Duration) bool {
	return d < b.policy.Read
}
