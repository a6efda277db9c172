package gate

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultRate is the default number of connection attempts per second.
const DefaultRate = 64

// RateLimiter is a token bucket that bounds new connection attempts.
// Tokens refill continuously at the configured rate and the bucket holds at
// most burst tokens. A token is spent on the attempt, never returned.
type RateLimiter struct {
	limiter *rate.Limiter
	perSec  int
	burst   int
}

// DefaultBurst returns the burst used when none is configured: a tenth of the
// rate, at least one.
func DefaultBurst(perSecond int) int {
	if b := perSecond / 10; b > 1 {
		return b
	}
	return 1
}

// NewRateLimiter creates a RateLimiter admitting perSecond attempts per second
// with the given burst. Non-positive burst values fall back to DefaultBurst.
//
// The bucket starts full, so any one second window admits at most
// perSecond + burst attempts.
func NewRateLimiter(perSecond, burst int) *RateLimiter {
	if perSecond < 1 {
		perSecond = 1
	}
	if burst < 1 {
		burst = DefaultBurst(perSecond)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		perSec:  perSecond,
		burst:   burst,
	}
}

// Acquire blocks until a token is available and consumes it.
// It only fails when ctx is cancelled before a token becomes available.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Rate returns the configured attempts per second.
func (r *RateLimiter) Rate() int {
	return r.perSec
}

// Burst returns the bucket capacity.
func (r *RateLimiter) Burst() int {
	return r.burst
}
