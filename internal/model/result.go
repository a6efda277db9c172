package model

import "time"

// ConnectionResult is the single terminal record produced for a target.
// The scheduler owns it until it is handed to the result sink.
type ConnectionResult struct {
	// Target is the endpoint that was scanned.
	Target Target

	// Protocol is the name of the probe variant that ran.
	Protocol string

	// Mode is the probing mode used for this target.
	Mode Mode

	// Outcome is the terminal state of the task.
	Outcome Outcome

	// Elapsed is the time from task start (after admission) to the result.
	Elapsed time.Duration

	// ConnectTime is how long the connect phase took.
	// Zero when the connection was never established.
	ConnectTime time.Duration

	// ScannedAt is when the task started.
	ScannedAt time.Time
}

// BannerView returns the rendering helper for the captured banner.
func (r *ConnectionResult) BannerView() Banner {
	return Banner{Raw: r.Outcome.Banner, Truncated: r.Outcome.Truncated}
}

// Status returns the outcome kind name.
func (r *ConnectionResult) Status() string {
	return r.Outcome.Kind.String()
}
