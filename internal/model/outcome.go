package model

// OutcomeKind tags the terminal state of a connection task.
type OutcomeKind int

const (
	// OutcomeSuccess means the probe completed and the banner was captured.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeTimedOut means a deadline fired before anything was captured.
	OutcomeTimedOut

	// OutcomeConnectFailed means the connection could not be established.
	OutcomeConnectFailed

	// OutcomeProbeDegraded means bytes were captured but a later step
	// failed or the response could not be parsed.
	OutcomeProbeDegraded
)

// String returns the snake_case name used in every output format.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeConnectFailed:
		return "connect_failed"
	case OutcomeProbeDegraded:
		return "probe_degraded"
	default:
		return "unknown"
	}
}

// AllOutcomeKinds lists every outcome kind in display order.
func AllOutcomeKinds() []OutcomeKind {
	return []OutcomeKind{
		OutcomeSuccess,
		OutcomeProbeDegraded,
		OutcomeTimedOut,
		OutcomeConnectFailed,
	}
}

// Outcome is the terminal state of one connection task.
// Which fields are meaningful depends on Kind:
//   - Success: Banner, Truncated, Metadata
//   - TimedOut: Phase
//   - ConnectFailed: Reason
//   - ProbeDegraded: Banner, Truncated, Note, Metadata
type Outcome struct {
	Kind      OutcomeKind
	Banner    []byte
	Truncated bool
	Metadata  map[string]string
	Phase     Phase
	Reason    string
	Note      string
}

// Success builds a successful outcome.
func Success(banner []byte, truncated bool, metadata map[string]string) Outcome {
	return Outcome{
		Kind:      OutcomeSuccess,
		Banner:    banner,
		Truncated: truncated,
		Metadata:  metadata,
	}
}

// TimedOut builds a timeout outcome for the given phase.
func TimedOut(phase Phase) Outcome {
	return Outcome{Kind: OutcomeTimedOut, Phase: phase}
}

// ConnectFailed builds a connect failure outcome.
func ConnectFailed(reason string) Outcome {
	return Outcome{Kind: OutcomeConnectFailed, Reason: reason}
}

// ProbeDegraded builds a degraded outcome that keeps the raw bytes.
func ProbeDegraded(banner []byte, truncated bool, note string, metadata map[string]string) Outcome {
	return Outcome{
		Kind:      OutcomeProbeDegraded,
		Banner:    banner,
		Truncated: truncated,
		Note:      note,
		Metadata:  metadata,
	}
}

// HasBanner reports whether the outcome carries captured bytes.
func (o Outcome) HasBanner() bool {
	return len(o.Banner) > 0
}

// Detail returns the single human-readable detail for the outcome: the
// timeout phase, the connect failure reason or the degrade note.
func (o Outcome) Detail() string {
	switch o.Kind {
	case OutcomeTimedOut:
		return string(o.Phase) + " timeout"
	case OutcomeConnectFailed:
		return o.Reason
	case OutcomeProbeDegraded:
		return o.Note
	default:
		return ""
	}
}
