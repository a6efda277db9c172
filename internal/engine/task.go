package engine

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/bannerscan/internal/protocol"
)

// runTask performs one connection task and returns its single result. The
// caller holds the target's concurrency slot for the duration.
func (s *Scheduler) runTask(ctx context.Context, t model.Target) *model.ConnectionResult {
	p := s.selector.Select(t.Port())

	if err := s.limiter.Acquire(ctx); err != nil {
		return s.cancelled(t, time.Now())
	}

	budget := s.policy.Start(time.Now())
	result := &model.ConnectionResult{
		Target:    t,
		Protocol:  p.String(),
		Mode:      s.mode,
		ScannedAt: budget.Start(),
	}

	taskCtx, cancel := context.WithDeadline(ctx, budget.Deadline())
	defer cancel()

	conn, err := s.connect(taskCtx, t, budget.ConnectTimeout())
	if err != nil {
		result.Outcome = s.connectOutcome(ctx, err)
		result.Elapsed = budget.Elapsed()
		s.logger.Debug("connect failed",
			"target", t.String(),
			"protocol", p.String(),
			"outcome", result.Outcome.Kind.String(),
			"detail", result.Outcome.Detail(),
		)
		return result
	}
	defer conn.Close()
	result.ConnectTime = budget.Elapsed()

	// Cancellation or the overall deadline unblocks any read or write at once.
	stop := context.AfterFunc(taskCtx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0)) //nolint:errcheck
	})
	defer stop()

	session := protocol.NewSession(taskCtx, conn, budget, s.maxBytes)
	result.Outcome = protocol.Drive(p, session, s.mode, s.probe)
	result.Elapsed = budget.Elapsed()

	s.logger.Debug("probe finished",
		"target", t.String(),
		"protocol", p.String(),
		"outcome", result.Outcome.Kind.String(),
		"bytes", len(result.Outcome.Banner),
		"writes", session.Writes(),
		"elapsed", result.Elapsed,
	)
	return result
}

// connect dials the target within the connect timeout.
func (s *Scheduler) connect(ctx context.Context, t model.Target, limit time.Duration) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	conn, err := s.dialer.DialContext(dialCtx, "tcp", t.Address())
	if err != nil {
		if dialCtx.Err() != nil && errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, errConnectTimeout
		}
		return nil, err
	}
	return conn, nil
}

// errConnectTimeout marks a dial that ran out of time.
var errConnectTimeout = errors.New("connect timeout")

// connectOutcome turns a dial error into the task outcome.
func (s *Scheduler) connectOutcome(scanCtx context.Context, err error) model.Outcome {
	switch {
	case scanCtx.Err() != nil:
		return model.ConnectFailed(ReasonCancelled)
	case errors.Is(err, errConnectTimeout), isTimeout(err):
		return model.TimedOut(model.PhaseConnect)
	default:
		return model.ConnectFailed(classifyConnectError(err).Reason)
	}
}

// cancelled builds the result for a target whose task never got to connect
// because the scan was cancelled.
func (s *Scheduler) cancelled(t model.Target, at time.Time) *model.ConnectionResult {
	return &model.ConnectionResult{
		Target:    t,
		Protocol:  s.selector.Select(t.Port()).String(),
		Mode:      s.mode,
		Outcome:   model.ConnectFailed(ReasonCancelled),
		ScannedAt: at,
	}
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
