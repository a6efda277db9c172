package engine

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/nao1215/bannerscan/internal/gate"
	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/bannerscan/internal/protocol"
	"github.com/nao1215/bannerscan/internal/timeout"
	"golang.org/x/net/proxy"
	"golang.org/x/sync/errgroup"
)

// Scheduler drives connection tasks for a stream of targets under the
// configured gates and timeout policy. A Scheduler holds no per-run state
// beyond its gates, so one instance must not run two scans at once.
type Scheduler struct {
	limiter  *gate.RateLimiter
	gate     *gate.ConcurrencyGate
	dialer   proxy.ContextDialer
	selector *protocol.Selector
	policy   timeout.Policy
	mode     model.Mode
	maxBytes int
	probe    protocol.Options
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for scheduling events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRateLimiter sets the limiter every task passes before connecting.
func WithRateLimiter(l *gate.RateLimiter) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithConcurrencyGate sets the gate that bounds in-flight tasks.
func WithConcurrencyGate(g *gate.ConcurrencyGate) Option {
	return func(s *Scheduler) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithDialer sets how connections are made, such as through a SOCKS5 proxy.
func WithDialer(d proxy.ContextDialer) Option {
	return func(s *Scheduler) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithSelector sets how the probe variant is chosen per port.
func WithSelector(sel *protocol.Selector) Option {
	return func(s *Scheduler) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithPolicy sets the timeout policy.
func WithPolicy(p timeout.Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

// WithMode sets passive or active probing.
func WithMode(m model.Mode) Option {
	return func(s *Scheduler) {
		s.mode = m
	}
}

// WithMaxBytes caps the captured banner per connection.
func WithMaxBytes(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithProbeOptions sets the knobs passed to every probe.
func WithProbeOptions(opts protocol.Options) Option {
	return func(s *Scheduler) {
		s.probe = opts
	}
}

// New creates a Scheduler. Without options it uses the default gates, the
// default timeout policy, a direct dialer and passive mode.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		policy:   timeout.DefaultPolicy(),
		mode:     model.ModePassive,
		maxBytes: protocol.DefaultMaxBytes,
		probe:    protocol.DefaultOptions(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.limiter == nil {
		s.limiter = gate.NewRateLimiter(gate.DefaultRate, 0)
	}
	if s.gate == nil {
		s.gate = gate.NewConcurrencyGate(gate.DefaultConcurrency)
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{}
	}
	if s.selector == nil {
		// An empty hint and mapping cannot fail.
		s.selector, _ = protocol.NewSelector("", nil) //nolint:errcheck
	}

	return s
}

// Stats summarizes a finished run.
type Stats struct {
	// Total is the number of results emitted.
	Total int

	// ByKind counts results per outcome kind.
	ByKind map[model.OutcomeKind]int

	// PeakInFlight is the highest number of tasks that held a slot at once.
	PeakInFlight int

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Count returns the number of results of the given kind.
func (st Stats) Count(kind model.OutcomeKind) int {
	return st.ByKind[kind]
}

// Run consumes targets until the channel is closed or ctx is cancelled and
// calls handle once per result from a single goroutine.
//
// Each target read from the channel yields exactly one result, including
// targets whose task was cut short by cancellation. Run returns ctx.Err()
// when it stopped admitting early.
func (s *Scheduler) Run(ctx context.Context, targets <-chan model.Target, handle func(*model.ConnectionResult)) (Stats, error) {
	s.logger.Info("starting scan",
		"concurrency", s.gate.Capacity(),
		"rate", s.limiter.Rate(),
		"burst", s.limiter.Burst(),
		"mode", s.mode.String(),
	)
	start := time.Now()

	stats := Stats{ByKind: make(map[model.OutcomeKind]int)}
	results := make(chan *model.ConnectionResult, s.gate.Capacity())
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for r := range results {
			stats.Total++
			stats.ByKind[r.Outcome.Kind]++
			if handle != nil {
				handle(r)
			}
		}
	}()

	// Tasks report failures as results, so the group never carries an error
	// and one task can never cancel its siblings.
	var g errgroup.Group
	runErr := s.admit(ctx, targets, &g, results)

	_ = g.Wait() //nolint:errcheck // tasks always return nil
	close(results)
	<-collected

	stats.PeakInFlight = s.gate.Peak()
	stats.Elapsed = time.Since(start)

	s.logger.Info("scan complete",
		"targets", stats.Total,
		"success", stats.Count(model.OutcomeSuccess),
		"probe_degraded", stats.Count(model.OutcomeProbeDegraded),
		"timed_out", stats.Count(model.OutcomeTimedOut),
		"connect_failed", stats.Count(model.OutcomeConnectFailed),
		"peak_in_flight", stats.PeakInFlight,
		"elapsed", stats.Elapsed,
	)

	return stats, runErr
}

// admit reads targets and spawns one task per target once a gate slot is
// held. It returns ctx.Err() when cancellation stopped admission.
func (s *Scheduler) admit(ctx context.Context, targets <-chan model.Target, g *errgroup.Group, results chan<- *model.ConnectionResult) error {
	for {
		var (
			t  model.Target
			ok bool
		)
		select {
		case <-ctx.Done():
			s.logger.Warn("scan cancelled, no longer admitting targets")
			return ctx.Err()
		case t, ok = <-targets:
			if !ok {
				return nil
			}
		}

		release, err := s.gate.Acquire(ctx)
		if err != nil {
			// The target was taken from the stream, so it still gets a result.
			results <- s.cancelled(t, time.Now())
			s.logger.Warn("scan cancelled, no longer admitting targets")
			return ctx.Err()
		}

		g.Go(func() error {
			defer release()
			results <- s.runTask(ctx, t)
			return nil
		})
	}
}
