package target

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"

	"github.com/nao1215/bannerscan/internal/model"
	"go4.org/netipx"
	"golang.org/x/sync/errgroup"
)

// DefaultLookupConcurrency bounds how many hostname lookups run at once.
const DefaultLookupConcurrency = 64

// maxLineLength is the longest target line that is parsed. Longer lines are
// skipped and reading continues with the next line.
const maxLineLength = 64 * 1024

// Resolver looks up the addresses of a hostname. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Stream expands input into targets.
type Stream struct {
	resolver   Resolver
	portFilter uint16
	lookups    int
	logger     *slog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithResolver sets the hostname resolver.
func WithResolver(r Resolver) Option {
	return func(s *Stream) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithPortFilter keeps only file entries with the given port. Zero keeps all.
func WithPortFilter(port uint16) Option {
	return func(s *Stream) {
		s.portFilter = port
	}
}

// WithLookupConcurrency bounds concurrent hostname lookups.
func WithLookupConcurrency(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.lookups = n
		}
	}
}

// WithLogger sets the logger used for skipped lines and failed lookups.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) {
		s.logger = logger
	}
}

// NewStream creates a Stream using the system resolver by default.
func NewStream(opts ...Option) *Stream {
	s := &Stream{
		resolver: net.DefaultResolver,
		lookups:  DefaultLookupConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// FromEntry streams the targets of a single entry. The port filter does not
// apply: it only narrows file input.
func (s *Stream) FromEntry(ctx context.Context, entry Entry) <-chan model.Target {
	out := make(chan model.Target)
	go func() {
		defer close(out)
		var g errgroup.Group
		s.emit(ctx, &g, entry, out)
		_ = g.Wait() //nolint:errcheck // lookups log their own failures
	}()
	return out
}

// FromReader streams the targets of every line in r. The channel is closed
// once the input is exhausted and every lookup has finished, or ctx ends.
func (s *Stream) FromReader(ctx context.Context, r io.Reader) <-chan model.Target {
	out := make(chan model.Target, s.lookups)
	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(s.lookups)

		reader := bufio.NewReaderSize(r, maxLineLength)
		lineNo := 0
		for {
			line, tooLong, err := readLine(reader)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.logger.Warn("failed to read target input", "line", lineNo, "error", err)
				}
				break
			}
			lineNo++
			if tooLong {
				s.logger.Warn("skipping oversized target line", "line", lineNo, "limit", maxLineLength)
				continue
			}

			entry, ok, err := ParseLine(line)
			if err != nil {
				s.logger.Warn("skipping invalid target line", "line", lineNo, "error", err)
				continue
			}
			if !ok {
				continue
			}
			if s.portFilter != 0 && entry.Port != s.portFilter {
				s.logger.Debug("skipping target outside port filter", "line", lineNo, "port", entry.Port)
				continue
			}
			if !s.emit(ctx, &g, entry, out) {
				break
			}
		}

		_ = g.Wait() //nolint:errcheck // lookups log their own failures
	}()
	return out
}

// readLine returns the next line without its line ending. A line that does
// not fit the reader's buffer is consumed whole and reported as tooLong.
func readLine(r *bufio.Reader) (line string, tooLong bool, err error) {
	b, isPrefix, err := r.ReadLine()
	if err != nil {
		return "", false, err
	}
	if !isPrefix {
		return string(b), false, nil
	}
	for isPrefix {
		if _, isPrefix, err = r.ReadLine(); err != nil {
			break
		}
	}
	return "", true, nil
}

// emit sends the targets of one entry. Hostname lookups run on g. It
// returns false once ctx is done.
func (s *Stream) emit(ctx context.Context, g *errgroup.Group, entry Entry, out chan<- model.Target) bool {
	switch {
	case entry.Addr.IsValid():
		return send(ctx, out, model.NewTarget(entry.Addr, entry.Port, ""))

	case entry.Prefix.IsValid():
		r := netipx.RangeOfPrefix(entry.Prefix)
		for addr := r.From(); addr.IsValid() && !r.To().Less(addr); addr = addr.Next() {
			if !send(ctx, out, model.NewTarget(addr, entry.Port, "")) {
				return false
			}
		}
		return true

	default:
		if ctx.Err() != nil {
			return false
		}
		g.Go(func() error {
			addrs, err := s.resolver.LookupNetIP(ctx, "ip", entry.Host)
			if err != nil {
				s.logger.Warn("skipping unresolvable host", "host", entry.Host, "error", err)
				return nil
			}
			for _, addr := range addrs {
				if !send(ctx, out, model.NewTarget(addr, entry.Port, entry.Host)) {
					return nil
				}
			}
			return nil
		})
		return true
	}
}

// send delivers t unless ctx ends first.
func send(ctx context.Context, out chan<- model.Target, t model.Target) bool {
	select {
	case out <- t:
		return true
	case <-ctx.Done():
		return false
	}
}
