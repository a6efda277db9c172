package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/bannerscan/internal/timeout"
)

// DefaultMaxBytes is the default cap on captured banner bytes per connection.
const DefaultMaxBytes = 4096

// readChunk is the size of a single socket read.
const readChunk = 1024

// framer reports whether the bytes read so far in a step form a complete
// reply. A nil framer means "read until the peer goes quiet".
type framer func(data []byte) bool

// stopReason explains why a read step ended.
type stopReason int

const (
	// stopComplete means the framer recognized a complete reply.
	stopComplete stopReason = iota
	// stopClosed means the peer closed the connection.
	stopClosed
	// stopSizeLimit means the capture buffer is full.
	stopSizeLimit
	// stopReadTimeout means the per-read timeout fired.
	stopReadTimeout
	// stopDeadline means the overall budget ran out or the scan was cancelled.
	stopDeadline
	// stopError means the read failed for another reason, such as a reset.
	stopError
)

// Session is the probe's exclusive view of one connection. It enforces the
// timeout budget on every read and write, caps the captured bytes and
// collects metadata and degrade notes. A Session is not safe for concurrent use.
type Session struct {
	ctx       context.Context
	conn      net.Conn
	budget    *timeout.Budget
	maxBytes  int
	capture   []byte
	truncated bool
	metadata  map[string]string
	notes     []string
	timedOut  bool
	halted    bool
	writes    int
	written   int
}

// NewSession wraps conn for a probe. maxBytes caps the captured banner;
// values below one fall back to DefaultMaxBytes.
func NewSession(ctx context.Context, conn net.Conn, budget *timeout.Budget, maxBytes int) *Session {
	if maxBytes < 1 {
		maxBytes = DefaultMaxBytes
	}
	return &Session{
		ctx:      ctx,
		conn:     conn,
		budget:   budget,
		maxBytes: maxBytes,
		metadata: make(map[string]string),
	}
}

// Writes returns how many write calls the probe made.
func (s *Session) Writes() int {
	return s.writes
}

// BytesWritten returns the total number of bytes written.
func (s *Session) BytesWritten() int {
	return s.written
}

// Captured returns the bytes captured so far.
func (s *Session) Captured() []byte {
	return s.capture
}

// set stores a metadata value, ignoring empty values.
func (s *Session) set(key, value string) {
	if value == "" {
		return
	}
	s.metadata[key] = value
}

// note records a degrade note.
func (s *Session) note(format string, args ...any) {
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
}

// parseFailed records a parse failure as a degrade note.
func (s *Session) parseFailed(err *ParseError) {
	if err != nil {
		s.notes = append(s.notes, err.Error())
	}
}

// halt stops the sequence; later sends and reads are skipped.
func (s *Session) halt(format string, args ...any) {
	s.note(format, args...)
	s.halted = true
}

// room returns how many more bytes may be captured.
func (s *Session) room() int {
	return s.maxBytes - len(s.capture)
}

// send writes one request. It returns false when the sequence must stop.
func (s *Session) send(step string, payload []byte) bool {
	if s.halted {
		return false
	}

	d, err := s.budget.NextRead()
	if err != nil {
		s.timedOut = true
		s.halt("%s: %v", step, err)
		return false
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(d)); err != nil {
		s.halt("%s: %v", step, err)
		return false
	}

	s.writes++
	n, err := s.conn.Write(payload)
	s.written += n
	if err != nil {
		if cause := s.deadlineErr(); cause != nil {
			s.timedOut = timeout.IsTimeout(cause)
			s.halt("%s: %v", step, cause)
			return false
		}
		s.halt("%s: write failed: %v", step, err)
		return false
	}
	return true
}

// read runs one read step starting from pending bytes that were already
// captured by an earlier step. It returns the step's bytes and why it ended.
func (s *Session) read(pending []byte, done framer) ([]byte, stopReason, error) {
	data := pending
	buf := make([]byte, readChunk)

	for {
		if done != nil && len(data) > 0 && done(data) {
			return data, stopComplete, nil
		}
		if s.room() <= 0 {
			s.truncated = true
			return data, stopSizeLimit, nil
		}

		d, err := s.budget.NextRead()
		if err != nil {
			return data, stopDeadline, err
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return data, stopError, err
		}

		n, err := s.conn.Read(buf[:min(len(buf), s.room())])
		if n > 0 {
			data = append(data, buf[:n]...)
			s.capture = append(s.capture, buf[:n]...)
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
			if done != nil && len(data) > 0 && done(data) {
				return data, stopComplete, nil
			}
			return data, stopClosed, err
		case isDeadline(err):
			if cause := s.readDeadlineCause(d); cause != nil {
				return data, stopDeadline, cause
			}
			return data, stopReadTimeout, err
		default:
			if cause := s.deadlineErr(); cause != nil {
				return data, stopDeadline, cause
			}
			return data, stopError, err
		}
	}
}

// expect reads a reply inside an active sequence. Anything short of a
// complete reply is noted, and the sequence stops when no further exchange
// makes sense. It returns the step bytes and whether the sequence may go on.
func (s *Session) expect(step string, pending []byte, done framer) ([]byte, bool) {
	if s.halted {
		return nil, false
	}

	data, reason, err := s.read(pending, done)
	fresh := len(data) > len(pending)

	switch reason {
	case stopComplete:
		return data, true
	case stopReadTimeout:
		if !fresh {
			s.timedOut = true
			s.halt("%s: no reply within read timeout", step)
			return data, false
		}
		if done != nil {
			s.note("%s: incomplete reply", step)
		}
		return data, true
	case stopClosed:
		if !fresh {
			s.halt("%s: connection closed by peer", step)
		} else {
			s.halt("%s: connection closed mid-reply", step)
		}
		return data, false
	case stopSizeLimit:
		s.halt("%s: capture limit of %d bytes reached", step, s.maxBytes)
		return data, false
	case stopDeadline:
		s.timedOut = timeout.IsTimeout(err)
		s.halt("%s: %v", step, err)
		return data, false
	default:
		s.halt("%s: read failed: %v", step, err)
		return data, false
	}
}

// collect reads a reply that the server may legitimately leave out. Only an
// overall timeout or a read error is noted.
func (s *Session) collect(step string, done framer) []byte {
	if s.halted {
		return nil
	}

	data, reason, err := s.read(nil, done)
	switch reason {
	case stopDeadline:
		s.timedOut = timeout.IsTimeout(err)
		s.halt("%s: %v", step, err)
	case stopError:
		s.halt("%s: read failed: %v", step, err)
	}
	return data
}

// grab reads an unsolicited banner. A partial banner is a normal result
// here; only an empty capture is worth a note.
func (s *Session) grab(done framer) []byte {
	data, reason, err := s.read(nil, done)

	switch reason {
	case stopComplete, stopSizeLimit:
	case stopReadTimeout:
		if len(data) == 0 {
			s.timedOut = true
		}
	case stopClosed:
		if len(data) == 0 {
			s.note("banner: connection closed before any data")
		}
	case stopDeadline:
		if !timeout.IsTimeout(err) {
			s.note("banner: %v", err)
		} else if len(data) == 0 {
			s.timedOut = true
		}
	default:
		s.note("banner: read failed: %v", err)
	}
	s.halted = true
	return data
}

// errScanCancelled is the degrade cause when the whole scan is stopped while
// a probe is running.
var errScanCancelled = errors.New("scan cancelled")

// deadlineErr explains why I/O was cut short by the task context or the
// overall budget. It returns nil when neither is the cause.
func (s *Session) deadlineErr() error {
	if err := s.ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &timeout.Error{Phase: model.PhaseProbe, Overall: true}
		}
		return errScanCancelled
	}
	if s.budget.Expired() {
		return &timeout.Error{Phase: model.PhaseProbe, Overall: true}
	}
	return nil
}

// readDeadlineCause explains a read deadline expiry for a read that was
// given d. A deadline taken from the remaining overall budget counts as an
// overall timeout even when the clock has not quite reached the budget end.
func (s *Session) readDeadlineCause(d time.Duration) error {
	if cause := s.deadlineErr(); cause != nil {
		return cause
	}
	if s.budget.ReadLimited(d) {
		return &timeout.Error{Phase: model.PhaseProbe, Overall: true}
	}
	return nil
}

// Outcome assembles the terminal outcome from what the session captured.
func (s *Session) Outcome() model.Outcome {
	var metadata map[string]string
	if len(s.metadata) > 0 {
		metadata = s.metadata
	}

	switch {
	case len(s.capture) == 0 && s.timedOut:
		return model.TimedOut(model.PhaseProbe)
	case len(s.notes) > 0:
		return model.ProbeDegraded(s.capture, s.truncated, strings.Join(s.notes, "; "), metadata)
	default:
		return model.Success(s.capture, s.truncated, metadata)
	}
}

// isDeadline reports whether err is a socket deadline expiry.
func isDeadline(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
