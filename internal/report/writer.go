package report

import (
	"errors"
	"io"

	"github.com/nao1215/bannerscan/internal/model"
)

// Writer is a result sink.
// Write is called once per connection result as results arrive; Close is
// called once after the scan ends and flushes whatever the format buffers.
//
// Writers are not safe for concurrent use. The scheduler hands results to
// its handler from a single goroutine.
type Writer interface {
	// Write outputs one result.
	Write(result *model.ConnectionResult) error

	// Close flushes buffered output. It does not close the underlying
	// io.Writer, which the caller owns.
	Close() error
}

// MultiWriter writes every result to multiple Writers.
// This is how --db adds the SQLite export next to the chosen format.
//
// A failing writer does not stop the others: every writer sees every
// result, and the errors are joined.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
func (m *MultiWriter) Write(result *model.ConnectionResult) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every configured Writer.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
