package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nao1215/bannerscan/internal/model"
)

// LogWriter outputs human-readable multi-line entries.
// This is the default format on a terminal. Each result is one entry;
// Close appends a one-paragraph summary.
//
// Banner text is rendered in its printable form, one indented line per
// banner line, so control bytes from the peer never reach the terminal.
type LogWriter struct {
	baseWriter
	summary *Summary

	// showFailures controls whether connect failures and timeouts are
	// printed. On large sweeps they drown out the banners.
	showFailures bool
}

// LogWriterOption configures a LogWriter.
type LogWriterOption func(*LogWriter)

// WithShowFailures configures whether failed targets are printed.
func WithShowFailures(show bool) LogWriterOption {
	return func(w *LogWriter) {
		w.showFailures = show
	}
}

// NewLogWriter creates a LogWriter that outputs to the given writer.
func NewLogWriter(output io.Writer, opts ...LogWriterOption) *LogWriter {
	w := &LogWriter{
		baseWriter:   newBaseWriter(output),
		summary:      NewSummary(),
		showFailures: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one entry.
func (w *LogWriter) Write(result *model.ConnectionResult) error {
	w.summary.Add(result)
	if !w.showFailures && !result.Outcome.HasBanner() {
		return nil
	}

	var sb strings.Builder
	rec := NewRecord(result)

	fmt.Fprintf(&sb, "[%s] %s %s %s (%dms)\n",
		rec.Status, result.Target, DisplayName(rec.Protocol), rec.Mode, rec.ElapsedMS)

	if detail := result.Outcome.Detail(); detail != "" {
		fmt.Fprintf(&sb, "  detail:    %s\n", detail)
	}

	if result.Outcome.HasBanner() {
		w.writeBanner(&sb, rec)
	}

	if len(rec.Metadata) > 0 {
		keys := make([]string, 0, len(rec.Metadata))
		for k := range rec.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("  metadata:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "    %s: %s\n", k, rec.Metadata[k])
		}
	}

	sb.WriteString("\n")
	_, err := io.WriteString(w.output, sb.String())
	return err
}

// writeBanner writes the banner block of an entry.
func (w *LogWriter) writeBanner(sb *strings.Builder, rec Record) {
	sb.WriteString("  banner:\n")
	text := strings.ReplaceAll(rec.Banner, "\r\n", "\n")
	for _, line := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		sb.WriteString("    | ")
		sb.WriteString(strings.ReplaceAll(line, "\r", "."))
		sb.WriteString("\n")
	}
	if rec.Truncated {
		sb.WriteString("    (truncated)\n")
	}
	fmt.Fprintf(sb, "  sha3-256:  %s\n", rec.BannerSHA3)
}

// Close writes the summary.
func (w *LogWriter) Close() error {
	s := w.summary

	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Scanned %d target(s): ", s.Total)

	parts := make([]string, 0, len(model.AllOutcomeKinds()))
	for _, kind := range model.AllOutcomeKinds() {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByKind[kind], StatusLabel(kind.String())))
	}
	sb.WriteString(strings.Join(parts, ", "))
	sb.WriteString("\n")

	_, err := io.WriteString(w.output, sb.String())
	return err
}
