package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
)

// csvHeader lists the CSV columns in order.
var csvHeader = []string{
	"scanned_at", "ip", "port", "host", "protocol", "mode", "status",
	"detail", "elapsed_ms", "connect_ms", "truncated", "banner",
	"banner_sha3", "metadata",
}

// CSVWriter outputs comma-separated rows with a header.
// The banner column holds the printable form; the hex form is left to jsonl.
type CSVWriter struct {
	baseWriter
	csv         *csv.Writer
	wroteHeader bool
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{
		baseWriter: newBaseWriter(output),
		csv:        csv.NewWriter(output),
	}
}

// Write outputs one row, preceded by the header on the first call.
func (w *CSVWriter) Write(result *model.ConnectionResult) error {
	if err := w.header(); err != nil {
		return err
	}

	rec := NewRecord(result)
	row := []string{
		rec.ScannedAt.Format(time.RFC3339Nano),
		rec.IP,
		strconv.Itoa(int(rec.Port)),
		rec.Host,
		rec.Protocol,
		rec.Mode,
		rec.Status,
		result.Outcome.Detail(),
		strconv.FormatInt(rec.ElapsedMS, 10),
		strconv.FormatInt(rec.ConnectMS, 10),
		strconv.FormatBool(rec.Truncated),
		rec.Banner,
		rec.BannerSHA3,
		rec.MetadataString(),
	}
	if err := w.csv.Write(row); err != nil {
		return err
	}

	w.csv.Flush()
	return w.csv.Error()
}

// Close writes the header if no row was written, so an empty scan still
// yields a well-formed file.
func (w *CSVWriter) Close() error {
	if err := w.header(); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// header writes the header row once.
func (w *CSVWriter) header() error {
	if w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	return w.csv.Write(csvHeader)
}
