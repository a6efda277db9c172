package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/bannerscan/internal/model"
)

// JSONLWriter outputs one JSON object per line.
// This format is designed for tool integration: jq, log shippers and
// bulk loaders can consume it while the scan is still running.
type JSONLWriter struct {
	baseWriter
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONLWriter that outputs to the given writer.
func NewJSONLWriter(output io.Writer) *JSONLWriter {
	enc := json.NewEncoder(output)
	// Banners are data, not HTML; keep '<' and '&' readable.
	enc.SetEscapeHTML(false)

	return &JSONLWriter{
		baseWriter: newBaseWriter(output),
		enc:        enc,
	}
}

// Write outputs the result as a single line.
func (w *JSONLWriter) Write(result *model.ConnectionResult) error {
	return w.enc.Encode(NewRecord(result))
}

// Close is a no-op; every line is written as it arrives.
func (w *JSONLWriter) Close() error {
	return nil
}
