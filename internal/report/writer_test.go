package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestResults returns one result per outcome kind.
func createTestResults() []*model.ConnectionResult {
	ssh := model.NewTarget(netip.MustParseAddr("192.0.2.10"), 22, "bastion.example")
	smtp := model.NewTarget(netip.MustParseAddr("192.0.2.25"), 25, "")
	closed := model.NewTarget(netip.MustParseAddr("192.0.2.30"), 3306, "")
	silent := model.NewTarget(netip.MustParseAddr("2001:db8::1"), 6379, "")

	return []*model.ConnectionResult{
		{
			Target:      ssh,
			Protocol:    "ssh",
			Mode:        model.ModePassive,
			Outcome:     model.Success([]byte("SSH-2.0-OpenSSH_9.6\r\n"), false, map[string]string{"software": "OpenSSH_9.6", "proto_version": "2.0"}),
			Elapsed:     42 * time.Millisecond,
			ConnectTime: 3 * time.Millisecond,
			ScannedAt:   testTime,
		},
		{
			Target:    smtp,
			Protocol:  "smtp",
			Mode:      model.ModeActive,
			Outcome:   model.ProbeDegraded([]byte("220 mail | ready\r\n\x00"), true, "smtp EHLO: malformed reply", nil),
			Elapsed:   120 * time.Millisecond,
			ScannedAt: testTime.Add(time.Second),
		},
		{
			Target:    closed,
			Protocol:  "mysql",
			Mode:      model.ModePassive,
			Outcome:   model.ConnectFailed("connection refused"),
			Elapsed:   time.Millisecond,
			ScannedAt: testTime.Add(2 * time.Second),
		},
		{
			Target:    silent,
			Protocol:  "redis",
			Mode:      model.ModePassive,
			Outcome:   model.TimedOut(model.PhaseProbe),
			Elapsed:   4 * time.Second,
			ScannedAt: testTime.Add(3 * time.Second),
		},
	}
}

func writeAll(t *testing.T, w Writer) {
	t.Helper()
	for _, r := range createTestResults() {
		if err := w.Write(r); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	results := createTestResults()

	t.Run("success carries banner renderings", func(t *testing.T) {
		t.Parallel()

		rec := NewRecord(results[0])
		if rec.IP != "192.0.2.10" || rec.Port != 22 || rec.Host != "bastion.example" {
			t.Errorf("expected target fields, got %+v", rec)
		}
		if rec.Status != "success" || rec.Mode != "passive" {
			t.Errorf("expected success/passive, got %s/%s", rec.Status, rec.Mode)
		}
		if rec.Banner != "SSH-2.0-OpenSSH_9.6\r\n" {
			t.Errorf("expected printable banner, got %q", rec.Banner)
		}
		if !strings.HasPrefix(rec.BannerHex, "53 53 48 2d") {
			t.Errorf("expected hex banner, got %q", rec.BannerHex)
		}
		if len(rec.BannerSHA3) != 64 {
			t.Errorf("expected 64 hex chars of sha3, got %d", len(rec.BannerSHA3))
		}
		if rec.ElapsedMS != 42 || rec.ConnectMS != 3 {
			t.Errorf("expected 42ms/3ms, got %d/%d", rec.ElapsedMS, rec.ConnectMS)
		}
	})

	t.Run("timeout carries phase only", func(t *testing.T) {
		t.Parallel()

		rec := NewRecord(results[3])
		if rec.Phase != "probe" || rec.Banner != "" || rec.BannerSHA3 != "" {
			t.Errorf("expected bare probe timeout, got %+v", rec)
		}
		if rec.IP != "2001:db8::1" {
			t.Errorf("expected 2001:db8::1, got %s", rec.IP)
		}
	})

	t.Run("metadata string is sorted", func(t *testing.T) {
		t.Parallel()

		rec := NewRecord(results[0])
		if got := rec.MetadataString(); got != "proto_version=2.0;software=OpenSSH_9.6" {
			t.Errorf("expected sorted pairs, got %q", got)
		}
	})
}

// TestJSONLWriter tests the line-delimited JSON writer.
func TestJSONLWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeAll(t, NewJSONLWriter(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}
	for _, key := range []string{"ip", "port", "protocol", "status", "banner", "banner_hex", "banner_sha3", "metadata", "elapsed_ms", "connect_ms"} {
		if _, ok := first[key]; !ok {
			t.Errorf("expected key %q in %s", key, lines[0])
		}
	}

	var failed map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &failed); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}
	if failed["reason"] != "connection refused" {
		t.Errorf("expected reason, got %v", failed["reason"])
	}
	if _, ok := failed["banner"]; ok {
		t.Error("expected no banner key for a connect failure")
	}

	if !strings.Contains(lines[1], `220 mail | ready`) {
		t.Errorf("expected unescaped banner text, got %s", lines[1])
	}
}

// TestLogWriter tests the human-readable writer.
func TestLogWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes entries and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		writeAll(t, NewLogWriter(&buf))
		output := buf.String()

		for _, want := range []string{
			"[success] bastion.example (192.0.2.10:22) SSH passive (42ms)",
			"    | SSH-2.0-OpenSSH_9.6",
			"software: OpenSSH_9.6",
			"detail:    smtp EHLO: malformed reply",
			"(truncated)",
			"[connect_failed] 192.0.2.30:3306 MySQL",
			"detail:    connection refused",
			"detail:    probe timeout",
			"Scanned 4 target(s): 1 Success, 1 Degraded, 1 Timed Out, 1 Connect Failed",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "\x00") {
			t.Error("expected control bytes to be rendered as '.'")
		}
	})

	t.Run("hides failures when asked", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		writeAll(t, NewLogWriter(&buf, WithShowFailures(false)))
		output := buf.String()

		if strings.Contains(output, "[connect_failed]") || strings.Contains(output, "[timed_out]") {
			t.Errorf("expected failures to be hidden, got:\n%s", output)
		}
		if !strings.Contains(output, "Scanned 4 target(s)") {
			t.Error("expected the summary to count hidden failures")
		}
	})
}

// TestCSVWriter tests the CSV writer.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		writeAll(t, NewCSVWriter(&buf))

		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("expected valid CSV, got error: %v", err)
		}
		if len(rows) != 5 {
			t.Fatalf("expected header and 4 rows, got %d", len(rows))
		}
		if rows[0][0] != "scanned_at" || len(rows[0]) != len(csvHeader) {
			t.Errorf("expected header row, got %v", rows[0])
		}
		if rows[1][1] != "192.0.2.10" || rows[1][2] != "22" || rows[1][6] != "success" {
			t.Errorf("expected ssh row, got %v", rows[1])
		}
		// csv.Reader folds the quoted CRLF into LF.
		if rows[1][11] != "SSH-2.0-OpenSSH_9.6\n" {
			t.Errorf("expected banner to survive quoting, got %q", rows[1][11])
		}
		if rows[3][7] != "connection refused" {
			t.Errorf("expected detail column, got %q", rows[3][7])
		}
	})

	t.Run("empty scan still writes header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewCSVWriter(&buf)
		if err := w.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.TrimSpace(buf.String()); got != strings.Join(csvHeader, ",") {
			t.Errorf("expected header only, got %q", got)
		}
	})
}

// TestMarkdownWriter tests the markdown summary writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes nothing until close", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)
		if err := w.Write(createTestResults()[0]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("expected no output before Close, got %q", buf.String())
		}
	})

	t.Run("writes summary document", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)
		w.now = func() time.Time { return testTime }
		writeAll(t, w)
		output := buf.String()

		for _, want := range []string{
			"# Banner Scan Report",
			"## Outcome Summary",
			"```mermaid",
			"pie",
			"## Protocols",
			"## Banners",
			"SSH-2.0-OpenSSH_9.6",
			"220 mail",
			"## Unreachable Targets",
			"connection refused (1)",
			"2026-03-01 12:00:00 UTC",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("empty scan", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := NewMarkdownWriter(&buf).Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "No targets were scanned.") {
			t.Errorf("expected empty note, got:\n%s", output)
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no pie chart for an empty scan")
		}
	})
}

type failingWriter struct {
	writes int
}

var errSinkFull = errors.New("sink full")

func (f *failingWriter) Write(*model.ConnectionResult) error {
	f.writes++
	return errSinkFull
}

func (f *failingWriter) Close() error { return nil }

// TestMultiWriter tests fan-out to multiple writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var buf1, buf2 bytes.Buffer
	failing := &failingWriter{}
	multi := NewMultiWriter(NewJSONLWriter(&buf1), failing, NewCSVWriter(&buf2))

	for _, r := range createTestResults() {
		if err := multi.Write(r); !errors.Is(err, errSinkFull) {
			t.Errorf("expected errSinkFull, got %v", err)
		}
	}
	if err := multi.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if failing.writes != 4 {
		t.Errorf("expected failing writer to see 4 results, got %d", failing.writes)
	}
	if got := strings.Count(buf1.String(), "\n"); got != 4 {
		t.Errorf("expected 4 jsonl lines after a failing sibling, got %d", got)
	}
	if !strings.HasPrefix(buf2.String(), "scanned_at,") {
		t.Error("expected csv output after a failing sibling")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := NewSummary()
	for _, r := range createTestResults() {
		s.Add(r)
	}

	if s.Total != 4 || s.Responsive() != 2 {
		t.Errorf("expected 4 total and 2 responsive, got %d and %d", s.Total, s.Responsive())
	}
	if got := s.Protocols(); strings.Join(got, ",") != "mysql,redis,smtp,ssh" {
		t.Errorf("expected sorted protocols, got %v", got)
	}
	if !s.First.Equal(testTime) || !s.Last.Equal(testTime.Add(3*time.Second)) {
		t.Errorf("expected first/last start times, got %v/%v", s.First, s.Last)
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"ssh":        "SSH",
		"pop3":       "POP3",
		"redis":      "Redis",
		"generic":    "Generic",
		"mysql":      "MySQL",
		"postgresql": "PostgreSQL",
		"mongodb":    "MongoDB",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("expected %q for %q, got %q", want, in, got)
		}
	}
}

// TestTruncateString tests the truncateString helper function.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "shorter than max", input: "hello", maxLen: 10, want: "hello"},
		{name: "longer than max", input: "hello world", maxLen: 8, want: "hello..."},
		{name: "tiny max", input: "hello", maxLen: 2, want: "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
