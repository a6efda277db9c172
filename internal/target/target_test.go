package target

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/bannerscan/internal/model"
)

// stubResolver answers lookups from a fixed table.
type stubResolver struct {
	hosts map[string][]netip.Addr
}

func (r stubResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	addrs, ok := r.hosts[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return addrs, nil
}

// newTestStream returns a Stream with a stub resolver and a silent logger.
func newTestStream(opts ...Option) *Stream {
	base := []Option{
		WithResolver(stubResolver{hosts: map[string][]netip.Addr{
			"example.com": {netip.MustParseAddr("93.184.216.34"), netip.MustParseAddr("2606:2800:220:1::248")},
			"mail.test":   {netip.MustParseAddr("192.0.2.25")},
		}}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewStream(append(base, opts...)...)
}

// drain collects every target from ch as "host|addr" strings, sorted.
func drain(ch <-chan model.Target) []string {
	var got []string
	for t := range ch {
		got = append(got, t.Host+"|"+t.Addr.String())
	}
	slices.Sort(got)
	return got
}

// TestParseLine tests line classification.
func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		ok      bool
		want    Entry
		wantErr error
	}{
		{name: "blank", line: "   "},
		{name: "comment", line: "# web servers"},
		{name: "ipv4", line: "192.0.2.1:22", ok: true, want: Entry{Addr: netip.MustParseAddr("192.0.2.1"), Port: 22}},
		{name: "bracketed ipv6", line: "[2001:db8::1]:443", ok: true, want: Entry{Addr: netip.MustParseAddr("2001:db8::1"), Port: 443}},
		{name: "bare ipv6 splits on last colon", line: "2001:db8::1:25", ok: true, want: Entry{Addr: netip.MustParseAddr("2001:db8::1"), Port: 25}},
		{name: "hostname", line: "Mail.Example.COM:25", ok: true, want: Entry{Host: "mail.example.com", Port: 25}},
		{name: "padded", line: "  example.com:80  ", ok: true, want: Entry{Host: "example.com", Port: 80}},
		{name: "cidr", line: "192.0.2.7/30:22", ok: true, want: Entry{Prefix: netip.MustParsePrefix("192.0.2.4/30"), Port: 22}},
		{name: "missing port", line: "example.com", wantErr: ErrMissingPort},
		{name: "port zero", line: "example.com:0", wantErr: ErrInvalidPort},
		{name: "port too large", line: "example.com:70000", wantErr: ErrInvalidPort},
		{name: "bad host", line: "exa mple.com:25", wantErr: ErrInvalidHost},
		{name: "unclosed bracket", line: "[2001:db8::1:25", wantErr: ErrInvalidHost},
		{name: "prefix too large", line: "10.0.0.0/8:22", wantErr: ErrPrefixTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

// TestNewEntry tests building an entry from separate flags.
func TestNewEntry(t *testing.T) {
	t.Parallel()

	entry, err := NewEntry("::1", 22)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Addr != netip.MustParseAddr("::1") || entry.Port != 22 {
		t.Errorf("expected ::1 port 22, got %+v", entry)
	}

	if _, err := NewEntry("example.com", 0); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("expected ErrInvalidPort, got %v", err)
	}
}

// TestFromReader tests comments, blank lines and hostname expansion.
func TestFromReader(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"# comment",
		"",
		"example.com:25",
		"192.0.2.1:22",
		"not a line",
		"unknown.invalid:25",
	}, "\n")

	got := drain(newTestStream().FromReader(context.Background(), strings.NewReader(input)))
	if len(got) != 3 {
		t.Fatalf("expected 3 targets, got %d: %v", len(got), got)
	}
	if !slices.Contains(got, "|192.0.2.1:22") {
		t.Errorf("expected the literal target, got %v", got)
	}
	if !slices.Contains(got, "example.com|93.184.216.34:25") || !slices.Contains(got, "example.com|[2606:2800:220:1::248]:25") {
		t.Errorf("expected both example.com addresses on port 25, got %v", got)
	}
}

// TestFromReaderOversizedLine tests that a line longer than the limit is
// skipped and the lines after it are still read.
func TestFromReaderOversizedLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "oversized line between targets",
			input: "192.0.2.1:22\n" + strings.Repeat("a", 3*maxLineLength) + "\n192.0.2.2:25\n",
			want:  []string{"|192.0.2.1:22", "|192.0.2.2:25"},
		},
		{
			name:  "oversized final line without newline",
			input: "192.0.2.1:22\n" + strings.Repeat("b", maxLineLength+1),
			want:  []string{"|192.0.2.1:22"},
		},
		{
			name:  "longest accepted line",
			input: "192.0.2.3:80" + strings.Repeat(" ", maxLineLength-len("192.0.2.3:80")-1) + "\n192.0.2.4:80\n",
			want:  []string{"|192.0.2.3:80", "|192.0.2.4:80"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := drain(newTestStream().FromReader(context.Background(), strings.NewReader(tt.input)))
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestFromReaderPortFilter tests that the filter drops other ports.
func TestFromReaderPortFilter(t *testing.T) {
	t.Parallel()

	input := "example.com:25\n192.0.2.1:22\nmail.test:25\n192.0.2.2:25\n"
	got := drain(newTestStream(WithPortFilter(25)).FromReader(context.Background(), strings.NewReader(input)))

	want := []string{
		"|192.0.2.2:25",
		"example.com|93.184.216.34:25",
		"example.com|[2606:2800:220:1::248]:25",
		"mail.test|192.0.2.25:25",
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// TestFromReaderCIDR tests prefix expansion.
func TestFromReaderCIDR(t *testing.T) {
	t.Parallel()

	got := drain(newTestStream().FromReader(context.Background(), strings.NewReader("192.0.2.0/30:22\n")))
	want := []string{"|192.0.2.0:22", "|192.0.2.1:22", "|192.0.2.2:22", "|192.0.2.3:22"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// TestFromEntry tests the single host path, which ignores the port filter.
func TestFromEntry(t *testing.T) {
	t.Parallel()

	entry, err := NewEntry("mail.test", 587)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := drain(newTestStream(WithPortFilter(25)).FromEntry(context.Background(), entry))
	if !slices.Equal(got, []string{"mail.test|192.0.2.25:587"}) {
		t.Errorf("expected mail.test on 587, got %v", got)
	}
}

// TestFromReaderCancel tests that a cancelled stream closes.
func TestFromReaderCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ch := newTestStream().FromReader(ctx, strings.NewReader("10.0.0.0/16:22\n"))
	<-ch
	cancel()

	n := 0
	for range ch {
		n++
	}
	if n >= 1<<16 {
		t.Errorf("expected the stream to stop early, got %d more targets", n)
	}
}
