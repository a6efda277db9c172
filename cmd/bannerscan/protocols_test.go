package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestProtocolsCmd(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := NewProtocolsCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// header plus thirteen probes plus generic
	if len(lines) != 15 {
		t.Fatalf("expected 15 lines, got %d:\n%s", len(lines), buf.String())
	}

	tests := []struct {
		name   string
		fields []string
	}{
		{name: "ssh", fields: []string{"ssh", "SSH", "22", "server"}},
		{name: "smtp", fields: []string{"smtp", "SMTP", "25,587", "server"}},
		{name: "postgresql", fields: []string{"postgresql", "PostgreSQL", "5432", "client"}},
		{name: "generic", fields: []string{"generic", "Generic", "-", "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, line := range lines {
				fields := strings.Fields(line)
				if len(fields) == 0 || fields[0] != tt.name {
					continue
				}
				if strings.Join(fields, " ") != strings.Join(tt.fields, " ") {
					t.Errorf("expected %v, got %v", tt.fields, fields)
				}
				return
			}
			t.Errorf("expected a row for %s", tt.name)
		})
	}
}

func TestFormatPorts(t *testing.T) {
	t.Parallel()

	if got := formatPorts(nil); got != "-" {
		t.Errorf("expected '-', got %q", got)
	}
	if got := formatPorts([]uint16{23, 2323}); got != "23,2323" {
		t.Errorf("expected '23,2323', got %q", got)
	}
}
