package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Banner wraps captured bytes with the renderings used by the result sinks.
type Banner struct {
	// Raw is the captured bytes, capped at the configured maximum.
	Raw []byte

	// Truncated is true when the service sent more than the cap allowed.
	Truncated bool
}

// Printable renders the banner as text. Printable ASCII, tab, CR and LF are
// kept; every other byte becomes '.'.
func (b Banner) Printable() string {
	var sb strings.Builder
	sb.Grow(len(b.Raw))
	for _, c := range b.Raw {
		switch {
		case c >= 0x20 && c <= 0x7e, c == '\r', c == '\n', c == '\t':
			sb.WriteByte(c)
		default:
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

// Hex renders the banner as space-separated lowercase hex pairs ("de ad be ef").
func (b Banner) Hex() string {
	if len(b.Raw) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b.Raw) * 3)
	for i, c := range b.Raw {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(hex.EncodeToString([]byte{c}))
	}
	return sb.String()
}

// Digest returns the hex SHA3-256 of the raw bytes, or "" for an empty banner.
// Identical banners share a digest, so large scans can be grouped by it.
func (b Banner) Digest() string {
	if len(b.Raw) == 0 {
		return ""
	}
	sum := sha3.Sum256(b.Raw)
	return hex.EncodeToString(sum[:])
}

// FirstLine returns the printable form of the first line of the banner.
func (b Banner) FirstLine() string {
	text := b.Printable()
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
