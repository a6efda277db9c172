package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// completeLines returns the newline-terminated lines in data with their line
// endings removed. A trailing partial line is left out.
func completeLines(data []byte) []string {
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil
	}
	raw := strings.Split(string(data[:end]), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, strings.TrimRight(l, "\r"))
	}
	return lines
}

// lineComplete is satisfied by the first line terminator.
func lineComplete(data []byte) bool {
	return bytes.IndexByte(data, '\n') >= 0
}

// hasReplyCode reports whether line starts with a three digit reply code.
func hasReplyCode(line string) bool {
	if len(line) < 3 {
		return false
	}
	for i := range 3 {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return len(line) == 3 || line[3] == ' ' || line[3] == '-'
}

// replyComplete frames FTP and SMTP replies. A multi-line reply starts with
// "ddd-" and ends with a line beginning "ddd " carrying the same code.
// Lines without a reply code end the step so the parser can note them.
func replyComplete(data []byte) bool {
	lines := completeLines(data)
	if len(lines) == 0 {
		return false
	}
	first := lines[0]
	if !hasReplyCode(first) || len(first) == 3 || first[3] == ' ' {
		return true
	}
	code := first[:3]
	for _, l := range lines[1:] {
		if l == code || strings.HasPrefix(l, code+" ") {
			return true
		}
	}
	return false
}

// taggedComplete frames an IMAP command response, which ends with the
// line carrying the command tag.
func taggedComplete(tag string) framer {
	prefix := tag + " "
	return func(data []byte) bool {
		for _, l := range completeLines(data) {
			if strings.HasPrefix(l, prefix) {
				return true
			}
		}
		return false
	}
}

// dotTerminated frames a POP3 multi-line response: "+OK" followed by lines
// and a terminating ".", or a single "-ERR" line.
func dotTerminated(data []byte) bool {
	lines := completeLines(data)
	if len(lines) == 0 {
		return false
	}
	if !strings.HasPrefix(lines[0], "+OK") {
		return true
	}
	for _, l := range lines[1:] {
		if l == "." {
			return true
		}
	}
	return false
}

// terminatorLine frames a response that ends with one of the given lines,
// such as memcached's "END".
func terminatorLine(terminators ...string) framer {
	return func(data []byte) bool {
		for _, l := range completeLines(data) {
			for _, t := range terminators {
				if l == t || strings.HasPrefix(l, t+" ") {
					return true
				}
			}
		}
		return false
	}
}

// maxFrame bounds any length-prefixed frame. Anything larger is treated as
// malformed and ends the step immediately so the parser can note it.
const maxFrame = 1 << 24

// lengthFramed builds a framer for length-prefixed messages. headerLen is
// how many bytes are needed to decode the length and total returns the full
// message size decoded from the header, or -1 when the header is invalid.
func lengthFramed(headerLen int, total func(header []byte) int) framer {
	return func(data []byte) bool {
		if len(data) < headerLen {
			return false
		}
		n := total(data[:headerLen])
		if n < headerLen || n > maxFrame {
			return true
		}
		return len(data) >= n
	}
}

// mysqlPacketFramed frames a MySQL packet: 3-byte little-endian payload
// length plus a sequence byte.
var mysqlPacketFramed = lengthFramed(4, func(h []byte) int {
	return (int(h[0]) | int(h[1])<<8 | int(h[2])<<16) + 4
})

// sshPacketFramed frames an SSH binary packet: a big-endian packet length
// that excludes itself.
var sshPacketFramed = lengthFramed(4, func(h []byte) int {
	n := binary.BigEndian.Uint32(h)
	if n > maxFrame {
		return -1
	}
	return int(n) + 4
})

// postgresMessageFramed frames a PostgreSQL backend message: a type byte and
// a big-endian length that includes itself.
var postgresMessageFramed = lengthFramed(5, func(h []byte) int {
	n := binary.BigEndian.Uint32(h[1:5])
	if n < 4 || n > maxFrame {
		return -1
	}
	return int(n) + 1
})

// mongoMessageFramed frames a MongoDB wire message: a little-endian int32
// length that includes itself.
var mongoMessageFramed = lengthFramed(4, func(h []byte) int {
	n := int32(binary.LittleEndian.Uint32(h))
	if n < 16 {
		return -1
	}
	return int(n)
})
