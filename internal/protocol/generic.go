package protocol

import (
	"bytes"
	"strings"
)

// tlsVersions names the record-layer versions seen in a TLS handshake byte
// stream (0x16 0x03 0xNN).
var tlsVersions = map[byte]string{
	0x00: "SSL 3.0",
	0x01: "TLS 1.0",
	0x02: "TLS 1.1",
	0x03: "TLS 1.2+",
}

// fingerprint guesses the service behind an unsolicited banner and records
// the guess. Unrecognized data is left without a guess.
func fingerprint(s *Session, data []byte) {
	name, detail := guessService(data)
	s.set("fingerprint", name)
	s.set("fingerprint_detail", detail)
}

// guessService applies cheap heuristics in order of specificity.
func guessService(data []byte) (name, detail string) {
	if len(data) == 0 {
		return "", ""
	}

	if len(data) >= 3 && data[0] == 0x16 && data[1] == 0x03 {
		if v, ok := tlsVersions[data[2]]; ok {
			return "tls", v
		}
		return "tls", ""
	}
	if data[0] == telnetIAC && len(data) >= 2 && data[1] >= telnetSB {
		return "telnet", "option negotiation"
	}
	if len(data) > 5 && data[3] == 0 && data[4] == mysqlProtocolV10 {
		if nul := bytes.IndexByte(data[5:], 0); nul > 0 {
			return "mysql", printableOnly(string(data[5 : 5+nul]))
		}
	}

	line := printableOnly(firstLine(data))
	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(line, "SSH-"):
		return "ssh", line
	case strings.HasPrefix(line, "HTTP/1."), bytes.Contains(data, []byte("\nServer:")):
		return "http", line
	case strings.HasPrefix(line, "-ERR"), strings.HasPrefix(line, "-NOAUTH"), strings.HasPrefix(line, "-DENIED"):
		return "redis", line
	case strings.HasPrefix(line, "+OK"):
		return "pop3", line
	case strings.HasPrefix(line, "* OK"), strings.HasPrefix(line, "* PREAUTH"):
		return "imap", line
	case strings.HasPrefix(line, "220"):
		switch {
		case strings.Contains(upper, "SMTP"), strings.Contains(upper, "MAIL"):
			return "smtp", line
		case strings.Contains(upper, "FTP"):
			return "ftp", line
		}
		return "220-greeting", line
	case strings.Contains(upper, "ERROR"), strings.HasPrefix(upper, "ERR"):
		return "error-line", line
	}
	return "", ""
}
