package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

// respBulkComplete frames a RESP reply to INFO: a bulk string
// ("$<len>\r\n<payload>\r\n") or a single status/error line.
func respBulkComplete(data []byte) bool {
	if data[0] != '$' {
		return lineComplete(data)
	}
	header := bytes.Index(data, []byte("\r\n"))
	if header < 0 {
		return false
	}
	n, err := strconv.Atoi(string(data[1:header]))
	if err != nil || n < 0 || n > maxFrame {
		return true
	}
	return len(data) >= header+2+n+2
}

// driveRedis sends PING and INFO.
func driveRedis(s *Session) {
	if !s.send("PING", []byte("PING\r\n")) {
		return
	}
	ping, ok := s.expect("PING", nil, lineComplete)
	if len(ping) > 0 {
		s.parseFailed(parseRedisPing(s, ping))
	}
	if !ok || !s.send("INFO", []byte("INFO\r\n")) {
		return
	}

	if info, _ := s.expect("INFO", nil, respBulkComplete); len(info) > 0 {
		s.parseFailed(parseRedisInfo(s, info))
	}
}

// parseRedisPing records the PING reply. An error reply such as NOAUTH is a
// valid answer and only marks authentication as required.
func parseRedisPing(s *Session, data []byte) *ParseError {
	line := firstLine(data)
	if line == "" {
		return parseErr(Redis, "PING", ErrShortResponse)
	}

	switch line[0] {
	case '+':
		s.set("ping", line[1:])
		s.set("auth_required", "false")
	case '-':
		s.set("ping", "error")
		s.set("error_message", line[1:])
		if isRedisAuthError(line[1:]) {
			s.set("auth_required", "true")
		}
	default:
		return parseErrf(Redis, "PING", ErrMalformedResponse, "not a RESP reply")
	}
	return nil
}

// parseRedisInfo reads the INFO bulk reply's "key:value" lines.
func parseRedisInfo(s *Session, data []byte) *ParseError {
	switch data[0] {
	case '-':
		line := firstLine(data)
		if isRedisAuthError(line[1:]) {
			s.set("auth_required", "true")
		}
		s.set("error_message", line[1:])
		return nil
	case '$':
	default:
		return parseErrf(Redis, "INFO", ErrMalformedResponse, "bulk string expected")
	}

	header := bytes.Index(data, []byte("\r\n"))
	if header < 0 {
		return parseErr(Redis, "INFO", ErrShortResponse)
	}
	n, err := strconv.Atoi(string(data[1:header]))
	if err != nil {
		return parseErrf(Redis, "INFO", ErrMalformedResponse, "bulk length %q", data[1:header])
	}
	switch {
	case n == -1:
		s.set("info", "nil")
		return parseErrf(Redis, "INFO", ErrUnexpectedResponse, "nil bulk reply")
	case n < 0 || n > maxFrame:
		return parseErrf(Redis, "INFO", ErrMalformedResponse, "bulk length %d", n)
	}
	payload := data[header+2:]
	short := len(payload) < n
	if !short {
		payload = payload[:n]
	}

	for _, line := range strings.Split(string(payload), "\n") {
		key, value, found := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !found {
			continue
		}
		switch key {
		case "redis_version", "redis_mode", "os", "role", "tcp_port":
			s.set(key, value)
		}
	}

	if short {
		return parseErr(Redis, "INFO", ErrShortResponse)
	}
	return nil
}

// isRedisAuthError reports whether an error reply means authentication is needed.
func isRedisAuthError(msg string) bool {
	return strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS") ||
		strings.Contains(msg, "Authentication required")
}
