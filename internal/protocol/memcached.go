package protocol

import (
	"strings"
)

// memcachedStatsEnd frames the stats listing.
var memcachedStatsEnd = terminatorLine("END", "ERROR", "CLIENT_ERROR", "SERVER_ERROR")

// driveMemcached sends version and stats.
func driveMemcached(s *Session) {
	if !s.send("version", []byte("version\r\n")) {
		return
	}
	version, ok := s.expect("version", nil, lineComplete)
	if len(version) > 0 {
		s.parseFailed(parseMemcachedVersion(s, version))
	}
	if !ok || !s.send("stats", []byte("stats\r\n")) {
		return
	}

	if stats, _ := s.expect("stats", nil, memcachedStatsEnd); len(stats) > 0 {
		s.parseFailed(parseMemcachedStats(s, stats))
	}
}

// parseMemcachedVersion reads "VERSION <version>".
func parseMemcachedVersion(s *Session, data []byte) *ParseError {
	line := firstLine(data)
	version, found := strings.CutPrefix(line, "VERSION ")
	if !found {
		return parseErrf(Memcached, "version", ErrUnexpectedResponse, "%q", line)
	}
	s.set("version", strings.TrimSpace(version))
	return nil
}

// parseMemcachedStats reads "STAT <name> <value>" lines up to END.
func parseMemcachedStats(s *Session, data []byte) *ParseError {
	ended := false
	for _, line := range completeLines(data) {
		if line == "END" {
			ended = true
			break
		}
		if strings.HasPrefix(line, "ERROR") || strings.HasPrefix(line, "CLIENT_ERROR") ||
			strings.HasPrefix(line, "SERVER_ERROR") {
			return parseErrf(Memcached, "stats", ErrUnexpectedResponse, "%q", line)
		}
		fields := strings.Fields(line)
		if len(fields) != 3 || fields[0] != "STAT" {
			continue
		}
		switch fields[1] {
		case "pid", "uptime", "curr_connections", "threads":
			s.set(fields[1], fields[2])
		case "version":
			if _, ok := s.metadata["version"]; !ok {
				s.set("version", fields[2])
			}
		}
	}
	if !ended {
		return parseErrf(Memcached, "stats", ErrShortResponse, "missing END")
	}
	return nil
}
