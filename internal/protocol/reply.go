package protocol

import (
	"strings"
)

// reply is a parsed FTP/SMTP style reply.
type reply struct {
	// code is the three digit reply code.
	code string
	// lines holds the text of every line with the reply code stripped.
	lines []string
}

// text joins the reply lines with spaces.
func (r reply) text() string {
	return strings.Join(r.lines, " ")
}

// positive reports whether the reply code is 2xx.
func (r reply) positive() bool {
	return r.code != "" && r.code[0] == '2'
}

// parseReply parses a (possibly multi-line) reply with three digit codes.
func parseReply(data []byte) (reply, error) {
	lines := completeLines(data)
	if len(lines) == 0 {
		partial := strings.TrimSpace(string(data))
		if partial == "" {
			return reply{}, ErrShortResponse
		}
		lines = []string{partial}
	}
	if !hasReplyCode(lines[0]) {
		return reply{}, ErrMalformedResponse
	}

	r := reply{code: lines[0][:3]}
	for _, l := range lines {
		if hasReplyCode(l) && l[:3] == r.code {
			if len(l) > 4 {
				l = l[4:]
			} else {
				l = ""
			}
		}
		r.lines = append(r.lines, strings.TrimSpace(l))
	}
	return r, nil
}

// detectOS guesses the operating system from distribution names that
// servers commonly embed in banners.
func detectOS(text string) string {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "ubuntu"):
		return "Ubuntu Linux"
	case strings.Contains(lower, "debian"):
		return "Debian Linux"
	case strings.Contains(lower, "freebsd"):
		return "FreeBSD"
	case strings.Contains(lower, "openbsd"):
		return "OpenBSD"
	case strings.Contains(lower, "netbsd"):
		return "NetBSD"
	case strings.Contains(lower, "centos"):
		return "CentOS Linux"
	case strings.Contains(lower, "fedora"):
		return "Fedora Linux"
	case strings.Contains(lower, "red hat"), strings.Contains(lower, "rhel"):
		return "Red Hat Enterprise Linux"
	case strings.Contains(lower, "raspbian"):
		return "Raspbian (Raspberry Pi)"
	case strings.Contains(lower, "windows"):
		return "Windows"
	}
	return ""
}
