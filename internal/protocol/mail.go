package protocol

import (
	"slices"
	"strings"
)

// imapTag tags the single IMAP command we send.
const imapTag = "a001"

// driveIMAP reads the greeting and asks for CAPABILITY.
func driveIMAP(s *Session) {
	greeting, ok := s.expect("banner", nil, lineComplete)
	if len(greeting) > 0 {
		s.parseFailed(parseIMAPGreeting(s, greeting))
	}
	if !ok || !s.send("CAPABILITY", []byte(imapTag+" CAPABILITY\r\n")) {
		return
	}

	if caps, _ := s.expect("CAPABILITY", nil, taggedComplete(imapTag)); len(caps) > 0 {
		s.parseFailed(parseIMAPCapability(s, caps))
	}
}

// parseIMAPGreeting records the greeting status (OK, PREAUTH or BYE) and any
// capabilities embedded in a response code.
func parseIMAPGreeting(s *Session, data []byte) *ParseError {
	line := firstLine(data)
	rest, found := strings.CutPrefix(line, "* ")
	if !found {
		return parseErrf(IMAP, "banner", ErrMalformedResponse, "untagged greeting expected")
	}

	status, text, _ := strings.Cut(rest, " ")
	status = strings.ToUpper(status)
	switch status {
	case "OK", "PREAUTH", "BYE":
	default:
		return parseErrf(IMAP, "banner", ErrUnexpectedResponse, "greeting status %q", status)
	}
	s.set("greeting_status", status)
	s.set("greeting", text)

	if code, ok := strings.CutPrefix(text, "[CAPABILITY "); ok {
		if end := strings.IndexByte(code, ']'); end >= 0 {
			recordIMAPCapabilities(s, strings.Fields(code[:end]))
		}
	}
	return nil
}

// parseIMAPCapability parses the untagged CAPABILITY line and checks the
// tagged completion.
func parseIMAPCapability(s *Session, data []byte) *ParseError {
	var (
		caps   []string
		status string
	)
	for _, l := range completeLines(data) {
		upper := strings.ToUpper(l)
		switch {
		case strings.HasPrefix(upper, "* CAPABILITY "):
			caps = strings.Fields(l[len("* CAPABILITY "):])
		case strings.HasPrefix(l, imapTag+" "):
			status, _, _ = strings.Cut(strings.TrimPrefix(l, imapTag+" "), " ")
		}
	}

	if len(caps) > 0 {
		recordIMAPCapabilities(s, caps)
	}
	switch strings.ToUpper(status) {
	case "OK":
		return nil
	case "":
		return parseErrf(IMAP, "CAPABILITY", ErrShortResponse, "no tagged completion")
	default:
		return parseErrf(IMAP, "CAPABILITY", ErrUnexpectedResponse, "tagged %s", status)
	}
}

// recordIMAPCapabilities stores the capability list and the flags derived from it.
func recordIMAPCapabilities(s *Session, caps []string) {
	var mechanisms []string
	upper := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.ToUpper(c)
		upper = append(upper, c)
		if mech, ok := strings.CutPrefix(c, "AUTH="); ok {
			mechanisms = append(mechanisms, mech)
		}
	}

	s.set("capabilities", strings.Join(caps, " "))
	s.set("starttls", boolString(slices.Contains(upper, "STARTTLS")))
	s.set("login_disabled", boolString(slices.Contains(upper, "LOGINDISABLED")))
	s.set("auth_mechanisms", strings.Join(mechanisms, ", "))
}

// drivePOP3 reads the greeting and asks for CAPA.
func drivePOP3(s *Session) {
	greeting, ok := s.expect("banner", nil, lineComplete)
	if len(greeting) > 0 {
		s.parseFailed(parsePOP3Greeting(s, greeting))
	}
	if !ok || !s.send("CAPA", []byte("CAPA\r\n")) {
		return
	}

	if capa, _ := s.expect("CAPA", nil, dotTerminated); len(capa) > 0 {
		s.parseFailed(parsePOP3Capa(s, capa))
	}
}

// parsePOP3Greeting checks for "+OK" and keeps the greeting text.
func parsePOP3Greeting(s *Session, data []byte) *ParseError {
	line := firstLine(data)
	text, found := strings.CutPrefix(line, "+OK")
	if !found {
		if strings.HasPrefix(line, "-ERR") {
			s.set("greeting", strings.TrimSpace(strings.TrimPrefix(line, "-ERR")))
			return parseErrf(POP3, "banner", ErrUnexpectedResponse, "server refused the connection")
		}
		return parseErrf(POP3, "banner", ErrMalformedResponse, "status indicator expected")
	}
	s.set("greeting", strings.TrimSpace(text))
	return nil
}

// parsePOP3Capa parses the CAPA listing (RFC 2449). Servers predating CAPA
// answer -ERR, which is recorded rather than noted.
func parsePOP3Capa(s *Session, data []byte) *ParseError {
	lines := completeLines(data)
	if len(lines) == 0 {
		return parseErr(POP3, "CAPA", ErrShortResponse)
	}
	if strings.HasPrefix(lines[0], "-ERR") {
		s.set("capa_supported", "false")
		return nil
	}
	if !strings.HasPrefix(lines[0], "+OK") {
		return parseErrf(POP3, "CAPA", ErrMalformedResponse, "status indicator expected")
	}
	s.set("capa_supported", "true")

	var (
		caps       []string
		terminated bool
	)
	stls := false
	for _, l := range lines[1:] {
		if l == "." {
			terminated = true
			break
		}
		keyword, params, _ := strings.Cut(l, " ")
		keyword = strings.ToUpper(keyword)
		caps = append(caps, keyword)

		switch keyword {
		case "STLS":
			stls = true
		case "SASL":
			s.set("sasl", strings.Join(strings.Fields(params), ", "))
		case "IMPLEMENTATION":
			s.set("implementation", strings.TrimSpace(params))
		}
	}
	s.set("capabilities", strings.Join(caps, " "))
	s.set("stls", boolString(stls))

	if !terminated {
		return parseErrf(POP3, "CAPA", ErrShortResponse, "missing terminating line")
	}
	return nil
}

// firstLine returns the first line of data without its line ending.
func firstLine(data []byte) string {
	text := string(data)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimRight(text, "\r")
}

// boolString renders a flag as "true" or "false".
func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
