package protocol

import (
	"strings"
)

// driveSMTP reads the greeting and sends EHLO.
func driveSMTP(s *Session, ehloName string) {
	banner, ok := s.expect("banner", nil, replyComplete)
	if len(banner) > 0 {
		s.parseFailed(parseSMTPBanner(s, banner))
	}
	if !ok || !s.send("EHLO", []byte("EHLO "+ehloName+"\r\n")) {
		return
	}

	if ehlo, _ := s.expect("EHLO", nil, replyComplete); len(ehlo) > 0 {
		s.parseFailed(parseSMTPExtensions(s, ehlo))
	}
}

// parseSMTPBanner extracts the server software and the announced hostname
// from the 220 greeting.
func parseSMTPBanner(s *Session, data []byte) *ParseError {
	r, err := parseReply(data)
	if err != nil {
		return parseErr(SMTP, "banner", err)
	}
	s.set("reply_code", r.code)

	text := r.text()
	lower := strings.ToLower(text)

	var server string
	switch {
	case strings.Contains(lower, "postfix"):
		server = "Postfix"
	case strings.Contains(lower, "exim"):
		server = "Exim"
	case strings.Contains(lower, "sendmail"):
		server = "Sendmail"
	case strings.Contains(lower, "microsoft"):
		server = "Microsoft Exchange"
	case strings.Contains(lower, "dovecot"):
		server = "Dovecot"
	case strings.Contains(lower, "zimbra"):
		server = "Zimbra"
	case strings.Contains(lower, "opensmtpd"):
		server = "OpenSMTPD"
	case strings.Contains(lower, "haraka"):
		server = "Haraka"
	}
	s.set("smtp_server", server)
	s.set("detected_os", detectOS(text))

	if strings.Contains(text, "ESMTP") {
		s.set("esmtp", "true")
	}

	// The first word of a 220 greeting is the server's own hostname.
	if fields := strings.Fields(r.lines[0]); len(fields) > 0 {
		host := fields[0]
		if strings.Contains(host, ".") && !strings.Contains(host, "@") {
			s.set("smtp_hostname", host)
		}
	}

	if r.code != "220" {
		return parseErrf(SMTP, "banner", ErrUnexpectedResponse, "reply code %s", r.code)
	}
	return nil
}

// parseSMTPExtensions lists the ESMTP extensions from a 250 EHLO reply.
func parseSMTPExtensions(s *Session, data []byte) *ParseError {
	r, err := parseReply(data)
	if err != nil {
		return parseErr(SMTP, "EHLO", err)
	}
	if !r.positive() {
		return parseErrf(SMTP, "EHLO", ErrUnexpectedResponse, "reply code %s", r.code)
	}

	var extensions []string
	for _, l := range r.lines[1:] {
		if l == "" {
			continue
		}
		extensions = append(extensions, l)

		keyword, params, _ := strings.Cut(l, " ")
		switch strings.ToUpper(keyword) {
		case "STARTTLS":
			s.set("starttls", "true")
		case "AUTH":
			s.set("auth_mechanisms", strings.Join(strings.Fields(params), ", "))
		case "SIZE":
			s.set("max_size", strings.TrimSpace(params))
		}
	}
	if _, ok := s.metadata["starttls"]; !ok {
		s.set("starttls", "false")
	}
	s.set("extensions", strings.Join(extensions, ", "))
	return nil
}
