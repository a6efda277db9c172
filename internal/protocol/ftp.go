package protocol

import (
	"strings"
)

// driveFTP reads the greeting, then asks for FEAT and SYST.
func driveFTP(s *Session) {
	banner, ok := s.expect("banner", nil, replyComplete)
	if len(banner) > 0 {
		s.parseFailed(parseFTPBanner(s, banner))
	}
	if !ok || !s.send("FEAT", []byte("FEAT\r\n")) {
		return
	}

	feat, ok := s.expect("FEAT", nil, replyComplete)
	if len(feat) > 0 {
		s.parseFailed(parseFTPFeatures(s, feat))
	}
	if !ok || !s.send("SYST", []byte("SYST\r\n")) {
		return
	}

	if syst, _ := s.expect("SYST", nil, replyComplete); len(syst) > 0 {
		s.parseFailed(parseFTPSystem(s, syst))
	}
}

// parseFTPBanner extracts the server software from the 220 greeting.
func parseFTPBanner(s *Session, data []byte) *ParseError {
	r, err := parseReply(data)
	if err != nil {
		return parseErr(FTP, "banner", err)
	}
	s.set("reply_code", r.code)

	text := r.text()
	lower := strings.ToLower(text)

	var server string
	switch {
	case strings.Contains(lower, "vsftpd"):
		server = "vsFTPd"
	case strings.Contains(lower, "proftpd"):
		server = "ProFTPD"
	case strings.Contains(lower, "pure-ftpd"):
		server = "Pure-FTPd"
	case strings.Contains(lower, "filezilla"):
		server = "FileZilla Server"
	case strings.Contains(lower, "microsoft ftp"):
		server = "Microsoft IIS FTP"
	case strings.Contains(lower, "serv-u"):
		server = "Serv-U"
	case strings.Contains(lower, "wu-"):
		server = "WU-FTPD"
	case strings.Contains(lower, "pyftpdlib"):
		server = "pyftpdlib"
	}
	s.set("ftp_server", server)
	s.set("detected_os", detectOS(text))

	if r.code != "220" {
		return parseErrf(FTP, "banner", ErrUnexpectedResponse, "reply code %s", r.code)
	}
	return nil
}

// parseFTPFeatures lists the extensions from a 211 FEAT reply. Servers that
// do not implement FEAT answer 5xx, which is recorded rather than noted.
func parseFTPFeatures(s *Session, data []byte) *ParseError {
	r, err := parseReply(data)
	if err != nil {
		return parseErr(FTP, "FEAT", err)
	}
	if r.code[0] == '5' {
		s.set("feat_supported", "false")
		return nil
	}
	if r.code != "211" {
		return parseErrf(FTP, "FEAT", ErrUnexpectedResponse, "reply code %s", r.code)
	}

	var features []string
	if len(r.lines) > 2 {
		for _, l := range r.lines[1 : len(r.lines)-1] {
			if l != "" {
				features = append(features, l)
			}
		}
	}
	s.set("feat_supported", "true")
	s.set("features", strings.Join(features, ", "))
	return nil
}

// parseFTPSystem records the 215 SYST answer.
func parseFTPSystem(s *Session, data []byte) *ParseError {
	r, err := parseReply(data)
	if err != nil {
		return parseErr(FTP, "SYST", err)
	}
	if r.code != "215" {
		if r.code[0] == '5' {
			return nil
		}
		return parseErrf(FTP, "SYST", ErrUnexpectedResponse, "reply code %s", r.code)
	}

	system := r.text()
	s.set("system", system)
	if _, ok := s.metadata["detected_os"]; !ok {
		s.set("detected_os", detectOS(system))
	}
	return nil
}
