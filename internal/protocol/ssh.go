package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// sshClientIdent is sent back after the server identifies itself.
const sshClientIdent = "SSH-2.0-bannerscan\r\n"

// sshMsgKexInit is the SSH_MSG_KEXINIT message number.
const sshMsgKexInit = 20

// sshMaxPreambleLines bounds how many non-identification lines a server may
// send before its "SSH-" line (RFC 4253 section 4.2 allows a preamble).
const sshMaxPreambleLines = 32

// sshIdentComplete is satisfied once a line starting with "SSH-" arrives.
func sshIdentComplete(data []byte) bool {
	lines := completeLines(data)
	for _, l := range lines {
		if strings.HasPrefix(l, "SSH-") {
			return true
		}
	}
	return len(lines) > sshMaxPreambleLines
}

// driveSSH reads the server identification, answers with ours and reads the
// server's KEXINIT to list its algorithms.
func driveSSH(s *Session) {
	ident, ok := s.expect("identification", nil, sshIdentComplete)
	if len(ident) == 0 {
		return
	}

	end, perr := parseSSHIdent(s, ident)
	if perr != nil {
		// Not an SSH server, so there is nothing to echo.
		s.parseFailed(perr)
		return
	}
	if !ok || !s.send("identification", []byte(sshClientIdent)) {
		return
	}

	pending := bytes.Clone(ident[end:])
	if kex, _ := s.expect("KEXINIT", pending, sshPacketFramed); len(kex) > 0 {
		s.parseFailed(parseKexInit(s, kex))
	}
}

// parseSSHIdent parses "SSH-protoversion-softwareversion SP comments" and
// returns the offset just past the identification line.
func parseSSHIdent(s *Session, data []byte) (int, *ParseError) {
	offset := 0
	for {
		nl := bytes.IndexByte(data[offset:], '\n')
		var line string
		next := len(data)
		if nl >= 0 {
			line = string(data[offset : offset+nl])
			next = offset + nl + 1
		} else {
			line = string(data[offset:])
		}
		line = strings.TrimRight(line, "\r")

		if strings.HasPrefix(line, "SSH-") {
			if err := analyzeSSHIdent(s, line); err != nil {
				return next, err
			}
			return next, nil
		}
		if nl < 0 {
			return len(data), parseErrf(SSH, "identification", ErrMalformedResponse, "no SSH- identification line")
		}
		offset = next
	}
}

// analyzeSSHIdent records the version fields of an identification line.
func analyzeSSHIdent(s *Session, line string) *ParseError {
	parts := strings.SplitN(line, "-", 3)
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return parseErrf(SSH, "identification", ErrMalformedResponse, "%q", line)
	}
	s.set("ssh_protocol", parts[1])

	software, comments, _ := strings.Cut(parts[2], " ")
	s.set("ssh_software", software)
	s.set("ssh_comments", strings.TrimSpace(comments))
	s.set("detected_os", detectOS(parts[2]))

	lower := strings.ToLower(software)
	switch {
	case strings.Contains(lower, "openssh"):
		s.set("ssh_server", "OpenSSH")
	case strings.Contains(lower, "dropbear"):
		s.set("ssh_server", "Dropbear")
	case strings.Contains(lower, "libssh"):
		s.set("ssh_server", "libssh")
	case strings.Contains(lower, "cisco"):
		s.set("ssh_server", "Cisco")
	}
	return nil
}

// kexInitFields names the KEXINIT name-lists recorded as metadata, in wire
// order. Empty keys are read but not recorded.
var kexInitFields = []string{
	"kex_algorithms",
	"host_key_algorithms",
	"", // encryption client to server
	"ciphers",
	"", // mac client to server
	"macs",
	"", // compression client to server
	"compression",
}

// parseKexInit lists the server's algorithms from its KEXINIT packet.
func parseKexInit(s *Session, data []byte) *ParseError {
	if len(data) < 6 {
		return parseErr(SSH, "KEXINIT", ErrShortResponse)
	}
	packetLen := int(binary.BigEndian.Uint32(data[:4]))
	padding := int(data[4])
	if packetLen < padding+2 {
		return parseErrf(SSH, "KEXINIT", ErrMalformedResponse, "packet length %d", packetLen)
	}

	var payload []byte
	if len(data) >= 4+packetLen {
		payload = data[5 : 4+packetLen-padding]
	} else {
		// Truncated capture: parse what arrived.
		payload = data[5:]
	}

	if payload[0] != sshMsgKexInit {
		return parseErrf(SSH, "KEXINIT", ErrUnexpectedResponse, "message type %d", payload[0])
	}
	rest := payload[1:]
	if len(rest) < 16 {
		return parseErr(SSH, "KEXINIT", ErrShortResponse)
	}
	rest = rest[16:] // cookie

	for _, key := range kexInitFields {
		if len(rest) < 4 {
			return parseErr(SSH, "KEXINIT", ErrShortResponse)
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if n > len(rest)-4 {
			return parseErr(SSH, "KEXINIT", ErrShortResponse)
		}
		if key != "" {
			s.set(key, strings.ReplaceAll(string(rest[4:4+n]), ",", ", "))
		}
		rest = rest[4+n:]
	}
	return nil
}
