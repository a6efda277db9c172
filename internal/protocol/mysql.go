package protocol

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	// mysqlProtocolV10 is the handshake version of every MySQL since 3.21.
	mysqlProtocolV10 = 10
	// mysqlErrPacket marks an ERR packet, sent when the host is not allowed.
	mysqlErrPacket = 0xff
	// mysqlClientPluginAuth is the capability flag announcing an auth plugin name.
	mysqlClientPluginAuth = 0x00080000
)

// driveMySQL reads the server's initial handshake packet. MySQL speaks
// first, so the active sequence has no writes.
func driveMySQL(s *Session) {
	if greeting, _ := s.expect("handshake", nil, mysqlPacketFramed); len(greeting) > 0 {
		s.parseFailed(parseMySQLHandshake(s, greeting))
	}
}

// parseMySQLHandshake decodes a HandshakeV10 packet or the ERR packet some
// servers send instead. Fields are recorded as far as the packet goes.
func parseMySQLHandshake(s *Session, data []byte) *ParseError {
	if len(data) < 5 {
		return parseErr(MySQL, "handshake", ErrShortResponse)
	}
	payloadLen := int(data[0]) | int(data[1])<<8 | int(data[2])<<16
	payload := data[4:]
	if len(payload) > payloadLen {
		payload = payload[:payloadLen]
	}
	if len(payload) == 0 {
		return parseErr(MySQL, "handshake", ErrShortResponse)
	}

	switch payload[0] {
	case mysqlErrPacket:
		return parseMySQLError(s, payload)
	case mysqlProtocolV10:
	default:
		return parseErrf(MySQL, "handshake", ErrUnexpectedResponse, "protocol version %d", payload[0])
	}
	s.set("protocol_version", strconv.Itoa(int(payload[0])))

	r := payload[1:]
	nul := bytes.IndexByte(r, 0)
	if nul < 0 {
		return parseErrf(MySQL, "handshake", ErrMalformedResponse, "unterminated server version")
	}
	version := string(r[:nul])
	s.set("server_version", version)
	if strings.Contains(strings.ToLower(version), "mariadb") {
		s.set("mariadb", "true")
	}
	r = r[nul+1:]

	// thread id (4), auth-plugin-data part 1 (8), filler (1), capability flags lower (2)
	if len(r) < 15 {
		return parseErr(MySQL, "handshake", ErrShortResponse)
	}
	s.set("thread_id", strconv.FormatUint(uint64(binary.LittleEndian.Uint32(r[:4])), 10))
	caps := uint32(binary.LittleEndian.Uint16(r[13:15]))
	r = r[15:]

	// character set (1), status flags (2), capability flags upper (2),
	// auth-plugin-data length (1), reserved (10)
	if len(r) < 16 {
		s.set("capabilities", "0x"+strconv.FormatUint(uint64(caps), 16))
		return nil
	}
	s.set("charset", strconv.Itoa(int(r[0])))
	s.set("status", "0x"+strconv.FormatUint(uint64(binary.LittleEndian.Uint16(r[1:3])), 16))
	caps |= uint32(binary.LittleEndian.Uint16(r[3:5])) << 16
	s.set("capabilities", "0x"+strconv.FormatUint(uint64(caps), 16))
	authDataLen := int(r[5])
	r = r[16:]

	if caps&mysqlClientPluginAuth == 0 {
		return nil
	}

	// auth-plugin-data part 2 is max(13, authDataLen-8) bytes, then the plugin name.
	skip := max(13, authDataLen-8)
	if len(r) < skip {
		return nil
	}
	name := r[skip:]
	if nul := bytes.IndexByte(name, 0); nul >= 0 {
		name = name[:nul]
	}
	s.set("auth_plugin", string(name))
	return nil
}

// parseMySQLError decodes an ERR packet: code, optional SQL state and message.
func parseMySQLError(s *Session, payload []byte) *ParseError {
	if len(payload) < 3 {
		return parseErr(MySQL, "handshake", ErrShortResponse)
	}
	s.set("error_code", strconv.Itoa(int(binary.LittleEndian.Uint16(payload[1:3]))))
	msg := payload[3:]
	if len(msg) >= 6 && msg[0] == '#' {
		s.set("sql_state", string(msg[1:6]))
		msg = msg[6:]
	}
	s.set("error_message", strings.TrimSpace(string(msg)))
	return nil
}
