package protocol

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	// postgresProtocolV3 is protocol version 3.0 (major 3 << 16 | minor 0).
	postgresProtocolV3 = 196608
	// postgresUser is the user name announced in the startup packet.
	postgresUser = "bannerscan"
	// postgresDatabase is the database requested in the startup packet.
	postgresDatabase = "postgres"
)

// postgresAuthMethods names the AuthenticationRequest codes.
var postgresAuthMethods = map[uint32]string{
	0:  "trust",
	2:  "kerberos_v5",
	3:  "cleartext",
	5:  "md5",
	6:  "scm_credential",
	7:  "gss",
	9:  "sspi",
	10: "sasl",
}

// postgresStartupPacket builds the protocol 3.0 StartupMessage.
func postgresStartupPacket() []byte {
	var body bytes.Buffer
	_ = binary.Write(&body, binary.BigEndian, uint32(postgresProtocolV3))
	for _, kv := range []string{"user", postgresUser, "database", postgresDatabase} {
		body.WriteString(kv)
		body.WriteByte(0)
	}
	body.WriteByte(0)

	packet := make([]byte, 4, 4+body.Len())
	binary.BigEndian.PutUint32(packet, uint32(4+body.Len()))
	return append(packet, body.Bytes()...)
}

// drivePostgreSQL sends a startup packet and reads the first backend
// message, which is either an authentication request or an error.
func drivePostgreSQL(s *Session) {
	if !s.send("startup", postgresStartupPacket()) {
		return
	}
	if msg, _ := s.expect("startup", nil, postgresMessageFramed); len(msg) > 0 {
		s.parseFailed(parsePostgresResponse(s, msg))
	}
}

// parsePostgresResponse decodes an 'R' authentication request or an 'E'
// error response.
func parsePostgresResponse(s *Session, data []byte) *ParseError {
	if len(data) < 5 {
		return parseErr(PostgreSQL, "startup", ErrShortResponse)
	}
	length := int(binary.BigEndian.Uint32(data[1:5]))
	if length < 4 {
		return parseErrf(PostgreSQL, "startup", ErrMalformedResponse, "message length %d", length)
	}
	body := data[5:]
	if len(body) > length-4 {
		body = body[:length-4]
	}

	switch data[0] {
	case 'R':
		return parsePostgresAuth(s, body)
	case 'E':
		return parsePostgresError(s, body)
	case 'v':
		s.set("auth_method", "protocol_negotiation")
		return nil
	default:
		return parseErrf(PostgreSQL, "startup", ErrUnexpectedResponse, "message type %q", data[0])
	}
}

// parsePostgresAuth records the requested authentication method and, for
// SASL, the offered mechanisms.
func parsePostgresAuth(s *Session, body []byte) *ParseError {
	if len(body) < 4 {
		return parseErr(PostgreSQL, "startup", ErrShortResponse)
	}
	code := binary.BigEndian.Uint32(body[:4])
	method, ok := postgresAuthMethods[code]
	if !ok {
		method = "unknown(" + strconv.FormatUint(uint64(code), 10) + ")"
	}
	s.set("auth_method", method)

	if code == 10 {
		var mechanisms []string
		for _, m := range bytes.Split(body[4:], []byte{0}) {
			if len(m) > 0 {
				mechanisms = append(mechanisms, string(m))
			}
		}
		s.set("sasl_mechanisms", strings.Join(mechanisms, ", "))
	}
	return nil
}

// parsePostgresError records the severity, SQLSTATE code and message of an
// ErrorResponse. Each field is a type byte followed by a C string.
func parsePostgresError(s *Session, body []byte) *ParseError {
	for len(body) > 0 && body[0] != 0 {
		field := body[0]
		nul := bytes.IndexByte(body[1:], 0)
		if nul < 0 {
			return parseErrf(PostgreSQL, "startup", ErrMalformedResponse, "unterminated error field")
		}
		value := string(body[1 : 1+nul])
		body = body[2+nul:]

		switch field {
		case 'V':
			s.set("error_severity", value)
		case 'S':
			if _, ok := s.metadata["error_severity"]; !ok {
				s.set("error_severity", value)
			}
		case 'C':
			s.set("error_code", value)
		case 'M':
			s.set("error_message", value)
		}
	}
	return nil
}
