package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	// mongoOpReply is the legacy OP_REPLY opcode.
	mongoOpReply = 1
	// mongoOpQuery is the legacy OP_QUERY opcode, still accepted for the
	// isMaster handshake by every server version.
	mongoOpQuery = 2004
	// mongoOpMsg is the OP_MSG opcode used by newer servers.
	mongoOpMsg = 2013
	// mongoHeaderLen is the standard message header size.
	mongoHeaderLen = 16
)

// mongoWireVersions maps maxWireVersion to the release family that
// introduced it.
var mongoWireVersions = map[int32]string{
	0:  "2.4 or older",
	1:  "2.6 (pre-release)",
	2:  "2.6",
	3:  "3.0",
	4:  "3.2",
	5:  "3.4",
	6:  "3.6",
	7:  "4.0",
	8:  "4.2",
	9:  "4.4",
	13: "5.0",
	14: "5.1",
	17: "6.0",
	21: "7.0",
	25: "8.0",
}

// mongoIsMasterQuery builds an OP_QUERY running isMaster on admin.$cmd.
func mongoIsMasterQuery() ([]byte, error) {
	doc, err := bson.Marshal(bson.D{{Key: "isMaster", Value: int32(1)}})
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, 64)
	body = binary.LittleEndian.AppendUint32(body, 0) // flags
	body = append(body, "admin.$cmd"...)
	body = append(body, 0)
	body = binary.LittleEndian.AppendUint32(body, 0) // numberToSkip
	body = binary.LittleEndian.AppendUint32(body, uint32(0xffffffff)) // numberToReturn -1
	body = append(body, doc...)

	msg := make([]byte, 0, mongoHeaderLen+len(body))
	msg = binary.LittleEndian.AppendUint32(msg, uint32(mongoHeaderLen+len(body)))
	msg = binary.LittleEndian.AppendUint32(msg, 1) // requestID
	msg = binary.LittleEndian.AppendUint32(msg, 0) // responseTo
	msg = binary.LittleEndian.AppendUint32(msg, mongoOpQuery)
	return append(msg, body...), nil
}

// driveMongoDB sends isMaster and parses the reply document.
func driveMongoDB(s *Session) {
	query, err := mongoIsMasterQuery()
	if err != nil {
		s.halt("isMaster: %v", err)
		return
	}
	if !s.send("isMaster", query) {
		return
	}
	if reply, _ := s.expect("isMaster", nil, mongoMessageFramed); len(reply) > 0 {
		s.parseFailed(parseMongoReply(s, reply))
	}
}

// parseMongoReply extracts the reply document from an OP_REPLY or OP_MSG
// and records its version fields.
func parseMongoReply(s *Session, data []byte) *ParseError {
	if len(data) < mongoHeaderLen {
		return parseErr(MongoDB, "isMaster", ErrShortResponse)
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	if length < mongoHeaderLen {
		return parseErrf(MongoDB, "isMaster", ErrMalformedResponse, "message length %d", length)
	}
	if len(data) > length {
		data = data[:length]
	}

	var doc []byte
	switch opcode := binary.LittleEndian.Uint32(data[12:16]); opcode {
	case mongoOpReply:
		// responseFlags (4), cursorID (8), startingFrom (4), numberReturned (4)
		if len(data) < mongoHeaderLen+20 {
			return parseErr(MongoDB, "isMaster", ErrShortResponse)
		}
		doc = data[mongoHeaderLen+20:]
	case mongoOpMsg:
		// flagBits (4), section kind (1)
		if len(data) < mongoHeaderLen+5 || data[mongoHeaderLen+4] != 0 {
			return parseErr(MongoDB, "isMaster", ErrShortResponse)
		}
		doc = data[mongoHeaderLen+5:]
	default:
		return parseErrf(MongoDB, "isMaster", ErrUnexpectedResponse, "opcode %d", opcode)
	}

	if len(doc) < 4 {
		return parseErr(MongoDB, "isMaster", ErrShortResponse)
	}
	if n := int(binary.LittleEndian.Uint32(doc[:4])); n >= 5 && n <= len(doc) {
		doc = doc[:n]
	}

	raw := bson.Raw(doc)
	if err := raw.Validate(); err != nil {
		return parseErr(MongoDB, "isMaster", fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	recordMongoFields(s, raw)

	if mongoCommandFailed(raw) {
		return parseErrf(MongoDB, "isMaster", ErrUnexpectedResponse, "command failed")
	}
	return nil
}

// mongoCommandFailed reports whether the reply carries ok: 0.
func mongoCommandFailed(raw bson.Raw) bool {
	v := raw.Lookup("ok")
	if d, ok := v.DoubleOK(); ok {
		return d == 0
	}
	if i, ok := v.Int32OK(); ok {
		return i == 0
	}
	return false
}

// recordMongoFields stores the handshake fields worth reporting.
func recordMongoFields(s *Session, raw bson.Raw) {
	if v, ok := raw.Lookup("ismaster").BooleanOK(); ok {
		s.set("ismaster", boolString(v))
	} else if v, ok := raw.Lookup("isWritablePrimary").BooleanOK(); ok {
		s.set("ismaster", boolString(v))
	}

	if v, ok := raw.Lookup("minWireVersion").Int32OK(); ok {
		s.set("min_wire_version", strconv.Itoa(int(v)))
	}
	if v, ok := raw.Lookup("maxWireVersion").Int32OK(); ok {
		s.set("max_wire_version", strconv.Itoa(int(v)))
		family, known := mongoWireVersions[v]
		if !known {
			family = "unknown (wire version " + strconv.Itoa(int(v)) + ")"
		}
		s.set("server_family", family)
	}

	for key, field := range map[string]string{
		"setName": "set_name",
		"msg":     "msg",
		"errmsg":  "error_message",
	} {
		if v, ok := raw.Lookup(key).StringValueOK(); ok {
			s.set(field, v)
		}
	}
}
