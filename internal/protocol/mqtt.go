package protocol

import (
	"strconv"
)

const (
	// mqttConnAck is the CONNACK fixed header byte.
	mqttConnAck = 0x20
)

// mqttConnectPacket is an MQTT 3.1.1 CONNECT with clean session, an empty
// client id and a 10 second keep alive.
var mqttConnectPacket = []byte{
	0x10, 0x0c, // CONNECT, remaining length 12
	0x00, 0x04, 'M', 'Q', 'T', 'T', // protocol name
	0x04,       // protocol level 3.1.1
	0x02,       // connect flags: clean session
	0x00, 0x0a, // keep alive
	0x00, 0x00, // client id ""
}

// mqttReturnCodes names the CONNACK return codes of MQTT 3.1.1.
var mqttReturnCodes = map[byte]string{
	0: "accepted",
	1: "unacceptable protocol version",
	2: "identifier rejected",
	3: "server unavailable",
	4: "bad user name or password",
	5: "not authorized",
}

// connAckComplete frames the CONNACK: fixed header byte, remaining length
// (a variable length integer) and the body.
func connAckComplete(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	remaining, used, ok := mqttRemainingLength(data[1:])
	if !ok {
		return used < 0
	}
	return len(data) >= 1+used+remaining
}

// mqttRemainingLength decodes the variable length integer at the start of b.
// used is -1 when the encoding is invalid; ok is false when more bytes are needed.
func mqttRemainingLength(b []byte) (value, used int, ok bool) {
	multiplier := 1
	for i := range 4 {
		if i >= len(b) {
			return 0, i, false
		}
		value += int(b[i]&0x7f) * multiplier
		if b[i]&0x80 == 0 {
			return value, i + 1, true
		}
		multiplier *= 128
	}
	return 0, -1, false
}

// driveMQTT sends CONNECT and reads CONNACK.
func driveMQTT(s *Session) {
	if !s.send("CONNECT", mqttConnectPacket) {
		return
	}
	if ack, _ := s.expect("CONNECT", nil, connAckComplete); len(ack) > 0 {
		s.parseFailed(parseConnAck(s, ack))
	}
}

// parseConnAck records the session-present flag and the return code.
func parseConnAck(s *Session, data []byte) *ParseError {
	if data[0] != mqttConnAck {
		return parseErrf(MQTT, "CONNACK", ErrUnexpectedResponse, "packet type 0x%02x", data[0])
	}
	if len(data) < 4 {
		return parseErr(MQTT, "CONNACK", ErrShortResponse)
	}
	if data[1] != 0x02 {
		return parseErrf(MQTT, "CONNACK", ErrMalformedResponse, "remaining length %d", data[1])
	}

	s.set("connack", "true")
	s.set("session_present", boolString(data[2]&0x01 != 0))
	name, ok := mqttReturnCodes[data[3]]
	if !ok {
		name = "unknown (" + strconv.Itoa(int(data[3])) + ")"
	}
	s.set("return_code", name)
	return nil
}
