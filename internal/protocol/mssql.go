package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	// tdsPreLogin is the TDS packet type of a PRELOGIN request.
	tdsPreLogin = 0x12
	// tdsResponse is the TDS packet type of a tabular response.
	tdsResponse = 0x04
	// tdsHeaderLen is the fixed TDS packet header size.
	tdsHeaderLen = 8
	// tdsStatusEOM marks the last packet of a message.
	tdsStatusEOM = 0x01
)

// PRELOGIN option tokens.
const (
	preloginVersion    = 0x00
	preloginEncryption = 0x01
	preloginInstOpt    = 0x02
	preloginThreadID   = 0x03
	preloginMARS       = 0x04
	preloginTerminator = 0xff
)

// mssqlEncryption names the ENCRYPTION option values.
var mssqlEncryption = map[byte]string{
	0x00: "off",
	0x01: "on",
	0x02: "not_supported",
	0x03: "required",
}

// mssqlProducts maps major versions to the marketed SQL Server release.
var mssqlProducts = map[byte]string{
	8:  "SQL Server 2000",
	9:  "SQL Server 2005",
	10: "SQL Server 2008",
	11: "SQL Server 2012",
	12: "SQL Server 2014",
	13: "SQL Server 2016",
	14: "SQL Server 2017",
	15: "SQL Server 2019",
	16: "SQL Server 2022",
}

// mssqlPreLoginPacket builds a PRELOGIN request announcing no encryption
// support, so the server answers in clear text.
func mssqlPreLoginPacket() []byte {
	type option struct {
		token byte
		data  []byte
	}
	options := []option{
		{preloginVersion, []byte{0x0f, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{preloginEncryption, []byte{0x02}},
		{preloginInstOpt, []byte{0x00}},
		{preloginThreadID, []byte{0x00, 0x00, 0x00, 0x00}},
		{preloginMARS, []byte{0x00}},
	}

	tableLen := len(options)*5 + 1
	var table, data bytes.Buffer
	for _, o := range options {
		table.WriteByte(o.token)
		_ = binary.Write(&table, binary.BigEndian, uint16(tableLen+data.Len()))
		_ = binary.Write(&table, binary.BigEndian, uint16(len(o.data)))
		data.Write(o.data)
	}
	table.WriteByte(preloginTerminator)

	total := tdsHeaderLen + table.Len() + data.Len()
	packet := make([]byte, 0, total)
	packet = append(packet, tdsPreLogin, tdsStatusEOM)
	packet = binary.BigEndian.AppendUint16(packet, uint16(total))
	packet = append(packet, 0x00, 0x00, 0x01, 0x00) // SPID, packet id, window
	packet = append(packet, table.Bytes()...)
	return append(packet, data.Bytes()...)
}

// tdsMessageComplete frames a TDS message: one or more packets, the last
// carrying the EOM status bit.
func tdsMessageComplete(data []byte) bool {
	for len(data) >= tdsHeaderLen {
		n := int(binary.BigEndian.Uint16(data[2:4]))
		if n < tdsHeaderLen {
			return true
		}
		if len(data) < n {
			return false
		}
		if data[1]&tdsStatusEOM != 0 {
			return true
		}
		data = data[n:]
	}
	return false
}

// tdsPayload strips the packet headers and concatenates the payloads.
func tdsPayload(data []byte) ([]byte, error) {
	var payload []byte
	for len(data) > 0 {
		if len(data) < tdsHeaderLen {
			return payload, ErrShortResponse
		}
		if data[0] != tdsResponse {
			return payload, fmt.Errorf("%w: packet type 0x%02x", ErrUnexpectedResponse, data[0])
		}
		n := int(binary.BigEndian.Uint16(data[2:4]))
		if n < tdsHeaderLen {
			return payload, fmt.Errorf("%w: packet length %d", ErrMalformedResponse, n)
		}
		if n > len(data) {
			return append(payload, data[tdsHeaderLen:]...), ErrShortResponse
		}
		payload = append(payload, data[tdsHeaderLen:n]...)
		if data[1]&tdsStatusEOM != 0 {
			break
		}
		data = data[n:]
	}
	return payload, nil
}

// driveMSSQL sends PRELOGIN and parses the server's option table.
func driveMSSQL(s *Session) {
	if !s.send("PRELOGIN", mssqlPreLoginPacket()) {
		return
	}
	if resp, _ := s.expect("PRELOGIN", nil, tdsMessageComplete); len(resp) > 0 {
		s.parseFailed(parsePreLoginResponse(s, resp))
	}
}

// parsePreLoginResponse decodes the VERSION, ENCRYPTION, INSTOPT and MARS
// options of a PRELOGIN response.
func parsePreLoginResponse(s *Session, data []byte) *ParseError {
	payload, err := tdsPayload(data)
	if err != nil && len(payload) == 0 {
		return parseErr(MSSQL, "PRELOGIN", err)
	}

	for i := 0; ; i += 5 {
		if i >= len(payload) {
			return parseErrf(MSSQL, "PRELOGIN", ErrShortResponse, "option table not terminated")
		}
		token := payload[i]
		if token == preloginTerminator {
			break
		}
		if i+5 > len(payload) {
			return parseErr(MSSQL, "PRELOGIN", ErrShortResponse)
		}
		offset := int(binary.BigEndian.Uint16(payload[i+1 : i+3]))
		length := int(binary.BigEndian.Uint16(payload[i+3 : i+5]))
		if offset+length > len(payload) {
			return parseErrf(MSSQL, "PRELOGIN", ErrShortResponse, "option 0x%02x out of range", token)
		}
		recordPreLoginOption(s, token, payload[offset:offset+length])
	}

	if err != nil {
		return parseErr(MSSQL, "PRELOGIN", err)
	}
	return nil
}

// recordPreLoginOption stores one PRELOGIN option value.
func recordPreLoginOption(s *Session, token byte, value []byte) {
	switch token {
	case preloginVersion:
		if len(value) < 6 {
			return
		}
		major, minor := value[0], value[1]
		build := binary.BigEndian.Uint16(value[2:4])
		sub := binary.BigEndian.Uint16(value[4:6])
		s.set("version", fmt.Sprintf("%d.%d.%d.%d", major, minor, build, sub))
		product := mssqlProducts[major]
		if major == 10 && minor == 50 {
			product = "SQL Server 2008 R2"
		}
		s.set("product", product)
	case preloginEncryption:
		if len(value) < 1 {
			return
		}
		name, ok := mssqlEncryption[value[0]]
		if !ok {
			name = "unknown(" + strconv.Itoa(int(value[0])) + ")"
		}
		s.set("encryption", name)
	case preloginInstOpt:
		if nul := bytes.IndexByte(value, 0); nul >= 0 {
			value = value[:nul]
		}
		s.set("instance", string(value))
	case preloginMARS:
		if len(value) > 0 {
			s.set("mars", boolString(value[0] == 1))
		}
	}
}
