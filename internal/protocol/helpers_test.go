package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/bannerscan/internal/timeout"
	"go.mongodb.org/mongo-driver/bson"
)

// testPolicy is generous enough for loopback servers.
var testPolicy = timeout.Policy{
	Connect: time.Second,
	Read:    500 * time.Millisecond,
	Overall: 3 * time.Second,
}

// newParseSession returns a Session for exercising parsers without a connection.
func newParseSession() *Session {
	return &Session{metadata: make(map[string]string)}
}

// serverStep is one exchange of a scripted fake server: wait for expect (or
// expectLen bytes) from the client, then write reply. close ends the
// conversation right after the step.
type serverStep struct {
	expect    string
	expectLen int
	reply     []byte
	close     bool
}

// startServer runs a single-connection scripted TCP server on loopback and
// returns its address and a channel yielding every byte the client sent.
func startServer(t *testing.T, steps []serverStep) (string, <-chan []byte) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

		var got []byte
		mark := 0
		buf := make([]byte, 4096)
		readMore := func() bool {
			n, err := conn.Read(buf)
			got = append(got, buf[:n]...)
			return err == nil
		}

		for _, st := range steps {
			switch {
			case st.expect != "":
				for {
					if i := bytes.Index(got[mark:], []byte(st.expect)); i >= 0 {
						mark += i + len(st.expect)
						break
					}
					if !readMore() {
						received <- got
						return
					}
				}
			case st.expectLen > 0:
				for len(got)-mark < st.expectLen {
					if !readMore() {
						received <- got
						return
					}
				}
				mark += st.expectLen
			}
			if len(st.reply) > 0 {
				_, _ = conn.Write(st.reply)
			}
			if st.close {
				received <- got
				return
			}
		}
		for readMore() {
		}
		received <- got
	}()

	return ln.Addr().String(), received
}

// probeRun is what runProbe observed.
type probeRun struct {
	outcome  model.Outcome
	session  *Session
	received []byte
	elapsed  time.Duration
}

// runProbe connects to a scripted server and drives p over the connection.
func runProbe(t *testing.T, p Protocol, mode model.Mode, policy timeout.Policy, maxBytes int, steps []serverStep) probeRun {
	t.Helper()

	addr, received := startServer(t, steps)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	start := time.Now()
	budget := policy.Start(start)
	ctx, cancel := context.WithDeadline(context.Background(), budget.Deadline())
	defer cancel()

	s := NewSession(ctx, conn, budget, maxBytes)
	outcome := Drive(p, s, mode, DefaultOptions())
	elapsed := time.Since(start)
	_ = conn.Close()

	var got []byte
	select {
	case got = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("fake server did not finish")
	}

	return probeRun{outcome: outcome, session: s, received: got, elapsed: elapsed}
}

// mysqlHandshakePacket builds a HandshakeV10 packet.
func mysqlHandshakePacket(version string) []byte {
	var p bytes.Buffer
	p.WriteByte(mysqlProtocolV10)
	p.WriteString(version)
	p.WriteByte(0)
	_ = binary.Write(&p, binary.LittleEndian, uint32(42)) // thread id
	p.WriteString("abcdefgh")                              // auth-plugin-data part 1
	p.WriteByte(0)                                         // filler
	_ = binary.Write(&p, binary.LittleEndian, uint16(0xf7ff))
	p.WriteByte(0xff)                                          // charset
	_ = binary.Write(&p, binary.LittleEndian, uint16(0x0002)) // status
	_ = binary.Write(&p, binary.LittleEndian, uint16(0x0008)) // capability flags upper (plugin auth)
	p.WriteByte(21)                                            // auth-plugin-data length
	p.Write(make([]byte, 10))                                  // reserved
	p.WriteString("ijklmnopqrst\x00")                          // auth-plugin-data part 2
	p.WriteString("caching_sha2_password")
	p.WriteByte(0)

	return mysqlPacket(0, p.Bytes())
}

// mysqlPacket frames payload with the 4-byte MySQL packet header.
func mysqlPacket(seq byte, payload []byte) []byte {
	n := len(payload)
	return append([]byte{byte(n), byte(n >> 8), byte(n >> 16), seq}, payload...)
}

// kexInitPacket builds an SSH binary packet carrying SSH_MSG_KEXINIT.
func kexInitPacket(lists ...string) []byte {
	var payload bytes.Buffer
	payload.WriteByte(sshMsgKexInit)
	payload.Write(make([]byte, 16))
	for _, l := range lists {
		_ = binary.Write(&payload, binary.BigEndian, uint32(len(l)))
		payload.WriteString(l)
	}
	payload.WriteByte(0)              // first_kex_packet_follows
	payload.Write(make([]byte, 4))    // reserved

	const padding = 4
	var packet bytes.Buffer
	_ = binary.Write(&packet, binary.BigEndian, uint32(1+payload.Len()+padding))
	packet.WriteByte(padding)
	packet.Write(payload.Bytes())
	packet.Write(make([]byte, padding))
	return packet.Bytes()
}

// preLoginResponse builds a TDS PRELOGIN response with VERSION and ENCRYPTION.
func preLoginResponse(version [6]byte, encryption byte) []byte {
	payload := []byte{
		preloginVersion, 0x00, 0x0b, 0x00, 0x06,
		preloginEncryption, 0x00, 0x11, 0x00, 0x01,
		preloginTerminator,
	}
	payload = append(payload, version[:]...)
	payload = append(payload, encryption)

	packet := []byte{tdsResponse, tdsStatusEOM, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00}
	binary.BigEndian.PutUint16(packet[2:4], uint16(tdsHeaderLen+len(payload)))
	return append(packet, payload...)
}

// mongoReply builds an OP_REPLY carrying doc.
func mongoReply(t *testing.T, doc bson.D) []byte {
	t.Helper()

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal reply: %v", err)
	}

	body := make([]byte, 0, 20+len(raw))
	body = binary.LittleEndian.AppendUint32(body, 0) // responseFlags
	body = binary.LittleEndian.AppendUint64(body, 0) // cursorID
	body = binary.LittleEndian.AppendUint32(body, 0) // startingFrom
	body = binary.LittleEndian.AppendUint32(body, 1) // numberReturned
	body = append(body, raw...)

	msg := make([]byte, 0, mongoHeaderLen+len(body))
	msg = binary.LittleEndian.AppendUint32(msg, uint32(mongoHeaderLen+len(body)))
	msg = binary.LittleEndian.AppendUint32(msg, 7)
	msg = binary.LittleEndian.AppendUint32(msg, 1)
	msg = binary.LittleEndian.AppendUint32(msg, mongoOpReply)
	return append(msg, body...)
}

// postgresMessage frames a backend message.
func postgresMessage(kind byte, body []byte) []byte {
	msg := []byte{kind, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(msg[1:], uint32(4+len(body)))
	return append(msg, body...)
}
