package protocol

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/bannerscan/internal/timeout"
	"go.mongodb.org/mongo-driver/bson"
)

// TestDrivePassiveNeverWrites tests that passive mode only reads, whatever
// the protocol.
func TestDrivePassiveNeverWrites(t *testing.T) {
	t.Parallel()

	for _, p := range All() {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()

			run := runProbe(t, p, model.ModePassive, testPolicy, 0, []serverStep{
				{reply: []byte("hello\r\n")},
			})

			if run.session.Writes() != 0 {
				t.Errorf("expected no writes, got %d", run.session.Writes())
			}
			if len(run.received) != 0 {
				t.Errorf("expected the server to receive nothing, got %q", run.received)
			}
			if string(run.outcome.Banner) != "hello\r\n" {
				t.Errorf("expected banner %q, got %q", "hello\r\n", run.outcome.Banner)
			}
		})
	}
}

// TestDriveFTP tests the FTP active sequence.
func TestDriveFTP(t *testing.T) {
	t.Parallel()

	run := runProbe(t, FTP, model.ModeActive, testPolicy, 0, []serverStep{
		{reply: []byte("220 (vsFTPd 3.0.3)\r\n")},
		{expect: "FEAT\r\n", reply: []byte("211-Features:\r\n EPRT\r\n UTF8\r\n211 End\r\n")},
		{expect: "SYST\r\n", reply: []byte("215 UNIX Type: L8\r\n")},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if got := string(run.received); got != "FEAT\r\nSYST\r\n" {
		t.Errorf("expected FEAT then SYST, got %q", got)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{
		"ftp_server": "vsFTPd",
		"features":   "EPRT, UTF8",
		"system":     "UNIX Type: L8",
	})
	if !bytes.HasPrefix(run.outcome.Banner, []byte("220 (vsFTPd 3.0.3)\r\n211-Features:")) {
		t.Errorf("expected every reply in the banner, got %q", run.outcome.Banner)
	}
}

// TestDriveSMTP tests the EHLO exchange.
func TestDriveSMTP(t *testing.T) {
	t.Parallel()

	run := runProbe(t, SMTP, model.ModeActive, testPolicy, 0, []serverStep{
		{reply: []byte("220 mail.example.com ESMTP Postfix (Ubuntu)\r\n")},
		{expect: "EHLO bannerscan.local\r\n", reply: []byte("250-mail.example.com\r\n250-PIPELINING\r\n250-STARTTLS\r\n250 8BITMIME\r\n")},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if got := string(run.received); got != "EHLO bannerscan.local\r\n" {
		t.Errorf("expected a single EHLO, got %q", got)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{
		"smtp_server": "Postfix",
		"starttls":    "true",
		"detected_os": "Ubuntu Linux",
	})
}

// TestDriveSSH tests identification exchange and KEXINIT parsing.
func TestDriveSSH(t *testing.T) {
	t.Parallel()

	kex := kexInitPacket(
		"curve25519-sha256", "ssh-ed25519", "aes128-ctr", "aes128-ctr",
		"hmac-sha2-256", "hmac-sha2-256", "none", "none", "", "",
	)
	run := runProbe(t, SSH, model.ModeActive, testPolicy, 0, []serverStep{
		{reply: append([]byte("SSH-2.0-OpenSSH_9.6\r\n"), kex...)},
		{expect: sshClientIdent},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if got := string(run.received); got != sshClientIdent {
		t.Errorf("expected our identification only, got %q", got)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{
		"ssh_software":   "OpenSSH_9.6",
		"kex_algorithms": "curve25519-sha256",
		"ciphers":        "aes128-ctr",
	})
}

// TestDriveSSHNotSSH tests that nothing is echoed to a non-SSH service.
func TestDriveSSHNotSSH(t *testing.T) {
	t.Parallel()

	run := runProbe(t, SSH, model.ModeActive, testPolicy, 0, []serverStep{
		{reply: []byte("220 ftp ready\r\n")},
	})

	if run.outcome.Kind != model.OutcomeProbeDegraded {
		t.Fatalf("expected probe_degraded, got %s", run.outcome.Kind)
	}
	if run.session.Writes() != 0 {
		t.Errorf("expected no writes, got %d", run.session.Writes())
	}
	if string(run.outcome.Banner) != "220 ftp ready\r\n" {
		t.Errorf("expected the raw bytes to be kept, got %q", run.outcome.Banner)
	}
}

// TestDriveMySQL tests that MySQL is read without writing.
func TestDriveMySQL(t *testing.T) {
	t.Parallel()

	run := runProbe(t, MySQL, model.ModeActive, testPolicy, 0, []serverStep{
		{reply: mysqlHandshakePacket("8.0.36")},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if run.session.Writes() != 0 {
		t.Errorf("expected no writes, got %d", run.session.Writes())
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"server_version": "8.0.36"})
}

// TestDriveMail tests the IMAP and POP3 capability requests.
func TestDriveMail(t *testing.T) {
	t.Parallel()

	t.Run("imap", func(t *testing.T) {
		t.Parallel()

		run := runProbe(t, IMAP, model.ModeActive, testPolicy, 0, []serverStep{
			{reply: []byte("* OK Dovecot ready.\r\n")},
			{expect: "a001 CAPABILITY\r\n", reply: []byte("* CAPABILITY IMAP4rev1 STARTTLS AUTH=PLAIN\r\na001 OK done\r\n")},
		})
		if run.outcome.Kind != model.OutcomeSuccess {
			t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
		}
		if got := string(run.received); got != "a001 CAPABILITY\r\n" {
			t.Errorf("expected a001 CAPABILITY, got %q", got)
		}
		checkMetadata(t, run.outcome.Metadata, map[string]string{"starttls": "true", "auth_mechanisms": "PLAIN"})
	})

	t.Run("pop3", func(t *testing.T) {
		t.Parallel()

		run := runProbe(t, POP3, model.ModeActive, testPolicy, 0, []serverStep{
			{reply: []byte("+OK Dovecot ready.\r\n")},
			{expect: "CAPA\r\n", reply: []byte("+OK\r\nTOP\r\nUIDL\r\nSTLS\r\nSASL PLAIN LOGIN\r\n.\r\n")},
		})
		if run.outcome.Kind != model.OutcomeSuccess {
			t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
		}
		if got := string(run.received); got != "CAPA\r\n" {
			t.Errorf("expected CAPA, got %q", got)
		}
		checkMetadata(t, run.outcome.Metadata, map[string]string{"stls": "true", "sasl": "PLAIN, LOGIN"})
	})
}

// TestDrivePostgreSQL tests the startup exchange.
func TestDrivePostgreSQL(t *testing.T) {
	t.Parallel()

	startup := postgresStartupPacket()
	sasl := postgresMessage('R', append([]byte{0, 0, 0, 10}, "SCRAM-SHA-256\x00\x00"...))
	run := runProbe(t, PostgreSQL, model.ModeActive, testPolicy, 0, []serverStep{
		{expectLen: len(startup), reply: sasl},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if !bytes.Equal(run.received, startup) {
		t.Errorf("expected the startup packet, got %q", run.received)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"auth_method": "sasl", "sasl_mechanisms": "SCRAM-SHA-256"})
}

// TestDriveMSSQL tests the PRELOGIN exchange.
func TestDriveMSSQL(t *testing.T) {
	t.Parallel()

	request := mssqlPreLoginPacket()
	run := runProbe(t, MSSQL, model.ModeActive, testPolicy, 0, []serverStep{
		{expectLen: len(request), reply: preLoginResponse([6]byte{16, 0, 0x10, 0x7a, 0, 0}, 0x00)},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if !bytes.Equal(run.received, request) {
		t.Errorf("expected the PRELOGIN packet, got %x", run.received)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"product": "SQL Server 2022", "encryption": "off"})
}

// TestDriveMSSQLTruncated tests that a short PRELOGIN response degrades.
func TestDriveMSSQLTruncated(t *testing.T) {
	t.Parallel()

	resp := preLoginResponse([6]byte{16, 0, 0, 0, 0, 0}, 0x00)
	policy := timeout.Policy{Connect: time.Second, Read: 200 * time.Millisecond, Overall: 3 * time.Second}
	run := runProbe(t, MSSQL, model.ModeActive, policy, 0, []serverStep{
		{expectLen: len(mssqlPreLoginPacket()), reply: resp[:12]},
	})

	if run.outcome.Kind != model.OutcomeProbeDegraded {
		t.Fatalf("expected probe_degraded, got %s", run.outcome.Kind)
	}
	if !bytes.Equal(run.outcome.Banner, resp[:12]) {
		t.Errorf("expected the partial response to be kept, got %x", run.outcome.Banner)
	}
}

// TestDriveMongoDB tests the isMaster exchange.
func TestDriveMongoDB(t *testing.T) {
	t.Parallel()

	query, err := mongoIsMasterQuery()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := mongoReply(t, bson.D{
		{Key: "ismaster", Value: true},
		{Key: "maxWireVersion", Value: int32(21)},
		{Key: "minWireVersion", Value: int32(0)},
		{Key: "ok", Value: 1.0},
	})
	run := runProbe(t, MongoDB, model.ModeActive, testPolicy, 0, []serverStep{
		{expectLen: len(query), reply: reply},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if !bytes.Equal(run.received, query) {
		t.Errorf("expected the isMaster query, got %x", run.received)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"ismaster": "true", "server_family": "7.0"})
}

// TestDriveRedis tests PING then INFO with both replies in the banner.
func TestDriveRedis(t *testing.T) {
	t.Parallel()

	info := "# Server\r\nredis_version:7.2.4\r\nredis_mode:standalone\r\n"
	bulk := "$" + strconv.Itoa(len(info)) + "\r\n" + info + "\r\n"
	run := runProbe(t, Redis, model.ModeActive, testPolicy, 0, []serverStep{
		{expect: "PING\r\n", reply: []byte("+PONG\r\n")},
		{expect: "INFO\r\n", reply: []byte(bulk)},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if got := string(run.received); got != "PING\r\nINFO\r\n" {
		t.Errorf("expected PING then INFO, got %q", got)
	}
	if got := string(run.outcome.Banner); got != "+PONG\r\n"+bulk {
		t.Errorf("expected both replies in the banner, got %q", got)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"ping": "PONG", "redis_version": "7.2.4"})
}

// TestDriveRedisMalformed tests that unparseable replies degrade without
// stopping the sequence.
func TestDriveRedisMalformed(t *testing.T) {
	t.Parallel()

	run := runProbe(t, Redis, model.ModeActive, testPolicy, 0, []serverStep{
		{expect: "PING\r\n", reply: []byte("hello\r\n")},
		{expect: "INFO\r\n", reply: []byte("world\r\n")},
	})

	if run.outcome.Kind != model.OutcomeProbeDegraded {
		t.Fatalf("expected probe_degraded, got %s", run.outcome.Kind)
	}
	if got := string(run.received); got != "PING\r\nINFO\r\n" {
		t.Errorf("expected PING then INFO, got %q", got)
	}
	if got := string(run.outcome.Banner); got != "hello\r\nworld\r\n" {
		t.Errorf("expected raw bytes in the banner, got %q", got)
	}
	if !strings.Contains(run.outcome.Note, "redis PING: malformed response") {
		t.Errorf("expected a PING parse note, got %q", run.outcome.Note)
	}
}

// TestDriveRedisNilInfo tests that a nil bulk reply to INFO degrades the
// outcome and keeps both replies.
func TestDriveRedisNilInfo(t *testing.T) {
	t.Parallel()

	run := runProbe(t, Redis, model.ModeActive, testPolicy, 0, []serverStep{
		{expect: "PING\r\n", reply: []byte("+PONG\r\n")},
		{expect: "INFO\r\n", reply: []byte("$-1\r\n")},
	})

	if run.outcome.Kind != model.OutcomeProbeDegraded {
		t.Fatalf("expected probe_degraded, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if got := string(run.outcome.Banner); got != "+PONG\r\n$-1\r\n" {
		t.Errorf("expected both replies in the banner, got %q", got)
	}
	if !strings.Contains(run.outcome.Note, "nil bulk reply") {
		t.Errorf("expected a nil bulk note, got %q", run.outcome.Note)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"ping": "PONG", "info": "nil"})
}

// TestGuardRecoversPanic tests that a panic during reply handling becomes a
// degrade note that keeps the captured bytes.
func TestGuardRecoversPanic(t *testing.T) {
	t.Parallel()

	s := newParseSession()
	s.capture = []byte("+PONG\r\n")
	guard(Redis, s, func() {
		panic("slice bounds out of range")
	})

	out := s.Outcome()
	if out.Kind != model.OutcomeProbeDegraded {
		t.Fatalf("expected probe_degraded, got %s", out.Kind)
	}
	if got := string(out.Banner); got != "+PONG\r\n" {
		t.Errorf("expected the captured bytes, got %q", got)
	}
	if !strings.Contains(out.Note, "reply handling failed") {
		t.Errorf("expected a reply handling note, got %q", out.Note)
	}
	if !s.halted {
		t.Error("expected the session to halt")
	}
}

// TestDriveMemcached tests the version and stats commands.
func TestDriveMemcached(t *testing.T) {
	t.Parallel()

	run := runProbe(t, Memcached, model.ModeActive, testPolicy, 0, []serverStep{
		{expect: "version\r\n", reply: []byte("VERSION 1.6.21\r\n")},
		{expect: "stats\r\n", reply: []byte("STAT pid 7\r\nSTAT uptime 10\r\nEND\r\n")},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if got := string(run.received); got != "version\r\nstats\r\n" {
		t.Errorf("expected version then stats, got %q", got)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"version": "1.6.21", "pid": "7"})
}

// TestDriveMQTT tests the CONNECT exchange.
func TestDriveMQTT(t *testing.T) {
	t.Parallel()

	run := runProbe(t, MQTT, model.ModeActive, testPolicy, 0, []serverStep{
		{expectLen: len(mqttConnectPacket), reply: []byte{0x20, 0x02, 0x00, 0x00}},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if !bytes.Equal(run.received, mqttConnectPacket) {
		t.Errorf("expected the CONNECT packet, got %x", run.received)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{"connack": "true", "return_code": "accepted"})
}

// TestDriveTelnet tests refusing options and reading the prompt.
func TestDriveTelnet(t *testing.T) {
	t.Parallel()

	refusals := string([]byte{telnetIAC, telnetWONT, 24, telnetIAC, telnetDONT, 1, '\r', '\n'})
	run := runProbe(t, Telnet, model.ModeActive, testPolicy, 0, []serverStep{
		{reply: []byte{telnetIAC, telnetDO, 24, telnetIAC, telnetWILL, 1}},
		{expect: refusals, reply: []byte("Ubuntu 22.04 LTS\r\nhost login: ")},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if got := string(run.received); got != refusals {
		t.Errorf("expected refusals and an empty line, got %q", got)
	}
	checkMetadata(t, run.outcome.Metadata, map[string]string{
		"options_do":   "terminal-type",
		"options_will": "echo",
		"prompt":       "host login:",
	})
}

// TestDriveSilentServer tests that no data within the read timeout is a
// probe timeout.
func TestDriveSilentServer(t *testing.T) {
	t.Parallel()

	policy := timeout.Policy{Connect: time.Second, Read: 100 * time.Millisecond, Overall: 3 * time.Second}
	run := runProbe(t, GenericRaw, model.ModePassive, policy, 0, nil)

	if run.outcome.Kind != model.OutcomeTimedOut {
		t.Fatalf("expected timed_out, got %s", run.outcome.Kind)
	}
	if run.outcome.Phase != model.PhaseProbe {
		t.Errorf("expected probe phase, got %s", run.outcome.Phase)
	}
}

// TestDriveOverallTimeout tests that the overall budget caps the probe even
// when the read timeout is longer.
func TestDriveOverallTimeout(t *testing.T) {
	t.Parallel()

	policy := timeout.Policy{Connect: 100 * time.Millisecond, Read: 2 * time.Second, Overall: 300 * time.Millisecond}
	run := runProbe(t, FTP, model.ModeActive, policy, 0, nil)

	if run.outcome.Kind != model.OutcomeTimedOut {
		t.Fatalf("expected timed_out, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if run.elapsed > time.Second {
		t.Errorf("expected the probe to stop near 300ms, took %v", run.elapsed)
	}
}

// TestDriveCaptureLimit tests that the banner is capped and flagged.
func TestDriveCaptureLimit(t *testing.T) {
	t.Parallel()

	run := runProbe(t, GenericRaw, model.ModePassive, testPolicy, 100, []serverStep{
		{reply: bytes.Repeat([]byte("A"), 10000)},
	})

	if run.outcome.Kind != model.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", run.outcome.Kind, run.outcome.Detail())
	}
	if len(run.outcome.Banner) != 100 {
		t.Errorf("expected 100 bytes, got %d", len(run.outcome.Banner))
	}
	if !run.outcome.Truncated {
		t.Error("expected the banner to be flagged as truncated")
	}
}

// TestDrivePeerClose tests that a peer closing before its banner degrades.
func TestDrivePeerClose(t *testing.T) {
	t.Parallel()

	run := runProbe(t, FTP, model.ModeActive, testPolicy, 0, []serverStep{
		{close: true},
	})

	if run.outcome.Kind != model.OutcomeProbeDegraded {
		t.Fatalf("expected probe_degraded, got %s", run.outcome.Kind)
	}
	if !strings.Contains(run.outcome.Note, "connection closed by peer") {
		t.Errorf("expected a close note, got %q", run.outcome.Note)
	}
	if run.session.Writes() != 0 {
		t.Errorf("expected no writes after the close, got %d", run.session.Writes())
	}
}
