package protocol

import (
	"github.com/nao1215/bannerscan/internal/model"
)

// DefaultEHLOName is the name announced in the SMTP EHLO command.
const DefaultEHLOName = "bannerscan.local"

// Options carries the per-scan knobs that probe variants read.
type Options struct {
	// EHLOName is the client name sent with SMTP EHLO.
	EHLOName string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{EHLOName: DefaultEHLOName}
}

// Drive runs the probe variant p over the session and returns the outcome.
//
// In passive mode, and always for GenericRaw, the probe only reads the
// initial banner and never writes. In active mode the variant's documented
// write/read sequence runs. Captured bytes are never discarded: a failed or
// unparseable step degrades the outcome instead of failing it.
func Drive(p Protocol, s *Session, mode model.Mode, opts Options) model.Outcome {
	if mode == model.ModePassive || p == GenericRaw {
		guard(p, s, func() { drivePassive(p, s) })
		return s.Outcome()
	}

	if opts.EHLOName == "" {
		opts.EHLOName = DefaultEHLOName
	}
	guard(p, s, func() { driveActive(p, s, opts) })
	return s.Outcome()
}

// guard runs fn and turns a panic in reply handling into a degrade note, so
// the bytes captured so far still reach the result.
func guard(p Protocol, s *Session, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.halt("%s: reply handling failed: %v", p, r)
		}
	}()
	fn()
}

// driveActive runs the write/read sequence of p.
func driveActive(p Protocol, s *Session, opts Options) {
	switch p {
	case FTP:
		driveFTP(s)
	case SMTP:
		driveSMTP(s, opts.EHLOName)
	case SSH:
		driveSSH(s)
	case MySQL:
		driveMySQL(s)
	case IMAP:
		driveIMAP(s)
	case POP3:
		drivePOP3(s)
	case PostgreSQL:
		drivePostgreSQL(s)
	case MSSQL:
		driveMSSQL(s)
	case MongoDB:
		driveMongoDB(s)
	case Redis:
		driveRedis(s)
	case Memcached:
		driveMemcached(s)
	case MQTT:
		driveMQTT(s)
	case Telnet:
		driveTelnet(s)
	default:
		drivePassive(GenericRaw, s)
	}
}

// drivePassive captures the unsolicited banner. Server-first protocols use
// their own banner framing and parser; everything else gets line framing and
// the generic fingerprint.
func drivePassive(p Protocol, s *Session) {
	switch p {
	case FTP:
		if banner := s.grab(replyComplete); len(banner) > 0 {
			s.parseFailed(parseFTPBanner(s, banner))
		}
	case SMTP:
		if banner := s.grab(replyComplete); len(banner) > 0 {
			s.parseFailed(parseSMTPBanner(s, banner))
		}
	case SSH:
		if banner := s.grab(sshIdentComplete); len(banner) > 0 {
			_, err := parseSSHIdent(s, banner)
			s.parseFailed(err)
		}
	case MySQL:
		if banner := s.grab(mysqlPacketFramed); len(banner) > 0 {
			s.parseFailed(parseMySQLHandshake(s, banner))
		}
	case IMAP:
		if banner := s.grab(lineComplete); len(banner) > 0 {
			s.parseFailed(parseIMAPGreeting(s, banner))
		}
	case POP3:
		if banner := s.grab(lineComplete); len(banner) > 0 {
			s.parseFailed(parsePOP3Greeting(s, banner))
		}
	case Telnet:
		if banner := s.grab(telnetBannerComplete); len(banner) > 0 {
			parseTelnet(s, banner)
		}
	default:
		if banner := s.grab(lineComplete); len(banner) > 0 {
			fingerprint(s, banner)
		}
	}
}
