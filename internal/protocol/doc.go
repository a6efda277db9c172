// Package protocol implements the probe framework: the closed set of
// protocol handshakes that run over an established connection.
//
// # Architecture
//
// Protocol is a closed enumeration with one value per supported protocol
// plus GenericRaw. Drive is the single dispatch point; it runs the variant's
// steps over a Session, which owns the connection for the duration of the
// probe, enforces the per-read timeout composition and caps captured bytes.
//
// # Modes
//
// Passive mode never writes: it reads the initial banner and returns it.
// Active mode runs the variant's documented write/read sequence:
//
//	FTP         banner, FEAT, SYST
//	SMTP        banner, EHLO
//	SSH         identification, client identification, KEXINIT
//	MySQL       initial handshake packet (no write)
//	IMAP        greeting, a001 CAPABILITY
//	POP3        greeting, CAPA
//	PostgreSQL  startup packet, authentication or error response
//	MSSQL       PRELOGIN
//	MongoDB     isMaster on admin.$cmd
//	Redis       PING, INFO
//	Memcached   version, stats
//	MQTT        CONNECT, CONNACK
//	Telnet      banner, option refusals and an empty line, prompt
//
// # Degrade, never fail
//
// Malformed, partial or short responses never abort a probe. Parse failures
// become *ParseError notes and the outcome degrades to ProbeDegraded with the
// raw bytes; I/O failures stop the sequence but keep what was captured.
package protocol
