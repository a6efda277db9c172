package protocol

import (
	"errors"
	"slices"
	"strings"
)

// ErrUnknownProtocol is returned by ParseProtocol for unrecognized names.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Protocol identifies one probe variant. The set is closed: every value is
// handled by the single Drive dispatch.
type Protocol int

const (
	// GenericRaw captures whatever the service sends and never writes.
	// It is the fallback when no hint matches.
	GenericRaw Protocol = iota
	FTP
	SMTP
	SSH
	MySQL
	IMAP
	POP3
	PostgreSQL
	MSSQL
	MongoDB
	Redis
	Memcached
	MQTT
	Telnet
)

// descriptor holds the static facts about a variant.
type descriptor struct {
	name    string
	aliases []string
	ports   []uint16
	// serverFirst is true when the service sends a banner before the
	// client says anything.
	serverFirst bool
}

var descriptors = map[Protocol]descriptor{
	GenericRaw: {name: "generic", aliases: []string{"raw"}},
	FTP:        {name: "ftp", ports: []uint16{21}, serverFirst: true},
	SMTP:       {name: "smtp", ports: []uint16{25, 587}, serverFirst: true},
	SSH:        {name: "ssh", ports: []uint16{22}, serverFirst: true},
	MySQL:      {name: "mysql", aliases: []string{"mariadb"}, ports: []uint16{3306}, serverFirst: true},
	IMAP:       {name: "imap", ports: []uint16{143}, serverFirst: true},
	POP3:       {name: "pop3", ports: []uint16{110}, serverFirst: true},
	PostgreSQL: {name: "postgresql", aliases: []string{"postgres", "pgsql"}, ports: []uint16{5432}},
	MSSQL:      {name: "mssql", aliases: []string{"tds", "sqlserver"}, ports: []uint16{1433}},
	MongoDB:    {name: "mongodb", aliases: []string{"mongo"}, ports: []uint16{27017}},
	Redis:      {name: "redis", ports: []uint16{6379}},
	Memcached:  {name: "memcached", ports: []uint16{11211}},
	MQTT:       {name: "mqtt", ports: []uint16{1883}},
	Telnet:     {name: "telnet", ports: []uint16{23, 2323}, serverFirst: true},
}

// All returns every protocol in declaration order, GenericRaw last.
func All() []Protocol {
	return []Protocol{
		FTP, SMTP, SSH, MySQL, IMAP, POP3, PostgreSQL,
		MSSQL, MongoDB, Redis, Memcached, MQTT, Telnet, GenericRaw,
	}
}

// String returns the canonical lowercase name.
func (p Protocol) String() string {
	if d, ok := descriptors[p]; ok {
		return d.name
	}
	return "unknown"
}

// DefaultPorts returns the well-known ports mapped to the protocol.
func (p Protocol) DefaultPorts() []uint16 {
	return slices.Clone(descriptors[p].ports)
}

// ServerFirst reports whether the service speaks before the client.
func (p Protocol) ServerFirst() bool {
	return descriptors[p].serverFirst
}

// ParseProtocol resolves a protocol name or alias, case-insensitively.
func ParseProtocol(name string) (Protocol, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, d := range descriptors {
		if d.name == name || slices.Contains(d.aliases, name) {
			return p, nil
		}
	}
	return GenericRaw, ErrUnknownProtocol
}
