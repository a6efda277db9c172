package config

import (
	"errors"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/adrg/xdg"
	"github.com/nao1215/bannerscan/internal/gate"
	"github.com/nao1215/bannerscan/internal/model"
	"github.com/nao1215/bannerscan/internal/protocol"
	"github.com/nao1215/bannerscan/internal/timeout"
)

// Default configuration values.
// The engine defaults live next to the components that use them; the
// constants here re-export them so the CLI and config file share one source.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "bannerscan"

	// DefaultConcurrency bounds the number of in-flight connections.
	DefaultConcurrency = gate.DefaultConcurrency

	// DefaultRate is the number of new connection attempts per second.
	DefaultRate = gate.DefaultRate

	// DefaultBurst of 0 derives the burst from the rate: a tenth of it,
	// at least one. At the default rate this is 6.
	DefaultBurst = 0

	// DefaultConnectTimeout bounds the TCP connect alone.
	DefaultConnectTimeout = timeout.DefaultConnect

	// DefaultReadTimeout bounds each read within a probe.
	DefaultReadTimeout = timeout.DefaultRead

	// DefaultOverallTimeout bounds connect and probe together.
	DefaultOverallTimeout = timeout.DefaultOverall

	// DefaultMaxBytes caps the captured banner per connection.
	DefaultMaxBytes = protocol.DefaultMaxBytes

	// DefaultMode never writes to the target.
	DefaultMode = "passive"

	// DefaultEHLOName is the client name sent with SMTP EHLO in active mode.
	DefaultEHLOName = protocol.DefaultEHLOName

	// DefaultFormat is used when stdout is not a terminal.
	DefaultFormat = FormatJSONL

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap. 3 minutes is typically sufficient for most
	// network conditions, but may need to be increased for slow connections.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Output formats.
const (
	FormatJSONL    = "jsonl"
	FormatLog      = "log"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Formats lists every supported output format.
func Formats() []string {
	return []string{FormatJSONL, FormatLog, FormatCSV, FormatMarkdown}
}

// Config holds all configuration options for a scan.
// It is populated from built-in defaults, then the .bannerscan file, then
// CLI flags, and is validated once before the scan starts.
type Config struct {
	// Concurrency is the maximum number of connections in flight at once.
	Concurrency int

	// Rate is the maximum number of new connection attempts per second.
	Rate int

	// Burst is the token bucket capacity. Zero derives it from Rate.
	Burst int

	// ConnectTimeout bounds the connect attempt (including a proxy CONNECT).
	ConnectTimeout time.Duration

	// ReadTimeout bounds each individual read after the connection is up.
	ReadTimeout time.Duration

	// OverallTimeout bounds connect and probe combined. It must be at
	// least ConnectTimeout.
	OverallTimeout time.Duration

	// MaxBytes caps the banner bytes captured per connection.
	MaxBytes int

	// Mode is "passive" (never write) or "active" (protocol handshake).
	Mode string

	// Protocol forces one probe variant for every target.
	// Empty or "auto" selects by port.
	Protocol string

	// Ports maps extra ports to protocol names, e.g. 2222: ssh.
	// Entries take precedence over the built-in well-known ports.
	Ports map[uint16]string

	// EHLOName is the client name announced in SMTP EHLO.
	EHLOName string

	// Format selects the result writer: jsonl, log, csv or markdown.
	// Empty means "pick by terminal": log on a TTY, jsonl otherwise.
	Format string

	// OutputFile is where results are written. Empty means stdout.
	OutputFile string

	// DBPath is an optional SQLite file that receives a copy of every result.
	DBPath string

	// Proxy is a SOCKS5 proxy, either "host:port" or
	// "socks5://[user:password@]host:port".
	Proxy string

	// Tor starts an embedded Tor daemon and scans through it.
	// Mutually exclusive with Proxy.
	Tor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when Tor is true.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// Input is a file of targets, one "host:port" per line. "-" reads stdin.
	Input string

	// Host and Port describe a single target. Mutually exclusive with Input.
	Host string
	Port int

	// PortFilter keeps only file entries on this port. Zero keeps all.
	PortFilter int

	// ConfigFilePath is the path of the .bannerscan file that was loaded,
	// if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Concurrency:       DefaultConcurrency,
		Rate:              DefaultRate,
		Burst:             DefaultBurst,
		ConnectTimeout:    DefaultConnectTimeout,
		ReadTimeout:       DefaultReadTimeout,
		OverallTimeout:    DefaultOverallTimeout,
		MaxBytes:          DefaultMaxBytes,
		Mode:              DefaultMode,
		EHLOName:          DefaultEHLOName,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Ports:             make(map[uint16]string),
	}
}

// XDGConfigDir returns the XDG config directory for bannerscan.
// On Linux: ~/.config/bannerscan
// On macOS: ~/Library/Application Support/bannerscan
// On Windows: %APPDATA%\bannerscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir returns the XDG data directory for bannerscan, used as the
// default location hint for result databases.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid.
// Rules are checked in a fixed order and the first failure is returned as
// one of the sentinel errors in errors.go, so errors.Is works on the result.
func (c *Config) Validate() error {
	if err := c.validateTargets(); err != nil {
		return err
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Rate <= 0 {
		return ErrInvalidRate
	}
	if c.Burst < 0 {
		return ErrInvalidBurst
	}

	if err := c.Policy().Validate(); err != nil {
		if errors.Is(err, timeout.ErrOverallTooShort) {
			return ErrOverallTooShort
		}
		return ErrInvalidTimeout
	}

	if c.MaxBytes <= 0 {
		return ErrInvalidMaxBytes
	}

	if _, err := model.ParseMode(c.Mode); err != nil {
		return ErrInvalidMode
	}

	for port := range c.Ports {
		if port == 0 {
			return ErrInvalidPortMapping
		}
	}
	if _, err := c.Selector(); err != nil {
		return ErrInvalidProtocol
	}

	if c.EHLOName == "" || strings.ContainsFunc(c.EHLOName, invalidEHLORune) {
		return ErrInvalidEHLOName
	}

	if c.Format != "" && !isFormat(c.Format) {
		return ErrInvalidFormat
	}

	if c.Proxy != "" && c.Tor {
		return ErrConflictingTransports
	}
	if c.Proxy != "" {
		if _, err := c.ProxyEndpoint(); err != nil {
			return err
		}
	}
	if c.Tor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTorTimeout
	}

	return nil
}

// validateTargets checks the target source flags.
func (c *Config) validateTargets() error {
	if c.Input == "" && c.Host == "" {
		return ErrNoTarget
	}
	if c.Input != "" && c.Host != "" {
		return ErrConflictingTargets
	}
	if c.Host != "" && c.Port == 0 {
		return ErrMissingPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.PortFilter < 0 || c.PortFilter > 65535 {
		return ErrInvalidPortFilter
	}
	return nil
}

// Policy returns the timeout policy built from the three timeouts.
func (c *Config) Policy() timeout.Policy {
	return timeout.Policy{
		Connect: c.ConnectTimeout,
		Read:    c.ReadTimeout,
		Overall: c.OverallTimeout,
	}
}

// EffectiveBurst returns Burst, or the burst derived from Rate when unset.
func (c *Config) EffectiveBurst() int {
	if c.Burst > 0 {
		return c.Burst
	}
	return gate.DefaultBurst(c.Rate)
}

// ScanMode returns the parsed mode. Call Validate first.
func (c *Config) ScanMode() model.Mode {
	m, _ := model.ParseMode(c.Mode)
	return m
}

// Selector builds the protocol selector from Protocol and Ports.
func (c *Config) Selector() (*protocol.Selector, error) {
	return protocol.NewSelector(c.Protocol, c.Ports)
}

// ProbeOptions returns the probe knobs carried by the config.
func (c *Config) ProbeOptions() protocol.Options {
	return protocol.Options{EHLOName: c.EHLOName}
}

// ProxyEndpoint is a parsed SOCKS5 proxy setting.
type ProxyEndpoint struct {
	// Address is the proxy "host:port".
	Address string

	// Username and Password are the optional RFC 1929 credentials.
	Username string
	Password string
}

// ProxyEndpoint parses Proxy. It accepts a bare "host:port" or a socks5
// URL with optional credentials.
func (c *Config) ProxyEndpoint() (ProxyEndpoint, error) {
	raw := strings.TrimSpace(c.Proxy)
	if raw == "" {
		return ProxyEndpoint{}, ErrInvalidProxy
	}

	if !strings.Contains(raw, "://") {
		if err := checkHostPort(raw); err != nil {
			return ProxyEndpoint{}, err
		}
		return ProxyEndpoint{Address: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ProxyEndpoint{}, ErrInvalidProxy
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return ProxyEndpoint{}, ErrUnsupportedProxyScheme
	}
	if err := checkHostPort(u.Host); err != nil {
		return ProxyEndpoint{}, err
	}

	ep := ProxyEndpoint{Address: u.Host}
	if u.User != nil {
		ep.Username = u.User.Username()
		ep.Password, _ = u.User.Password()
	}
	return ep, nil
}

// checkHostPort validates a proxy "host:port".
func checkHostPort(hostport string) error {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil || host == "" {
		return ErrInvalidProxy
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return ErrInvalidProxy
	}
	return nil
}

// isFormat reports whether name is a supported output format.
func isFormat(name string) bool {
	for _, f := range Formats() {
		if f == name {
			return true
		}
	}
	return false
}

// invalidEHLORune reports whether r cannot appear in the single-line EHLO
// argument.
func invalidEHLORune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
