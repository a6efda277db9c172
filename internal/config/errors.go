package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration. Callers use
// errors.Is() for programmatic handling.
var (
	// ErrNoTarget is returned when neither --host nor --input is given.
	ErrNoTarget = errors.New("no target specified: use --host and --port, or --input")

	// ErrConflictingTargets is returned when both --host and --input are given.
	ErrConflictingTargets = errors.New("conflicting targets: --host and --input cannot be used together")

	// ErrMissingPort is returned when --host is given without --port.
	ErrMissingPort = errors.New("missing port: --host requires --port")

	// ErrInvalidPort is returned when --port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrInvalidPortFilter is returned when --port-filter is outside 0-65535.
	ErrInvalidPortFilter = errors.New("invalid port filter: must be between 1 and 65535")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRate is returned when the connection rate is not positive.
	ErrInvalidRate = errors.New("invalid rate: must be positive")

	// ErrInvalidBurst is returned when the burst is negative.
	// Zero derives the burst from the rate.
	ErrInvalidBurst = errors.New("invalid burst: must be non-negative")

	// ErrInvalidTimeout is returned when any of the three timeouts is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrOverallTooShort is returned when the overall timeout is shorter
	// than the connect timeout.
	ErrOverallTooShort = errors.New("invalid timeout: overall timeout must be at least the connect timeout")

	// ErrInvalidMaxBytes is returned when the banner cap is not positive.
	ErrInvalidMaxBytes = errors.New("invalid max bytes: must be positive")

	// ErrInvalidMode is returned for a mode other than passive or active.
	ErrInvalidMode = errors.New("invalid mode: expected passive or active")

	// ErrInvalidProtocol is returned when the protocol hint or a port
	// mapping names an unknown protocol.
	ErrInvalidProtocol = errors.New("invalid protocol: run 'bannerscan protocols' for the list")

	// ErrInvalidPortMapping is returned when a port mapping uses port 0.
	ErrInvalidPortMapping = errors.New("invalid port mapping: ports must be between 1 and 65535")

	// ErrInvalidEHLOName is returned when the EHLO name is empty.
	ErrInvalidEHLOName = errors.New("invalid EHLO name: must be non-empty without whitespace or control characters")

	// ErrInvalidFormat is returned for an unknown output format.
	ErrInvalidFormat = errors.New("invalid format: expected jsonl, log, csv or markdown")

	// ErrConflictingTransports is returned when both --proxy and --tor are given.
	ErrConflictingTransports = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrInvalidProxy is returned when --proxy is not host:port or a socks5 URL.
	ErrInvalidProxy = errors.New("invalid proxy: expected host:port or socks5://[user:password@]host:port")

	// ErrUnsupportedProxyScheme is returned for proxy URLs other than socks5.
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme: only socks5 is supported")

	// ErrInvalidTorTimeout is returned when the Tor startup timeout is not positive.
	ErrInvalidTorTimeout = errors.New("invalid tor timeout: must be positive")
)
