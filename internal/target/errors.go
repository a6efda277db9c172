package target

import "errors"

// Line parsing errors.
var (
	// ErrMissingPort is returned when a line has no ":port" suffix.
	ErrMissingPort = errors.New("missing port")

	// ErrInvalidPort is returned when the port is not a number in 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be 1-65535")

	// ErrInvalidHost is returned when the host part is neither an IP
	// literal, a CIDR prefix nor a plausible hostname.
	ErrInvalidHost = errors.New("invalid host")

	// ErrPrefixTooLarge is returned for CIDR prefixes covering more than
	// MaxPrefixAddresses addresses.
	ErrPrefixTooLarge = errors.New("prefix too large")
)
