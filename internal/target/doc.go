// Package target turns user input into the stream of targets the scheduler
// consumes.
//
// Input is either a single host and port or a file with one entry per line.
// Each line is "host:port", "[ipv6]:port" or "prefix/bits:port"; the port is
// whatever follows the last colon. Blank lines and lines starting with "#"
// are ignored. Hostnames expand to one target per resolved address, CIDR
// prefixes to one target per address in the prefix.
//
// Bad lines and failed lookups never stop the stream: they are logged at
// warn level and skipped.
package target
