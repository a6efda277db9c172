package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout is the timeout for checking if the proxy is available.
// We use a short timeout here because this is just a connectivity check.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 protocol constants (RFC 1928, RFC 1929).
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
	socks5AuthVersion  = 0x01
	socks5AuthSuccess  = 0x00
)

// CheckProxy verifies that the proxy at proxyAddress speaks SOCKS5 and
// accepts our authentication. auth may be nil.
//
// The check performs the method negotiation and, when credentials are
// given, the username/password subnegotiation. It never sends a CONNECT,
// so the proxy is not asked to reach anything.
func CheckProxy(ctx context.Context, proxyAddress string, auth *proxy.Auth) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	// Step 1: method negotiation.
	// Client sends: version + number of methods + methods.
	greeting := []byte{socks5Version, 0x01, socks5AuthNone}
	if auth != nil {
		greeting = []byte{socks5Version, 0x02, socks5AuthNone, socks5AuthPassword}
	}
	if _, err := conn.Write(greeting); err != nil {
		return ProxyStatusCannotConnect
	}

	// Server responds: version + selected method.
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return readStatus(err)
	}
	if resp[0] != socks5Version {
		return ProxyStatusWrongType
	}

	switch resp[1] {
	case socks5AuthNone:
		return ProxyStatusOK
	case socks5AuthPassword:
		if auth == nil {
			return ProxyStatusAuthRejected
		}
		return checkPassword(conn, auth)
	case socks5AuthNoAccept:
		return ProxyStatusAuthRejected
	default:
		return ProxyStatusWrongType
	}
}

// checkPassword runs the RFC 1929 subnegotiation.
func checkPassword(conn net.Conn, auth *proxy.Auth) ProxyStatus {
	if len(auth.User) > 255 || len(auth.Password) > 255 {
		return ProxyStatusAuthRejected
	}

	req := make([]byte, 0, 3+len(auth.User)+len(auth.Password))
	req = append(req, socks5AuthVersion, byte(len(auth.User)))
	req = append(req, auth.User...)
	req = append(req, byte(len(auth.Password)))
	req = append(req, auth.Password...)
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return readStatus(err)
	}
	if resp[0] != socks5AuthVersion {
		return ProxyStatusWrongType
	}
	if resp[1] != socks5AuthSuccess {
		return ProxyStatusAuthRejected
	}
	return ProxyStatusOK
}

// readStatus maps a handshake read error onto a status.
func readStatus(err error) ProxyStatus {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ProxyStatusTimeout
	}
	// Anything else means it didn't speak SOCKS5 properly
	return ProxyStatusWrongType
}
