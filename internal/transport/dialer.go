package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"golang.org/x/net/proxy"

	"github.com/nao1215/bannerscan/internal/engine"
)

// NewDirectDialer returns the dialer used when no proxy is configured.
// TCP keep-alives are disabled: every connection lives for one probe.
func NewDirectDialer() proxy.ContextDialer {
	return &net.Dialer{KeepAlive: -1}
}

// SOCKS5Dialer connects to targets through a SOCKS5 proxy.
// It implements proxy.ContextDialer, so the scheduler can use it in place
// of a direct dialer.
//
// Errors are rewritten so the scheduler can tell the two failure sides
// apart: a CONNECT reply about the target ("connection refused", "host
// unreachable") becomes the matching errno, while anything about the
// proxy itself wraps engine.ErrProxy.
type SOCKS5Dialer struct {
	// proxyAddress is the SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// dialer is the underlying x/net SOCKS5 dialer.
	dialer proxy.ContextDialer
}

// NewSOCKS5Dialer creates a dialer for the proxy at proxyAddress.
// auth may be nil when the proxy needs no credentials.
//
// This function does not contact the proxy. Call CheckProxy to verify it.
func NewSOCKS5Dialer(proxyAddress string, auth *proxy.Auth) (*SOCKS5Dialer, error) {
	d, err := proxy.SOCKS5("tcp", proxyAddress, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("SOCKS5 dialer does not support contexts")
	}

	return &SOCKS5Dialer{
		proxyAddress: proxyAddress,
		dialer:       cd,
	}, nil
}

// DialContext connects to address through the proxy.
// The context deadline covers both the proxy handshake and the CONNECT.
func (d *SOCKS5Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, d.classify(ctx, err)
	}
	return conn, nil
}

// ProxyAddress returns the configured proxy address.
func (d *SOCKS5Dialer) ProxyAddress() string {
	return d.proxyAddress
}

// replyErrnos maps SOCKS5 CONNECT reply texts about the target onto errnos.
var replyErrnos = []struct {
	phrase string
	errno  syscall.Errno
}{
	{"connection refused", syscall.ECONNREFUSED},
	{"host unreachable", syscall.EHOSTUNREACH},
	{"network unreachable", syscall.ENETUNREACH},
}

// classify rewrites a dial error for the scheduler.
func (d *SOCKS5Dialer) classify(ctx context.Context, err error) error {
	// deadlines keep their identity so they surface as timeouts
	if ctx.Err() != nil {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return err
	}

	// A syscall error means the proxy itself was unreachable. Reply
	// failures from the proxy are plain errors carrying the reply text.
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		msg := err.Error()
		for _, r := range replyErrnos {
			if strings.Contains(msg, r.phrase) {
				return fmt.Errorf("%w (via proxy %s): %v", r.errno, d.proxyAddress, err)
			}
		}
	}

	return fmt.Errorf("%w: %s: %v", engine.ErrProxy, d.proxyAddress, err)
}
