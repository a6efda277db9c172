// Package transport provides the dialers the scheduler connects through.
//
// Three transports are available:
//   - direct: a plain net.Dialer (the default)
//   - SOCKS5: --proxy, via golang.org/x/net/proxy, optionally with
//     username/password authentication
//   - embedded Tor: --tor, a tornago-managed Tor daemon whose SOCKS port is
//     then used like any other SOCKS5 proxy
//
// Every dialer implements proxy.ContextDialer so the scheduler does not
// care which one it holds. CheckProxy performs a SOCKS5 handshake against
// the proxy before the scan starts, so a wrong --proxy fails fast instead
// of turning every target into a proxy failure.
package transport
