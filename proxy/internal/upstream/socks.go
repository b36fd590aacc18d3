// Package upstream dials upstream proxies (HTTP, HTTPS, SOCKS4/4a/5/5h) on
// behalf of the Forward Handler and the SOCKS-chain tunnel, split across
// the socks4/socks4a/socks5/socks5h URL schemes.
package upstream

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// DialSOCKS opens a connection to host:port through a SOCKS upstream,
// choosing the handshake version from u.Scheme (socks4, socks4a, socks5,
// socks5h; bare "socks" is treated as socks5). User/password come from u, if
// present.
func DialSOCKS(ctx context.Context, u *url.URL, host string, port int) (net.Conn, error) {
	switch u.Scheme {
	case "socks4", "socks4a":
		userID := ""
		if u.User != nil {
			userID = u.User.Username()
		}
		return dialSOCKS4(ctx, u.Host, userID, host, port, u.Scheme == "socks4a")
	case "socks", "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			user := u.User.Username()
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: user, Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("create socks5 dialer: %w", err)
		}
		dest := net.JoinHostPort(host, fmt.Sprint(port))
		if cd, ok := dialer.(interface {
			DialContext(ctx context.Context, network, addr string) (net.Conn, error)
		}); ok {
			return cd.DialContext(ctx, "tcp", dest)
		}
		return dialer.Dial("tcp", dest)
	default:
		return nil, fmt.Errorf("unsupported socks scheme: %s", u.Scheme)
	}
}
