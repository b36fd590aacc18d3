// Package helper holds small URL utilities that don't belong to any one
// package of the module. The proxy and upstream dialing packages do not
// import it; they dial u.Host as given.
package helper

import (
	"net"
	"net/url"
)

var defaultPortByScheme = map[string]string{
	"http":    "80",
	"https":   "443",
	"socks":   "1080",
	"socks4":  "1080",
	"socks4a": "1080",
	"socks5":  "1080",
	"socks5h": "1080",
}

// CanonicalAddr returns u.Host but always with a ":port" suffix, filling in
// the scheme's conventional default port when the URL omits one.
func CanonicalAddr(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = defaultPortByScheme[u.Scheme]
	}
	return net.JoinHostPort(u.Hostname(), port)
}
