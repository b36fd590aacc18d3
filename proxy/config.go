// Package proxy implements a programmable HTTP/HTTPS forwarding proxy with
// optional upstream proxy chaining (HTTP, HTTPS, or SOCKS4/4a/5/5h).
//
// # Overview
//
// A client speaks ordinary HTTP/1.1 to the Server; the Server authenticates
// the request, optionally delegates to a user-supplied decision hook
// (PrepareRequestFunc), and forwards the traffic to the origin server —
// either directly or through a named upstream proxy — while maintaining
// per-connection byte accounting and connection lifecycle events.
//
// # Architecture
//
// The request path is split into three stages:
//
//  1. Registry wraps the TCP listener, assigns connection IDs, and emits
//     ConnectionClosed once per accepted socket.
//  2. Dispatcher parses each request, authenticates it, calls the user
//     hook, and picks one of six handlers.
//  3. One of the handlers (Custom-Response, Forward, or one of the four
//     tunnel variants) does the actual I/O.
package proxy

import (
	"context"
	"net"
	"net/http"
)

// DNSLookupFunc resolves host to a set of addresses. A RequestResult's
// DNSLookup is copied into HandlerOptions, but no dial path calls it: every
// dial, direct or to an upstream proxy, resolves names with the default
// resolver.
type DNSLookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// IPFamily constrains which address family a direct dial to the target
// uses. Dials to an upstream proxy do not apply it.
type IPFamily int

const (
	// IPFamilyAny dials whatever the resolver returns first (default).
	IPFamilyAny IPFamily = 0
	// IPFamilyV4 restricts dialing to IPv4 addresses.
	IPFamilyV4 IPFamily = 4
	// IPFamilyV6 restricts dialing to IPv6 addresses.
	IPFamilyV6 IPFamily = 6
)

// CustomResponseFunc synthesizes a full HTTP response for the client in
// place of forwarding the request anywhere. It is only ever invoked for
// non-CONNECT requests.
type CustomResponseFunc func(req *http.Request) (*CustomResponse, error)

// CustomResponse is the result of a CustomResponseFunc.
type CustomResponse struct {
	StatusCode int         // default 200
	Headers    http.Header // optional
	Body       []byte      // optional
	Encoding   string      // default "utf-8"; recognized: "utf-8", "base64"
}

// PrepareRequestFunc is the user decision hook invoked once per request,
// after parsing and before dispatch. info describes the request being
// authenticated/routed; the returned RequestResult (or error) decides how
// it is handled.
type PrepareRequestFunc func(ctx context.Context, info *RequestInfo) (*RequestResult, error)

// RequestInfo is passed to PrepareRequestFunc.
type RequestInfo struct {
	ConnectionID uint64
	Request      *http.Request
	Username     string
	Password     string
	Hostname     string
	Port         int
	IsHTTP       bool
}

// Config configures a Server.
type Config struct {
	// Port is the TCP port to listen on. Defaults to 8000.
	Port int
	// Host is the bind address. Empty binds all interfaces.
	Host string
	// PrepareRequestFunc is the user hook; nil means "always allow, direct".
	PrepareRequestFunc PrepareRequestFunc
	// AuthRealm names the Proxy-Authenticate realm and the Server header.
	// Defaults to "ProxyChain".
	AuthRealm string
	// Verbose raises the logger to Debug and includes source locations.
	Verbose bool
}

const (
	defaultPort      = 8000
	defaultAuthRealm = "ProxyChain"
)

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.AuthRealm == "" {
		c.AuthRealm = defaultAuthRealm
	}
	return c
}
