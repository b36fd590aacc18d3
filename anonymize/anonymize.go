// Package anonymize runs a local proxy that forwards every request through
// a single credentialed upstream proxy, so that downstream clients can
// reach the upstream without ever holding its credentials themselves.
package anonymize

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-proxychain/proxychain/proxy"
)

// New builds a Server that listens on host:port and forwards every request
// it accepts through upstreamURL (which may carry its own user:pass).
// upstreamURL must be a valid http, https, socks4, socks4a, socks5, or
// socks5h URL.
func New(host string, port int, upstreamURL string) (*proxy.Server, error) {
	if _, err := url.Parse(upstreamURL); err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	cfg := proxy.Config{
		Host: host,
		Port: port,
		PrepareRequestFunc: func(_ context.Context, _ *proxy.RequestInfo) (*proxy.RequestResult, error) {
			u := upstreamURL
			return &proxy.RequestResult{UpstreamProxyURL: &u}, nil
		},
	}

	return proxy.New(cfg), nil
}
