package upstream

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// DialUpstreamProxyConn opens a connection to the upstream proxy described by
// u: plain TCP for an http:// proxy, or TCP plus a TLS handshake for an
// https:// one (optionally skipping certificate validation). Shared by the
// HTTP-chain CONNECT path and the Forward Handler's HTTP(S)-upstream path,
// so both speak TLS to an https:// upstream instead of silently forwarding
// plaintext to it.
func DialUpstreamProxyConn(ctx context.Context, u *url.URL, insecureSkipVerify bool) (net.Conn, error) {
	rawConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("dial upstream proxy %s: %w", u.Host, err)
	}

	if u.Scheme != "https" {
		return rawConn, nil
	}

	tlsConn := tls.Client(rawConn, &tls.Config{
		ServerName:         u.Hostname(),
		InsecureSkipVerify: insecureSkipVerify,
	})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("tls handshake with upstream proxy: %w", err)
	}
	return tlsConn, nil
}

// DialHTTPConnect opens a connection to the upstream proxy u and issues a
// CONNECT for targetAddr, returning the raw socket positioned right after the
// upstream's response line/headers (any bytes buffered beyond the response
// are replayed via a small wrapper). The caller inspects resp to decide
// success/failure; on non-200 the connection is left open so the caller can
// read a body if present, and is responsible for closing it.
func DialHTTPConnect(ctx context.Context, u *url.URL, targetAddr, proxyAuthHeader string, insecureSkipVerify bool) (net.Conn, *http.Response, error) {
	c, err := DialUpstreamProxyConn(ctx, u, insecureSkipVerify)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodConnect, "//"+targetAddr, nil)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("build CONNECT request: %w", err)
	}
	req.Host = targetAddr
	if proxyAuthHeader != "" {
		req.Header.Set("Proxy-Authorization", proxyAuthHeader)
	}

	if err := req.Write(c); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("write CONNECT: %w", err)
	}

	br := bufio.NewReader(c)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("read CONNECT response: %w", err)
	}

	if br.Buffered() > 0 {
		c = &bufferedConn{Conn: c, r: br}
	}
	return c, resp, nil
}

// bufferedConn replays bytes a bufio.Reader consumed beyond the CONNECT
// response before handing the raw connection back to the caller.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}
