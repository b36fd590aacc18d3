package proxy

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/go-proxychain/proxychain/proxy/internal/upstream"
)

// forward implements the non-CONNECT request path: dial the target (either
// directly, through an HTTP(S) upstream proxy, or through a SOCKS upstream
// proxy), replay the filtered request, and stream the response back.
// Returns true if the client connection can keep reading further pipelined
// requests.
func (s *Server) forward(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) bool {
	targetConn, useProxyForm, err := s.dialForForward(req, opts)
	if err != nil {
		s.emitFailedAndSend(c, req, opts, raw, NewUpstreamStatusError(ErrorCodeToStatusCode(err), err.Error()))
		return false
	}
	counted := c.target.Attach(targetConn)
	defer counted.EndUse()

	filtered := validHeadersOnly(req.Header)
	req.Header = http.Header{}
	applyHeaderPairs(req.Header, filtered)

	if useProxyForm && opts.UpstreamProxyURL.User != nil {
		auth, authErr := basicAuthHeader(opts.UpstreamProxyURL)
		if authErr != nil {
			counted.Close()
			s.emitFailedAndSend(c, req, opts, raw, NewUpstreamStatusError(StatusAuthFailed, authErr.Error()))
			return false
		}
		if auth != "" {
			req.Header.Set("Proxy-Authorization", auth)
		}
	}

	var writeErr error
	if useProxyForm {
		writeErr = req.WriteProxy(counted)
	} else {
		writeErr = req.Write(counted)
	}
	if writeErr != nil {
		s.emitFailedAndSend(c, req, opts, raw, NewTransportError(writeErr))
		return false
	}

	resp, err := http.ReadResponse(bufio.NewReader(counted), req)
	if err != nil {
		s.emitFailedAndSend(c, req, opts, raw, NewUpstreamStatusError(ErrorCodeToStatusCode(err), err.Error()))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 100 || resp.StatusCode > 999 {
		s.emitFailedAndSend(c, req, opts, raw, NewUpstreamStatusError(StatusOutOfRange, "upstream status code out of range"))
		return false
	}
	if resp.StatusCode == http.StatusProxyAuthRequired {
		s.emitFailedAndSend(c, req, opts, raw, NewUpstreamStatusError(StatusAuthFailed, "upstream demanded proxy authentication"))
		return false
	}

	respFiltered := validHeadersOnly(resp.Header)
	resp.Header = http.Header{}
	applyHeaderPairs(resp.Header, respFiltered)
	resp.Close = false

	if err := resp.Write(raw); err != nil {
		s.logger.Debug("failed writing response to client", "error", err)
		return false
	}

	s.events.emitRequestFinished(RequestFinishedEvent{
		ID:           opts.RequestID,
		Request:      req,
		ConnectionID: c.ID,
		CustomTag:    opts.CustomTag,
		Stats:        c.stats(),
		StatusCode:   resp.StatusCode,
	})

	return resp.Header.Get("Connection") != "close" && req.Header.Get("Connection") != "close"
}

// dialForForward picks the dial strategy for a forwarded (non-CONNECT)
// request and returns the connected socket plus whether the request must be
// written in absolute-form (true when an HTTP(S) upstream proxy is in the
// path).
func (s *Server) dialForForward(req *http.Request, opts *HandlerOptions) (net.Conn, bool, error) {
	ctx := req.Context()
	targetAddr := net.JoinHostPort(opts.TargetHost, strconv.Itoa(opts.TargetPort))

	if opts.UpstreamProxyURL == nil {
		conn, err := dialDirect(ctx, targetAddr, opts)
		return conn, false, err
	}

	u := opts.UpstreamProxyURL
	if isHTTPScheme(u.Scheme) {
		conn, err := upstream.DialUpstreamProxyConn(ctx, u, opts.IgnoreUpstreamProxyCertificate)
		return conn, true, err
	}

	conn, err := upstream.DialSOCKS(ctx, u, opts.TargetHost, opts.TargetPort)
	return conn, false, err
}

func dialDirect(ctx context.Context, targetAddr string, opts *HandlerOptions) (net.Conn, error) {
	d := &net.Dialer{}
	if opts.LocalAddress != "" {
		if a, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(opts.LocalAddress, "0")); err == nil {
			d.LocalAddr = a
		}
	}
	network := "tcp"
	switch opts.IPFamily {
	case IPFamilyV4:
		network = "tcp4"
	case IPFamilyV6:
		network = "tcp6"
	}
	return d.DialContext(ctx, network, targetAddr)
}
