package proxy

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-proxychain/proxychain/proxy/internal/upstream"
)

// tunnelHTTPChain handles a CONNECT routed through an HTTP or HTTPS upstream
// proxy: issue a CONNECT to the upstream for the real target, map its
// response to a synthetic status on failure (rather than relaying the
// upstream's own status line), and pipe bytes through the tunnel on
// success.
func (s *Server) tunnelHTTPChain(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) {
	u := opts.UpstreamProxyURL
	targetAddr := net.JoinHostPort(opts.TargetHost, strconv.Itoa(opts.TargetPort))

	var proxyAuth string
	if u.User != nil {
		auth, err := basicAuthHeader(u)
		if err != nil {
			re := NewUpstreamStatusError(StatusAuthFailed, err.Error())
			s.events.emitTunnelConnectFailed(TunnelConnectEvent{ConnectionID: c.ID, StatusCode: re.StatusCode, CustomTag: opts.CustomTag})
			s.sendError(raw, re)
			return
		}
		proxyAuth = auth
	}

	target, resp, err := upstream.DialHTTPConnect(req.Context(), u, targetAddr, proxyAuth, opts.IgnoreUpstreamProxyCertificate)
	if err != nil {
		re := NewUpstreamStatusError(ErrorCodeToStatusCode(err), err.Error())
		s.events.emitTunnelConnectFailed(TunnelConnectEvent{ConnectionID: c.ID, StatusCode: re.StatusCode, CustomTag: opts.CustomTag})
		s.sendError(raw, re)
		return
	}

	if resp.StatusCode != http.StatusOK {
		target.Close()
		statusCode := StatusUpstreamNonSuccessful
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusProxyAuthRequired {
			statusCode = StatusAuthFailed
		}
		re := NewUpstreamStatusError(statusCode, "upstream refused CONNECT with "+resp.Status)
		s.events.emitTunnelConnectFailed(TunnelConnectEvent{ConnectionID: c.ID, StatusCode: statusCode, CustomTag: opts.CustomTag})
		s.sendError(raw, re)
		return
	}

	counted := c.target.Attach(target)
	defer counted.Close()

	s.events.emitTunnelConnectResponded(TunnelConnectEvent{ConnectionID: c.ID, StatusCode: http.StatusOK, CustomTag: opts.CustomTag})

	if _, err := raw.Write(connectEstablishedResponse); err != nil {
		s.logger.Debug("failed writing CONNECT response", "error", err)
		return
	}

	pipe(raw, counted)

	s.events.emitRequestFinished(RequestFinishedEvent{
		ID:           opts.RequestID,
		Request:      req,
		ConnectionID: c.ID,
		CustomTag:    opts.CustomTag,
		Stats:        c.stats(),
		StatusCode:   http.StatusOK,
	})
}
