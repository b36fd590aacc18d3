package proxy

import (
	"net"
	"net/http"

	"github.com/go-proxychain/proxychain/proxy/internal/upstream"
)

// tunnelSOCKSChain handles a CONNECT routed through a SOCKS4/4a/5/5h
// upstream proxy. SOCKS has no intermediate response to relay on failure:
// the dial itself either succeeds (target reachable through the upstream)
// or fails outright.
func (s *Server) tunnelSOCKSChain(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) {
	target, err := upstream.DialSOCKS(req.Context(), opts.UpstreamProxyURL, opts.TargetHost, opts.TargetPort)
	if err != nil {
		re := NewUpstreamStatusError(ErrorCodeToStatusCode(err), err.Error())
		s.events.emitTunnelConnectFailed(TunnelConnectEvent{ConnectionID: c.ID, StatusCode: re.StatusCode, CustomTag: opts.CustomTag})
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
