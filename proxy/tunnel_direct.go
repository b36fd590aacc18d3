package proxy

import (
	"net"
	"net/http"
	"strconv"
)

// tunnelDirect handles a CONNECT with no upstream proxy configured: dial the
// target directly, respond 200 Connection Established, then pipe bytes in
// both directions until either side closes.
func (s *Server) tunnelDirect(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) {
	targetAddr := net.JoinHostPort(opts.TargetHost, strconv.Itoa(opts.TargetPort))

	target, err := dialDirect(req.Context(), targetAddr, opts)
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

var connectEstablishedResponse = []byte("HTTP/1.1 200 Connection Established\r\n\r\n")
