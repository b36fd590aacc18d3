package proxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	uuid "github.com/satori/go.uuid"
)

// handleConnection owns one accepted client socket end to end: it reads
// pipelined requests off it, authenticates and routes each one, and hands
// off to the matching handler. The socket is released back to the registry
// exactly once, however the loop ends.
func (s *Server) handleConnection(c *Connection, raw net.Conn) {
	defer s.reg.release(c)

	r := bufio.NewReader(raw)

	for {
		req, err := http.ReadRequest(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("read request failed", "connection", c.ID, "error", err)
			}
			return
		}

		if !s.handleRequest(c, raw, r, req) {
			return
		}
	}
}

// handleRequest processes a single request on an already-open client
// socket. It returns true if the caller should keep reading further
// pipelined requests from r, false if the socket has been handed off
// (CONNECT tunnel) or should be closed.
func (s *Server) handleRequest(c *Connection, raw net.Conn, r *bufio.Reader, req *http.Request) bool {
	isConnect := req.Method == http.MethodConnect

	if isConnect {
		s.stats.connectRequestCount.Inc()
	} else {
		s.stats.httpRequestCount.Inc()
		if !req.URL.IsAbs() || req.URL.Scheme != "http" {
			re := NewBadSyntaxError("absolute-form http request URI required: %s", req.RequestURI)
			s.sendError(raw, re)
			return false
		}
	}

	host, port, err := splitTarget(req, isConnect)
	if err != nil {
		s.sendError(raw, NewBadSyntaxError("%s", err.Error()))
		return false
	}

	parsedAuth, err := parseAuthorizationHeader(req.Header.Get("Proxy-Authorization"))
	if err != nil {
		s.sendError(raw, NewBadSyntaxError("%s", err.Error()))
		return false
	}

	opts := &HandlerOptions{
		ID:         c.ID,
		RequestID:  uuid.NewV4().String(),
		IsHTTP:     !isConnect,
		TargetHost: host,
		TargetPort: port,
	}
	req.Header.Set("Request-Id", opts.RequestID)

	info := &RequestInfo{
		ConnectionID: c.ID,
		Request:      req,
		Hostname:     host,
		Port:         port,
		IsHTTP:       !isConnect,
	}
	if parsedAuth != nil {
		info.Username = parsedAuth.Username
		info.Password = parsedAuth.Password
	}

	result, err := s.prepareRequest(req.Context(), info)
	if err != nil {
		re, ok := AsRequestError(err)
		if !ok {
			re = NewTransportError(err)
		}
		s.emitFailedAndSend(c, req, opts, raw, re)
		return false
	}

	if result.RequestAuthentication {
		headers := http.Header{}
		headers.Set("Proxy-Authenticate", `Basic realm="`+s.config.AuthRealm+`"`)
		re := NewAuthRequiredError(result.FailMsg)
		re.Headers = headers
		s.sendError(raw, re)
		return !isConnect
	}

	applyResultToOptions(opts, result)

	if isConnect {
		return s.dispatchTunnel(c, unshiftBuffered(raw, r), req, opts)
	}
	return s.dispatchForward(c, raw, req, opts)
}

func (s *Server) prepareRequest(ctx context.Context, info *RequestInfo) (*RequestResult, error) {
	if s.config.PrepareRequestFunc == nil {
		return &RequestResult{}, nil
	}
	result, err := s.config.PrepareRequestFunc(ctx, info)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &RequestResult{}
	}
	return result, nil
}

func applyResultToOptions(opts *HandlerOptions, result *RequestResult) {
	if result.UpstreamProxyURL != nil {
		if u, err := parseUpstreamURL(*result.UpstreamProxyURL); err == nil {
			opts.UpstreamProxyURL = u
		}
	}
	opts.IgnoreUpstreamProxyCertificate = result.IgnoreUpstreamProxyCertificate
	opts.CustomResponseFunc = result.CustomResponseFunc
	opts.CustomConnectServer = result.CustomConnectServer
	opts.LocalAddress = result.LocalAddress
	opts.IPFamily = result.IPFamily
	opts.DNSLookup = result.DNSLookup
	opts.CustomTag = result.CustomTag
}

func (s *Server) dispatchTunnel(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) bool {
	switch {
	case opts.CustomConnectServer != nil:
		s.tunnelCustom(c, raw, req, opts)
	case opts.UpstreamProxyURL == nil:
		s.tunnelDirect(c, raw, req, opts)
	case isHTTPScheme(opts.UpstreamProxyURL.Scheme):
		s.tunnelHTTPChain(c, raw, req, opts)
	default:
		s.tunnelSOCKSChain(c, raw, req, opts)
	}
	return false
}

func (s *Server) dispatchForward(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) bool {
	if opts.CustomResponseFunc != nil {
		return s.customResponse(c, raw, req, opts)
	}
	return s.forward(c, raw, req, opts)
}

// emitFailedAndSend reports a RequestFailed event and writes re to the raw
// socket.
func (s *Server) emitFailedAndSend(c *Connection, req *http.Request, opts *HandlerOptions, raw net.Conn, re *RequestError) {
	s.events.emitRequestFailed(RequestFailedEvent{Request: req, Error: re})
	s.sendError(raw, re)
}

// sendError writes re directly to the client socket as a full HTTP
// response, used whenever a handler hasn't been entered yet (or a tunnel
// error pre-empts the 200 Connection Established line).
func (s *Server) sendError(w io.Writer, re *RequestError) {
	reason := re.Message
	if reason == "" {
		reason = ReasonForStatus(re.StatusCode)
	}
	if err := writeRawResponse(w, re.StatusCode, reason, re.Headers, nil); err != nil {
		s.logger.Debug("failed writing error response", "error", err)
	}
}

func splitTarget(req *http.Request, isConnect bool) (string, int, error) {
	var hostport string
	if isConnect {
		hostport = req.URL.Host
		if hostport == "" {
			hostport = req.Host
		}
	} else {
		hostport = req.URL.Host
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
		portStr = defaultPortForRequest(req, isConnect)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errors.New("invalid port in request target")
	}
	if port < 1 || port > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, port, nil
}

func defaultPortForRequest(req *http.Request, isConnect bool) string {
	if isConnect {
		return "443"
	}
	if req.URL.Scheme == "https" {
		return "443"
	}
	return "80"
}

func isHTTPScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func parseUpstreamURL(raw string) (*url.URL, error) {
	return url.Parse(raw)
}

// unshiftBuffered wraps raw so reads first drain whatever http.ReadRequest's
// bufio.Reader already pulled off the socket past the CONNECT request's
// blank line (e.g. a TLS ClientHello pipelined right after CONNECT) before
// falling through to raw itself. Used only for the tunnel path, where
// subsequent reads bypass r entirely and would otherwise drop those bytes.
func unshiftBuffered(raw net.Conn, r *bufio.Reader) net.Conn {
	if r.Buffered() == 0 {
		return raw
	}
	return &bufferedClientConn{Conn: raw, r: r}
}

// bufferedClientConn replays bytes already buffered in r before reading
// further from the embedded net.Conn.
type bufferedClientConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedClientConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
