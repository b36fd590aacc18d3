package proxy

import (
	"encoding/base64"
	"net"
	"net/http"
)

// customResponse invokes opts.CustomResponseFunc and writes its result
// directly to the client socket in place of forwarding the request
// anywhere. Returns true if the client connection can keep reading further
// pipelined requests.
func (s *Server) customResponse(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) bool {
	resp, err := opts.CustomResponseFunc(req)
	if err != nil {
		re, ok := AsRequestError(err)
		if !ok {
			re = NewTransportError(err)
		}
		s.emitFailedAndSend(c, req, opts, raw, re)
		return false
	}

	statusCode := resp.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	body := resp.Body
	if resp.Encoding == "base64" {
		decoded, decodeErr := base64.StdEncoding.DecodeString(string(resp.Body))
		if decodeErr != nil {
			s.emitFailedAndSend(c, req, opts, raw, NewBadSyntaxError("invalid base64 custom response body: %s", decodeErr.Error()))
			return false
		}
		body = decoded
	}

	headers := resp.Headers
	if headers == nil {
		headers = http.Header{}
	}

	s.events.emitRequestBypassed(RequestBypassedEvent{
		ID:           opts.RequestID,
		Request:      req,
		ConnectionID: c.ID,
		CustomTag:    opts.CustomTag,
	})

	if err := writeRawResponse(raw, statusCode, ReasonForStatus(statusCode), headers, body); err != nil {
		s.logger.Debug("failed writing custom response", "error", err)
		return false
	}

	s.events.emitRequestFinished(RequestFinishedEvent{
		ID:           opts.RequestID,
		Request:      req,
		ConnectionID: c.ID,
		CustomTag:    opts.CustomTag,
		Stats:        c.stats(),
		StatusCode:   statusCode,
	})

	return headers.Get("Connection") != "close" && req.Header.Get("Connection") != "close"
}
