package proxy

import (
	"fmt"
	"net/http"
)

// RequestError is the single concrete error type that flows through the
// dispatcher's fail path. Go has no sum types, so the four error kinds
// (bad syntax, auth required, upstream status, transport error) are
// expressed as constructor functions that all produce a *RequestError,
// keeping one rendering path at the boundary.
type RequestError struct {
	Message    string
	StatusCode int
	Headers    http.Header
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// NewBadSyntaxError builds a 400 for malformed request lines, absolute
// URLs, or Proxy-Authorization headers.
func NewBadSyntaxError(format string, args ...any) *RequestError {
	return &RequestError{Message: fmt.Sprintf(format, args...), StatusCode: http.StatusBadRequest}
}

// NewAuthRequiredError builds a 407. headers should carry
// Proxy-Authenticate when known by the caller; the dispatcher fills it in
// from the configured auth realm otherwise.
func NewAuthRequiredError(failMsg string) *RequestError {
	if failMsg == "" {
		failMsg = "Proxy credentials required."
	}
	return &RequestError{Message: failMsg, StatusCode: http.StatusProxyAuthRequired}
}

// NewUpstreamStatusError builds an error carrying a synthetic bad-gateway
// status produced by ErrorCodeToStatusCode, or an upstream's own status.
func NewUpstreamStatusError(statusCode int, reason string) *RequestError {
	return &RequestError{Message: reason, StatusCode: statusCode}
}

// NewTransportError wraps an unexpected transport failure as a 599 generic
// error.
func NewTransportError(err error) *RequestError {
	return &RequestError{Message: err.Error(), StatusCode: StatusGenericError}
}

// AsRequestError unwraps err into a *RequestError if it already is one.
func AsRequestError(err error) (*RequestError, bool) {
	re, ok := err.(*RequestError)
	return re, ok
}
