package proxy

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"
)

// Synthetic bad-gateway status codes returned when no real upstream status
// is available.
const (
	StatusUpstreamNonSuccessful = 590 // Upstream non-200 to CONNECT
	StatusOutOfRange            = 592 // Upstream returned status outside 100-999 on forward
	StatusDNSLookupFailed       = 593 // ENOTFOUND
	StatusConnectionRefused     = 594 // ECONNREFUSED
	StatusConnectionReset       = 595 // ECONNRESET
	StatusBrokenPipe            = 596 // EPIPE
	StatusAuthFailed            = 597 // upstream 401/407
	StatusGenericError          = 599 // anything else
	reasonNonSuccessful         = "Non Successful"
	reasonAuthFailed            = "AUTH_FAILED"
	reasonGenericError          = "GENERIC_ERROR"
)

// ErrorCodeToStatusCode maps system errno-like conditions to the synthetic
// status codes above.
func ErrorCodeToStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return StatusConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return StatusConnectionReset
	case errors.Is(err, syscall.EPIPE):
		return StatusBrokenPipe
	case errors.Is(err, syscall.ETIMEDOUT):
		return http.StatusGatewayTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return StatusDNSLookupFailed
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	return StatusGenericError
}

// ReasonForStatus returns the canonical reason phrase for the synthetic
// codes; falls back to http.StatusText for ordinary HTTP codes.
func ReasonForStatus(code int) string {
	switch code {
	case StatusUpstreamNonSuccessful:
		return reasonNonSuccessful
	case StatusOutOfRange:
		return "Status Code Out Of Range"
	case StatusDNSLookupFailed:
		return "DNS Lookup Failed"
	case StatusConnectionRefused:
		return "Connection Refused"
	case StatusConnectionReset:
		return "Connection Reset"
	case StatusBrokenPipe:
		return "Broken Pipe"
	case StatusAuthFailed:
		return reasonAuthFailed
	case StatusGenericError:
		return reasonGenericError
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return reasonGenericError
}

// writeRawResponse writes a full HTTP/1.1 status line, headers, Date, and
// Content-Length directly to w, used on the low-level socket response path
// where no http.ResponseWriter is available yet (pre-dispatch errors,
// CONNECT failures).
func writeRawResponse(w io.Writer, statusCode int, reason string, headers http.Header, body []byte) error {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", statusCode, reason)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(http.TimeFormat))
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	for name, values := range headers {
		for _, v := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}
	b.WriteString("\r\n")
	if len(body) > 0 {
		b.Write(body)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
