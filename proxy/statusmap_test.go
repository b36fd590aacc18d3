package proxy

import (
	"bytes"
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodeToStatusCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"dns", &net.DNSError{IsNotFound: true}, StatusDNSLookupFailed},
		{"refused", syscall.ECONNREFUSED, StatusConnectionRefused},
		{"reset", syscall.ECONNRESET, StatusConnectionReset},
		{"pipe", syscall.EPIPE, StatusBrokenPipe},
		{"timeout", syscall.ETIMEDOUT, 504},
		{"unknown", errors.New("boom"), StatusGenericError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ErrorCodeToStatusCode(tc.err))
		})
	}
}

func TestWriteRawResponseIncludesStatusAndBody(t *testing.T) {
	var buf bytes.Buffer
	err := writeRawResponse(&buf, 590, "UPSTREAM502 bad gateway", nil, []byte("bad gateway"))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "HTTP/1.1 590 UPSTREAM502 bad gateway")
	require.Contains(t, buf.String(), "Content-Length: 11")
	require.Contains(t, buf.String(), "bad gateway")
}
