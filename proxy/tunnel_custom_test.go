package proxy_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-proxychain/proxychain/proxy"
)

func TestTunnelCustomConnectServerHandlesConnection(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from custom handler"))
	})

	proxyAddr, _ := startServer(t, proxy.Config{
		PrepareRequestFunc: func(_ context.Context, _ *proxy.RequestInfo) (*proxy.RequestResult, error) {
			return &proxy.RequestResult{CustomConnectServer: handler}, nil
		},
	})

	conn, err := net.DialTimeout("tcp", proxyAddr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	connectLine := "CONNECT internal.example:443 HTTP/1.1\r\nHost: internal.example:443\r\n\r\n"
	_, err = conn.Write([]byte(connectLine))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, statusLine, "200")

	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}

	req, err := http.NewRequest(http.MethodGet, "/anything", nil)
	require.NoError(t, err)
	require.NoError(t, req.Write(conn))

	resp, err := http.ReadResponse(br, req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "from custom handler", string(body))
}
