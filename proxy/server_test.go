package proxy_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-proxychain/proxychain/proxy"
)

func startServer(t *testing.T, cfg proxy.Config) (addr string, srv *proxy.Server) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv = proxy.New(cfg)
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close(true) })

	return l.Addr().String(), srv
}

func TestForwardDirectRequest(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-From-Origin", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello from origin"))
	}))
	defer origin.Close()

	proxyAddr, _ := startServer(t, proxy.Config{})

	conn, err := net.DialTimeout("tcp", proxyAddr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req, err := http.NewRequest(http.MethodGet, origin.URL+"/path", nil)
	require.NoError(t, err)
	require.NoError(t, req.WriteProxy(conn))

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "yes", resp.Header.Get("X-From-Origin"))
	require.Equal(t, "hello from origin", string(body))
}

func TestForwardRejectsRelativeForm(t *testing.T) {
	proxyAddr, _ := startServer(t, proxy.Config{})

	conn, err := net.DialTimeout("tcp", proxyAddr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /relative HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProxyAuthenticationRequired(t *testing.T) {
	proxyAddr, _ := startServer(t, proxy.Config{
		PrepareRequestFunc: func(_ context.Context, _ *proxy.RequestInfo) (*proxy.RequestResult, error) {
			return &proxy.RequestResult{RequestAuthentication: true, FailMsg: "nope"}, nil
		},
	})

	conn, err := net.DialTimeout("tcp", proxyAddr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	require.NoError(t, req.WriteProxy(conn))

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusProxyAuthRequired, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Proxy-Authenticate"))
}

func TestCustomResponseHandler(t *testing.T) {
	proxyAddr, _ := startServer(t, proxy.Config{
		PrepareRequestFunc: func(_ context.Context, _ *proxy.RequestInfo) (*proxy.RequestResult, error) {
			return &proxy.RequestResult{
				CustomResponseFunc: func(req *http.Request) (*proxy.CustomResponse, error) {
					return &proxy.CustomResponse{StatusCode: http.StatusTeapot, Body: []byte("im a teapot")}, nil
				},
			}, nil
		},
	})

	conn, err := net.DialTimeout("tcp", proxyAddr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)
	require.NoError(t, req.WriteProxy(conn))

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Equal(t, "im a teapot", string(body))
}

func TestTunnelDirectConnect(t *testing.T) {
	echoListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer echoListener.Close()

	go func() {
		c, acceptErr := echoListener.Accept()
		if acceptErr != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 5)
		_, _ = io.ReadFull(c, buf)
		_, _ = c.Write(buf)
	}()

	proxyAddr, _ := startServer(t, proxy.Config{})

	conn, err := net.DialTimeout("tcp", proxyAddr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	connectLine := "CONNECT " + echoListener.Addr().String() + " HTTP/1.1\r\nHost: " + echoListener.Addr().String() + "\r\n\r\n"
	_, err = conn.Write([]byte(connectLine))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, statusLine, "200")

	// drain the blank line terminating the CONNECT response headers
	for {
		line, readErr := br.ReadString('\n')
		require.NoError(t, readErr)
		if line == "\r\n" {
			break
		}
	}

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(br, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestGetConnectionIDsTracksLiveConnections(t *testing.T) {
	proxyAddr, srv := startServer(t, proxy.Config{})

	conn, err := net.DialTimeout("tcp", proxyAddr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(srv.GetConnectionIDs()) == 1
	}, time.Second, 10*time.Millisecond)
}
