package tunnel_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-proxychain/proxychain/tunnel"
)

func TestRelayCopiesBothDirections(t *testing.T) {
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()

	done := make(chan struct{})
	go func() {
		tunnel.Relay(a2, b2)
		close(done)
	}()

	go func() {
		_, _ = a1.Write([]byte("ping"))
	}()
	buf := make([]byte, 4)
	_, err := io.ReadFull(b1, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	go func() {
		_, _ = b1.Write([]byte("pong"))
	}()
	_, err = io.ReadFull(a1, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))

	_ = a1.Close()
	_ = b1.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not finish after both sides closed")
	}
}
