package conn_test

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-proxychain/proxychain/proxy/internal/conn"
)

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestCountingConnTracksLiveCounters(t *testing.T) {
	a, b := pipePair(t)
	cc := conn.NewCountingConn(a)

	go func() {
		_, _ = b.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := io.ReadFull(cc, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.EqualValues(t, 5, cc.BytesRead())
	require.EqualValues(t, 0, cc.BytesWritten())
}

func TestTargetAccumulatorNilUntilAttached(t *testing.T) {
	acc := &conn.TargetAccumulator{}
	_, _, ok := acc.Snapshot()
	require.False(t, ok)
}

func TestTargetAccumulatorSumsAcrossSockets(t *testing.T) {
	acc := &conn.TargetAccumulator{}

	a1, b1 := pipePair(t)
	cc1 := acc.Attach(a1)
	go func() { _, _ = b1.Write([]byte("abc")) }()
	buf := make([]byte, 3)
	_, err := io.ReadFull(cc1, buf)
	require.NoError(t, err)
	require.NoError(t, cc1.Close())

	a2, b2 := pipePair(t)
	cc2 := acc.Attach(a2)
	go func() { _, _ = b2.Write([]byte("de")) }()
	buf2 := make([]byte, 2)
	_, err = io.ReadFull(cc2, buf2)
	require.NoError(t, err)
	require.NoError(t, cc2.Close())

	rx, tx, ok := acc.Snapshot()
	require.True(t, ok)
	require.EqualValues(t, 5, rx)
	require.EqualValues(t, 0, tx)
}

func TestCountingConnEndUseLatchesDelta(t *testing.T) {
	acc := &conn.TargetAccumulator{}
	a, b := pipePair(t)
	cc := acc.Attach(a)

	go func() { _, _ = b.Write([]byte("xx")) }()
	buf := make([]byte, 2)
	_, err := io.ReadFull(cc, buf)
	require.NoError(t, err)
	cc.EndUse()

	rx, _, ok := acc.Snapshot()
	require.True(t, ok)
	require.EqualValues(t, 2, rx)

	// Reused socket: further reads only add the new delta.
	go func() { _, _ = b.Write([]byte("y")) }()
	buf2 := make([]byte, 1)
	_, err = io.ReadFull(cc, buf2)
	require.NoError(t, err)
	require.NoError(t, cc.Close())

	rx, _, ok = acc.Snapshot()
	require.True(t, ok)
	require.EqualValues(t, 3, rx)
}
