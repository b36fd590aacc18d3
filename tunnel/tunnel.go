// Package tunnel exposes a raw net.Conn-to-net.Conn TCP relay for callers
// that already have two live sockets and just want the same half-close,
// backpressure-respecting piping the proxy package's CONNECT handlers use,
// without any HTTP framing at all.
package tunnel

import (
	"net"

	"github.com/go-proxychain/proxychain/proxy"
)

// Relay pipes bytes between a and b in both directions until one side
// closes, then closes the other. It blocks until the relay is done.
func Relay(a, b net.Conn) {
	proxy.Pipe(a, b)
}

// DialAndRelay dials addr over network and relays bytes between the new
// connection and peer. It returns any dial error; the relay error surface
// is limited to what Pipe reports via closed connections, so there is
// nothing further to return once dialing succeeds.
func DialAndRelay(network, addr string, peer net.Conn) error {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	Relay(conn, peer)
	return nil
}
