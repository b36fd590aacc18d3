package proxy

import (
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/go-proxychain/proxychain/proxy/internal/conn"
)

// Connection is one accepted client socket, tracked from accept to close.
// Its source byte counters are live for the whole connection; its target
// accumulator sums byte counts across every upstream socket the connection
// opens in sequence (at most one at a time).
type Connection struct {
	ID         uint64
	RemoteAddr string

	src    *conn.CountingConn
	target *conn.TargetAccumulator

	mu     sync.Mutex
	closed bool
}

// stats snapshots the current byte counters. Target fields are nil if no
// upstream socket was ever opened on this connection.
func (c *Connection) stats() ConnectionStats {
	s := ConnectionStats{
		SrcRxBytes: c.src.BytesRead(),
		SrcTxBytes: c.src.BytesWritten(),
	}
	if rx, tx, ok := c.target.Snapshot(); ok {
		s.TrgRxBytes = &rx
		s.TrgTxBytes = &tx
	}
	return s
}

// close closes the underlying client socket exactly once. Idempotent so
// both a registry-initiated close and the connection's own handler loop
// exiting can call it safely.
func (c *Connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	_ = c.src.Close()
}

// registry wraps a net.Listener, assigns monotonic connection IDs to every
// accepted socket, and tracks live connections so they can be enumerated,
// inspected, or force-closed from outside the accept loop.
type registry struct {
	listener net.Listener
	nextID   atomic.Uint64
	bus      *eventBus

	mu    sync.Mutex
	conns map[uint64]*Connection
}

func newRegistry(l net.Listener, bus *eventBus) *registry {
	return &registry{
		listener: l,
		bus:      bus,
		conns:    make(map[uint64]*Connection),
	}
}

// accept blocks until a socket is accepted (or the listener is closed) and
// registers it, returning the wrapped Connection alongside its raw net.Conn
// decorated with live byte counters.
func (r *registry) accept() (*Connection, net.Conn, error) {
	raw, err := r.listener.Accept()
	if err != nil {
		return nil, nil, err
	}

	id := r.nextID.Add(1)
	target := &conn.TargetAccumulator{}
	src := conn.NewCountingConn(raw)

	c := &Connection{
		ID:         id,
		RemoteAddr: raw.RemoteAddr().String(),
		src:        src,
		target:     target,
	}

	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()

	return c, src, nil
}

// release removes c from the live set, closes its socket if not already
// closed, and emits ConnectionClosed with the final byte-accounting
// snapshot. Called exactly once per connection, from the accept loop's
// per-connection goroutine, however the connection ends.
func (r *registry) release(c *Connection) {
	stats := c.stats()
	c.close()

	r.mu.Lock()
	delete(r.conns, c.ID)
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.emitConnectionClosed(ConnectionClosedEvent{ConnectionID: c.ID, Stats: stats})
	}
}

func (r *registry) ids() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

func (r *registry) statsFor(id uint64) (ConnectionStats, bool) {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return ConnectionStats{}, false
	}
	return c.stats(), true
}

func (r *registry) closeOne(id uint64) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	c.close()
	return true
}

func (r *registry) closeAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}
