// Package conn provides byte-counting net.Conn decorators used to compute
// per-connection and per-target-socket statistics.
package conn

import (
	"net"
	"sync"

	"go.uber.org/atomic"
)

// TargetAccumulator aggregates byte counts across every target socket a
// single logical connection opens over its lifetime. A connection can open
// more than one target socket in sequence (e.g. socket reuse), never
// concurrently, so deltas are latched per socket via EndUse/Close and summed
// here rather than read off a single live counter.
type TargetAccumulator struct {
	mu      sync.Mutex
	used    bool
	rxTotal int64
	txTotal int64
}

// Attach wraps c as the accumulator's current target socket. The returned
// CountingConn reports its read/write delta back into the accumulator every
// time EndUse or Close is called, latching against the previous snapshot so
// a reused socket is measured from where it left off.
func (a *TargetAccumulator) Attach(c net.Conn) *CountingConn {
	a.mu.Lock()
	a.used = true
	a.mu.Unlock()
	return &CountingConn{Conn: c, acc: a}
}

// Snapshot returns the accumulated totals. ok is false if no target socket
// was ever attached.
func (a *TargetAccumulator) Snapshot() (rx, tx int64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rxTotal, a.txTotal, a.used
}

func (a *TargetAccumulator) add(rx, tx int64) {
	a.mu.Lock()
	a.rxTotal += rx
	a.txTotal += tx
	a.mu.Unlock()
}

// CountingConn decorates a net.Conn with live read/write counters. When
// attached to a TargetAccumulator it also latches its previous snapshot so
// EndUse/Close report only the delta since the last observation, tolerant of
// socket reuse.
type CountingConn struct {
	net.Conn
	acc    *TargetAccumulator
	rx, tx atomic.Int64

	mu             sync.Mutex
	prevRx, prevTx int64
	closed         bool
}

// NewCountingConn wraps c with live counters only, with no accumulator
// attached. Used for the source (client) socket, whose totals are reported
// directly rather than summed across sockets.
func NewCountingConn(c net.Conn) *CountingConn {
	return &CountingConn{Conn: c}
}

func (c *CountingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.rx.Add(int64(n))
	}
	return n, err
}

func (c *CountingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.tx.Add(int64(n))
	}
	return n, err
}

// BytesRead returns the live cumulative read counter.
func (c *CountingConn) BytesRead() int64 { return c.rx.Load() }

// BytesWritten returns the live cumulative write counter.
func (c *CountingConn) BytesWritten() int64 { return c.tx.Load() }

// EndUse latches the current counters into the attached accumulator without
// closing the underlying socket. Used for caller-supplied "end of use"
// signals when a target socket is handed back for reuse.
func (c *CountingConn) EndUse() {
	if c.acc == nil {
		return
	}
	c.mu.Lock()
	rx, tx := c.rx.Load(), c.tx.Load()
	deltaRx, deltaTx := rx-c.prevRx, tx-c.prevTx
	c.prevRx, c.prevTx = rx, tx
	c.mu.Unlock()
	c.acc.add(deltaRx, deltaTx)
}

// Close closes the underlying socket and, if attached to an accumulator,
// flushes the final delta exactly once.
func (c *CountingConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Conn.Close()
	c.EndUse()
	return err
}
