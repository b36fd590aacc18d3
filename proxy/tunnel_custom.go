package proxy

import (
	"net"
	"net/http"
	"sync"
)

// tunnelCustom responds 200 Connection Established then hands the raw
// socket to opts.CustomConnectServer, an http.Handler that speaks whatever
// protocol the caller wants over the tunnel (used e.g. to terminate TLS
// locally and inspect plaintext, or to serve a synthetic API on the
// tunneled socket instead of reaching a real target).
func (s *Server) tunnelCustom(c *Connection, raw net.Conn, req *http.Request, opts *HandlerOptions) {
	s.events.emitRequestBypassed(RequestBypassedEvent{
		ID:           opts.RequestID,
		Request:      req,
		ConnectionID: c.ID,
		CustomTag:    opts.CustomTag,
	})

	if _, err := raw.Write(connectEstablishedResponse); err != nil {
		s.logger.Debug("failed writing CONNECT response", "error", err)
		return
	}

	srv := &http.Server{Handler: opts.CustomConnectServer}
	_ = srv.Serve(newOneShotListener(raw))

	s.events.emitRequestFinished(RequestFinishedEvent{
		ID:           opts.RequestID,
		Request:      req,
		ConnectionID: c.ID,
		CustomTag:    opts.CustomTag,
		Stats:        c.stats(),
		StatusCode:   http.StatusOK,
	})
}

// oneShotListener yields exactly one net.Conn (the already-hijacked tunnel
// socket) to an http.Server's Serve loop. The second Accept call blocks
// until that connection is closed, so Serve (and this function) don't
// return before the custom handler is actually done with the socket.
type oneShotListener struct {
	conn    net.Conn
	done    chan struct{}
	closeOn sync.Once
	used    bool
	mu      sync.Mutex
}

func newOneShotListener(c net.Conn) *oneShotListener {
	return &oneShotListener{conn: c, done: make(chan struct{})}
}

func (l *oneShotListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	first := !l.used
	l.used = true
	l.mu.Unlock()

	if first {
		return &oneShotConn{Conn: l.conn, onClose: l.markDone}, nil
	}
	<-l.done
	return nil, net.ErrClosed
}

func (l *oneShotListener) markDone() {
	l.closeOn.Do(func() { close(l.done) })
}

func (l *oneShotListener) Close() error   { l.markDone(); return nil }
func (l *oneShotListener) Addr() net.Addr { return l.conn.LocalAddr() }

// oneShotConn wraps the tunnel socket and signals its listener once closed.
type oneShotConn struct {
	net.Conn
	onClose func()
	once    sync.Once
}

func (c *oneShotConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.onClose)
	return err
}
