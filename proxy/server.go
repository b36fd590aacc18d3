package proxy

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
)

// Server listens for client connections, dispatches each request through
// the configured authentication/routing hook, and forwards or tunnels
// traffic to its destination.
type Server struct {
	config Config
	logger *slog.Logger
	stats  ServerStatistics
	events eventBus

	reg *registry
}

// New builds a Server from cfg. Call Listen to start accepting connections.
// By default logs go to os.Stdout; use NewWithLogWriter to redirect them
// (e.g. to a rotating file sink).
func New(cfg Config) *Server {
	return NewWithLogWriter(cfg, os.Stdout)
}

// NewWithLogWriter is like New but writes log output to w instead of
// os.Stdout.
func NewWithLogWriter(cfg Config, w io.Writer) *Server {
	cfg = cfg.withDefaults()

	level := slog.LevelInfo
	addSource := false
	if cfg.Verbose {
		level = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}))

	return &Server{
		config: cfg,
		logger: logger,
	}
}

// Listen binds the configured host:port and blocks, accepting and serving
// connections until the listener is closed (via Close). It returns nil on a
// clean shutdown.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts and serves connections off an already-bound listener until
// it is closed, useful for tests or callers that want control over the
// listen socket (e.g. binding port 0 and reading back the assigned port).
func (s *Server) Serve(l net.Listener) error {
	s.reg = newRegistry(l, &s.events)
	s.logger.Info("proxy listening", "addr", l.Addr().String())

	for {
		c, raw, err := s.reg.accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConnection(c, raw)
	}
}

// Close stops accepting new connections. If force is true, all live
// connections are also closed immediately; otherwise they are left to
// finish their current request.
func (s *Server) Close(force bool) error {
	var err error
	if s.reg != nil {
		err = s.reg.listener.Close()
		if force {
			s.reg.closeAll()
		}
	}
	return err
}

// Statistics returns the server's cumulative request counters.
func (s *Server) Statistics() *ServerStatistics { return &s.stats }

// GetConnectionIDs returns the IDs of every currently live connection.
func (s *Server) GetConnectionIDs() []uint64 {
	if s.reg == nil {
		return nil
	}
	return s.reg.ids()
}

// GetConnectionStats returns the current byte-accounting snapshot for a
// live connection. ok is false if no such connection exists.
func (s *Server) GetConnectionStats(id uint64) (ConnectionStats, bool) {
	if s.reg == nil {
		return ConnectionStats{}, false
	}
	return s.reg.statsFor(id)
}

// CloseConnection force-closes one live connection by ID. Returns false if
// no such connection exists.
func (s *Server) CloseConnection(id uint64) bool {
	if s.reg == nil {
		return false
	}
	return s.reg.closeOne(id)
}

// CloseConnections force-closes every live connection without stopping the
// listener.
func (s *Server) CloseConnections() {
	if s.reg != nil {
		s.reg.closeAll()
	}
}
