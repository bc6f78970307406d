package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Handler runs one session on an accepted connection and owns closing it.
type Handler func(ctx context.Context, conn net.Conn)

// ServerConfig shapes the receiver accept loop.
type ServerConfig struct {
	NoDelay bool

	// Once stops accepting after the first connection and returns when its session ends.
	Once bool
}

// Server hands each accepted connection to an independent handler.
type Server struct {
	cfg ServerConfig

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup

	active   atomic.Int64
	accepted atomic.Int64
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen binds a TCP listener; failures are connection errors.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, protocol.ConnectionError("listen "+addr, err)
	}
	return ln, nil
}

// Serve accepts until ctx is done (or after one session in Once mode), then closes
// every tracked connection and waits for handlers to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener, handle Handler) error {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() {
		s.closeAllConns()
		_ = ln.Close()
	})
	defer stop()
	defer s.wg.Wait()

	log.Info().Str("addr", ln.Addr().String()).Bool("once", s.cfg.Once).Msg("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return protocol.ConnectionError("accept", err)
		}
		if err := applyNoDelay(conn, s.cfg.NoDelay); err != nil {
			log.Warn().Err(err).Msg("set nodelay")
		}
		s.accepted.Add(1)
		s.trackConn(conn)
		if s.cfg.Once {
			_ = ln.Close()
			s.handleConn(ctx, conn, handle)
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn, handle)
		}()
	}
}

// Active is the number of sessions currently running.
func (s *Server) Active() int64 {
	return s.active.Load()
}

// Accepted is the number of connections accepted since start.
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, handle Handler) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.active.Add(1)
	log.Info().Str("remote", remote).Int64("active_sessions", active).Msg("client connected")
	defer func() {
		remaining := s.active.Add(-1)
		log.Info().Str("remote", remote).Int64("active_sessions", remaining).Msg("client disconnected")
	}()
	handle(ctx, conn)
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
