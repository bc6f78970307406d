package admin

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danmuck/ttcp/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 3 * time.Second

var ErrSessionNotFound = errors.New("session not found")

// ConnCounter reports accept-loop counters; transport.Server satisfies it.
type ConnCounter interface {
	Active() int64
	Accepted() int64
}

// Server exposes health, readiness, metrics and recent sessions over HTTP.
type Server struct {
	Node    string
	Addr    string
	Started time.Time

	sessions *observability.Recorder
	conns    atomic.Pointer[ConnCounter]
	ready    atomic.Bool
	router   *gin.Engine
}

func New(node, addr string, corsOrigins []string, sessions *observability.Recorder) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminMiddleware(node, observability.ComponentLogger("admin", node)))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	if sessions == nil {
		sessions = observability.NewRecorder(node, 0)
	}
	s := &Server{
		Node:     node,
		Addr:     addr,
		Started:  time.Now(),
		sessions: sessions,
		router:   r,
	}
	s.registerRoutes()
	return s
}

// AttachConns exposes accept-loop counters on /health.
func (s *Server) AttachConns(c ConnCounter) {
	s.conns.Store(&c)
}

// SetReady flips /ready once the process can run sessions.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"node":    s.Node,
			"uptime":  time.Since(s.Started).String(),
			"running": s.sessions.Running(),
		}
		if cc := s.conns.Load(); cc != nil {
			body["active_connections"] = (*cc).Active()
			body["accepted_connections"] = (*cc).Accepted()
		}
		c.JSON(http.StatusOK, body)
	})

	s.router.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		if !s.ready.Load() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready": s.ready.Load(),
			"node":  s.Node,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.List()})
	})

	s.router.GET("/sessions/:id", func(c *gin.Context) {
		rec, ok := s.sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrSessionNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	})
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Str("node", s.Node).Msg("admin server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
