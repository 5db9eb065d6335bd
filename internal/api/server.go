package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
)

// Server ties the engine to the WebSocket hub and the REST router.
type Server struct {
	engine      *game.Engine
	hub         *Hub
	router      *chi.Mux
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer wires the hub as the engine's dispatcher and builds the router.
// Nothing listens until Start.
func NewServer(engine *game.Engine, cfg config.AppConfig) *Server {
	s := &Server{
		engine:      engine,
		hub:         NewHub(engine, cfg),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}
	engine.SetDispatcher(s.hub)

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Hub:         s.hub,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.AllowedOrigins,
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	log.Printf("🌐 API server starting on %s", s.httpServer.Addr)
	log.Printf("🎮 WebSocket endpoint: ws://localhost%s/ws", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then closes every session and waits
// for their disconnects to reach the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	s.rateLimiter.Stop()
	return errors.Join(errs...)
}

// Router returns the handler for httptest
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Hub() *Hub {
	return s.hub
}
