// Package server is the HTTP transport in front of the chat service.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/jarvis-gateway/internal/chat"
	"github.com/comigor/jarvis-gateway/internal/config"
	"github.com/comigor/jarvis-gateway/internal/logger"
	"github.com/comigor/jarvis-gateway/internal/metrics"
)

// Server owns the router and the listening http.Server.
type Server struct {
	httpServer *http.Server
}

// NewRouter registers every route. collector may be nil.
func NewRouter(svc *chat.Service, collector *metrics.Collector) chi.Router {
	h := &handlers{chat: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	api := func(r chi.Router) {
		r.Post("/chat/completions", h.completions)
		r.Get("/chat/history", h.getHistory)
		r.Delete("/chat/history", h.clearHistory)
		r.Get("/models", h.models)
		r.Get("/webui/history", h.webuiHistory)
	}
	api(r)
	r.Route("/v1", api)

	r.Get("/healthz", h.healthz)
	if collector != nil {
		r.Handle("/metrics", collector.Handler())
	}
	return r
}

// requestLogger logs one line per request with the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L.Info("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// New creates a Server listening on cfg.Host:cfg.Port.
func New(cfg config.ServerConfig, svc *chat.Service, collector *metrics.Collector) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
			Handler:           NewRouter(svc, collector),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("starting server", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.L.Info("server shutdown complete")
	return nil
}
