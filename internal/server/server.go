// Package server provides the HTTP API for Shiori.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/prompt"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

const queryTimeout = 60 * time.Second

// Rebuilder rebuilds and swaps the served index.
type Rebuilder interface {
	Rebuild(ctx context.Context) (indexer.BuildStats, error)
}

// Server is the HTTP server for the Shiori API.
type Server struct {
	retriever *retrieval.Retriever
	assembler *prompt.Assembler
	rebuilder Rebuilder
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server. rebuilder may be nil, in which case POST /api/v1/index is not available.
func NewServer(
	retriever *retrieval.Retriever,
	assembler *prompt.Assembler,
	rebuilder Rebuilder,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		retriever: retriever,
		assembler: assembler,
		rebuilder: rebuilder,
		config:    cfg,
		logger:    utils.OrNop(logger),
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(queryTimeout))
			r.Post("/retrieve", s.handleRetrieve)
			r.Post("/prompt", s.handlePrompt)
			r.Get("/status", s.handleStatus)
		})
		// A full rebuild may outlast any request timeout.
		r.Post("/index", s.handleRebuild)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
