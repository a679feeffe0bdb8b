package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mkb/internal/assembler"
	"mkb/internal/chat"
	"mkb/internal/logging"
	"mkb/internal/session"
)

// Server is the HTTP transport over the context pipeline.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	addr      string
	logger    *logging.Logger
	assembler *assembler.Assembler
	pipeline  *chat.Pipeline
	sessions  *session.Store
	metrics   *MetricsCollector
	shedder   *LoadShedder
	started   time.Time
}

// Deps are the pipeline components the server exposes.
type Deps struct {
	Assembler *assembler.Assembler
	Pipeline  *chat.Pipeline
	Sessions  *session.Store
	// Shedding tunes load shedding; the zero value disables it.
	Shedding LoadSheddingConfig
}

// NewServer creates a new HTTP server instance
func NewServer(addr string, deps Deps, logger *logging.Logger) *Server {
	s := &Server{
		addr:      addr,
		logger:    logger,
		assembler: deps.Assembler,
		pipeline:  deps.Pipeline,
		sessions:  deps.Sessions,
		metrics:   NewMetricsCollector(),
		router:    http.NewServeMux(),
		started:   time.Now(),
	}
	if deps.Shedding.Enabled {
		s.shedder = NewLoadShedder(deps.Shedding)
	}

	// Register routes
	s.registerRoutes()

	// Create HTTP server with configured router and middleware
	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.addr,
	})

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully", nil)
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = GzipMiddleware()(handler)
	if s.shedder != nil {
		handler = s.shedder.Middleware()(handler)
	}
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}
