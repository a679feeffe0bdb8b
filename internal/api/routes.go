package api

import (
	"net/http"

	"mkb/internal/version"
)

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Health and readiness checks
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/ready", s.handleReady)

	// System status and diagnostics
	s.router.HandleFunc("/status", s.handleStatus)

	// Context assembly and answering
	s.router.HandleFunc("/context", s.handleContext) // POST {query, history?, includeCatalog?}
	s.router.HandleFunc("/chat", s.handleChat)       // POST {message, sessionId? | history?}
	s.router.HandleFunc("/intent", s.handleIntent)   // GET /intent?q=...

	// Semantic index management
	s.router.HandleFunc("/index/rebuild", s.handleIndexRebuild) // POST

	// Conversation sessions
	s.router.HandleFunc("/session", s.handleSessionCreate) // POST
	s.router.HandleFunc("/session/", s.handleSession)      // GET/DELETE /session/:id

	// Prometheus metrics
	s.router.HandleFunc("/metrics", s.handleMetrics)

	// OpenAPI spec
	s.router.HandleFunc("/openapi.json", s.handleOpenAPISpec)

	// Root endpoint
	s.router.HandleFunc("/", s.handleRoot)
}

// handleRoot handles requests to the root path
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"name":    "MKB HTTP API",
		"version": version.Version,
		"endpoints": []string{
			"GET /health - Health check",
			"GET /ready - Readiness check",
			"GET /status - Cache, index, and session status",
			"POST /context - Assemble a context block for a query",
			"POST /chat - Answer a customer message with assembled context",
			"GET /intent?q=query - Resolve a query against the taxonomy",
			"POST /index/rebuild - Rebuild the semantic index",
			"POST /session - Start a conversation session",
			"GET /session/:id - Session transcript",
			"DELETE /session/:id - Drop a session",
			"GET /metrics - Prometheus metrics",
			"GET /openapi.json - OpenAPI specification",
		},
		"documentation": "/openapi.json",
	}

	WriteJSON(w, response, http.StatusOK)
}
