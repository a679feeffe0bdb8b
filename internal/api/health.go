package api

import (
	"net/http"
	"time"

	"mkb/internal/version"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Sources   map[string]bool `json:"sources"`
}

// handleHealth responds to health check requests (simple liveness check)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	}

	WriteJSON(w, response, http.StatusOK)
}

// handleReady responds to readiness check requests. Ready means the
// catalog can serve: its cache is warm or the source answers a probe.
// The taxonomy never gates readiness because the embedded fallback
// always serves.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	catalogReady := s.assembler.Ready(r.Context())

	status := "ready"
	statusCode := http.StatusOK
	if !catalogReady {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Sources: map[string]bool{
			"catalog":  catalogReady,
			"taxonomy": true,
		},
	}

	WriteJSON(w, response, statusCode)
}
