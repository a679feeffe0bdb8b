package api

import (
	"net/http"

	"mkb/internal/version"
)

// handleOpenAPISpec returns the OpenAPI specification
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	spec := GenerateOpenAPISpec()
	WriteJSON(w, spec, http.StatusOK)
}

// GenerateOpenAPISpec generates the OpenAPI specification for the API
func GenerateOpenAPISpec() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "MKB HTTP API",
			"version":     version.Version,
			"description": "Marketplace knowledge backend: context assembly and answering for a sales chatbot",
		},
		"servers": []map[string]interface{}{
			{
				"url":         "http://localhost:8080",
				"description": "Local development server",
			},
		},
		"paths": map[string]interface{}{
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Simple liveness check for load balancers",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Server is healthy",
						},
					},
				},
			},
			"/ready": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Readiness check",
					"description": "Checks whether the catalog can serve from cache or a live probe",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Server is ready",
						},
						"503": map[string]interface{}{
							"description": "Server is not ready",
						},
					},
				},
			},
			"/status": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "System status",
					"description": "Cache tiers, semantic index state, session count, and load shedding statistics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "System status",
						},
					},
				},
			},
			"/context": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Assemble context",
					"description": "Builds the bounded context block for a query without calling the completion service",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type":     "object",
									"required": []string{"query"},
									"properties": map[string]interface{}{
										"query":          map[string]interface{}{"type": "string"},
										"history":        map[string]interface{}{"type": "array"},
										"includeCatalog": map[string]interface{}{"type": "boolean"},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Envelope-wrapped context block with confidence, source freshness, and truncation metadata",
						},
						"400": map[string]interface{}{
							"description": "Missing or invalid query",
						},
					},
				},
			},
			"/chat": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Answer a customer message",
					"description": "Assembles context, calls the completion service, and records the turn when a session is attached",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type":     "object",
									"required": []string{"message"},
									"properties": map[string]interface{}{
										"message":   map[string]interface{}{"type": "string"},
										"sessionId": map[string]interface{}{"type": "string"},
										"history":   map[string]interface{}{"type": "array"},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Envelope-wrapped reply with stage and intent",
						},
						"400": map[string]interface{}{
							"description": "Missing or invalid message",
						},
						"404": map[string]interface{}{
							"description": "Unknown or expired session",
						},
						"502": map[string]interface{}{
							"description": "Completion failed; the assembled context is still included",
						},
					},
				},
			},
			"/intent": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Resolve intent",
					"description": "Resolves a query against the live taxonomy without assembling a block",
					"parameters": []map[string]interface{}{
						{
							"name":     "q",
							"in":       "query",
							"required": true,
							"schema":   map[string]interface{}{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Resolved category, OEM, confidence, and listing URLs",
						},
						"400": map[string]interface{}{
							"description": "Missing q parameter",
						},
					},
				},
			},
			"/index/rebuild": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Rebuild the semantic index",
					"description": "Starts a rebuild from the current catalog; a build already in flight is joined",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "A running build was joined",
						},
						"202": map[string]interface{}{
							"description": "A rebuild was started",
						},
						"503": map[string]interface{}{
							"description": "Semantic retrieval is not configured",
						},
					},
				},
			},
			"/session": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Start a conversation session",
					"responses": map[string]interface{}{
						"201": map[string]interface{}{
							"description": "New session with its ULID",
						},
					},
				},
			},
			"/session/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Session transcript",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Session with its messages",
						},
						"404": map[string]interface{}{
							"description": "Unknown or expired session",
						},
					},
				},
				"delete": map[string]interface{}{
					"summary": "Drop a session",
					"responses": map[string]interface{}{
						"204": map[string]interface{}{
							"description": "Session removed",
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Metrics in Prometheus text format",
						},
					},
				},
			},
		},
	}
}
