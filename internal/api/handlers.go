package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"mkb/internal/ai"
	"mkb/internal/assembler"
	"mkb/internal/chat"
	"mkb/internal/envelope"
	"mkb/internal/errors"
	"mkb/internal/funnel"
	"mkb/internal/intent"
	"mkb/internal/session"
	"mkb/internal/version"
)

// StatusResponse represents the system status response
type StatusResponse struct {
	Status     string                   `json:"status"`
	Timestamp  time.Time                `json:"timestamp"`
	Version    string                   `json:"version"`
	Uptime     string                   `json:"uptime"`
	Caches     assembler.Status         `json:"caches"`
	Sessions   int                      `json:"sessions"`
	Completion chat.CircuitBreakerStats `json:"completion"`
	Load       *LoadSheddingStats       `json:"load,omitempty"`
}

// ContextRequest is the POST /context body.
type ContextRequest struct {
	Query          string       `json:"query"`
	History        []ai.Message `json:"history,omitempty"`
	IncludeCatalog bool         `json:"includeCatalog,omitempty"`
}

// ContextData is the assembled payload for /context responses, and for
// /chat errors where only the context could be produced.
type ContextData struct {
	Block  string        `json:"block"`
	Intent intent.Intent `json:"intent"`
	Stage  funnel.State  `json:"stage"`
}

// ChatRequest is the POST /chat body. SessionID and History are
// alternatives; when both are present the session wins.
type ChatRequest struct {
	Message   string       `json:"message"`
	SessionID string       `json:"sessionId,omitempty"`
	History   []ai.Message `json:"history,omitempty"`
}

// ChatData is the answered-turn payload for /chat responses.
type ChatData struct {
	Reply     string        `json:"reply"`
	SessionID string        `json:"sessionId,omitempty"`
	Intent    intent.Intent `json:"intent"`
	Stage     funnel.State  `json:"stage"`
}

// IntentData is the GET /intent debug payload.
type IntentData struct {
	Query  string        `json:"query"`
	Intent intent.Intent `json:"intent"`
}

// RebuildData reports what POST /index/rebuild did.
type RebuildData struct {
	Status    string `json:"status"`
	Coalesced bool   `json:"coalesced,omitempty"`
}

// rebuildTimeout bounds an API-initiated index rebuild.
const rebuildTimeout = 10 * time.Minute

// handleStatus reports cache tiers, index state, and session count
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatusResponse{
		Status:     "ok",
		Timestamp:  time.Now().UTC(),
		Version:    version.Version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Caches:     s.assembler.Status(),
		Sessions:   s.sessions.Len(),
		Completion: s.pipeline.CircuitStats(),
	}
	if s.shedder != nil {
		stats := s.shedder.Stats()
		response.Load = &stats
	}

	WriteJSON(w, response, http.StatusOK)
}

// handleContext assembles a context block without calling the
// completion service
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		BadRequest(w, "Missing required field: query")
		return
	}

	start := time.Now()
	res := s.assembler.Assemble(r.Context(), req.Query, len(req.History), assembler.Options{
		IncludeFullCatalog: req.IncludeCatalog,
	})
	s.metrics.RecordContext(cacheLabel(res.Trace.Cache), time.Since(start))
	s.recordDegradations(res.Trace.Sources)

	b := envelope.New().
		Data(ContextData{Block: res.Block, Intent: res.Intent, Stage: res.Stage}).
		FromAssembly(&res)
	if st := s.assembler.Status(); st.Index != nil {
		b.WithIndex(*st.Index)
	}
	WriteJSON(w, b.Build(), http.StatusOK)
}

// handleChat answers one customer message: assemble context, complete,
// and record the turn when a session is attached
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		BadRequest(w, "Missing required field: message")
		return
	}

	history := req.History
	if req.SessionID != "" {
		stored, err := s.sessions.History(req.SessionID)
		if err != nil {
			WriteMkbError(w, err)
			return
		}
		history = toAIMessages(stored)
	}

	start := time.Now()
	reply, err := s.pipeline.Answer(r.Context(), req.Message, history)
	s.recordDegradations(reply.Context.Trace.Sources)
	if err != nil {
		s.metrics.RecordChat("completion_failed", time.Since(start))
		// Completion failed; the assembled context still goes out so
		// clients can fall back to it.
		b := envelope.New().
			Data(ContextData{
				Block:  reply.Context.Block,
				Intent: reply.Context.Intent,
				Stage:  reply.Context.Stage,
			}).
			FromAssembly(&reply.Context)
		WriteEnvelopeError(w, b, err)
		return
	}
	s.metrics.RecordChat("ok", time.Since(start))

	if req.SessionID != "" {
		// Session writes are best effort; an expiry between the
		// history read and here does not fail the answer.
		if _, err := s.sessions.Append(req.SessionID, session.RoleUser, req.Message); err == nil {
			_, _ = s.sessions.Append(req.SessionID, session.RoleAssistant, reply.Text)
		}
	}

	b := envelope.New().
		Data(ChatData{
			Reply:     reply.Text,
			SessionID: req.SessionID,
			Intent:    reply.Context.Intent,
			Stage:     reply.Context.Stage,
		}).
		FromAssembly(&reply.Context)
	if st := s.assembler.Status(); st.Index != nil {
		b.WithIndex(*st.Index)
	}
	WriteJSON(w, b.Build(), http.StatusOK)
}

// handleIntent resolves a query against the taxonomy without
// assembling a block
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		BadRequest(w, "Missing required parameter: q")
		return
	}

	it := s.assembler.ResolveIntent(r.Context(), q)
	WriteJSON(w, envelope.Operational(IntentData{Query: q, Intent: it}), http.StatusOK)
}

// handleIndexRebuild starts a semantic index rebuild. A build already
// in flight is joined, not restarted.
func (s *Server) handleIndexRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.assembler.Status()
	if st.Index == nil {
		WriteMkbError(w, errors.New(errors.IndexNotReady, "semantic retrieval is not configured", nil))
		return
	}
	if st.Index.Building {
		s.metrics.RecordRebuild("coalesced")
		WriteJSON(w, envelope.Operational(RebuildData{Status: "building", Coalesced: true}), http.StatusOK)
		return
	}
	s.metrics.RecordRebuild("started")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
		defer cancel()
		if err := s.assembler.RebuildIndex(ctx); err != nil {
			s.logger.Error("Index rebuild failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	WriteJSON(w, envelope.Operational(RebuildData{Status: "started"}), http.StatusAccepted)
}

// handleSessionCreate starts a new conversation session
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := s.sessions.Create()
	WriteJSON(w, envelope.Operational(sess), http.StatusCreated)
}

// handleSession serves GET and DELETE on /session/:id
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/session/")
	if id == "" || strings.Contains(id, "/") {
		BadRequest(w, "Missing session id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		sess, err := s.sessions.Get(id)
		if err != nil {
			WriteMkbError(w, err)
			return
		}
		WriteJSON(w, envelope.Operational(sess), http.StatusOK)
	case http.MethodDelete:
		s.sessions.Delete(id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// toAIMessages converts stored session turns for the completion call.
func toAIMessages(messages []session.Message) []ai.Message {
	out := make([]ai.Message, len(messages))
	for i, m := range messages {
		out[i] = ai.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// cacheLabel names how the block cache answered, for metrics.
func cacheLabel(c assembler.CacheReport) string {
	switch {
	case c.Stale:
		return "stale"
	case c.Hit:
		return "hit"
	default:
		return "miss"
	}
}

// recordDegradations counts every non-fresh source outcome.
func (s *Server) recordDegradations(reports []assembler.SourceReport) {
	for _, r := range reports {
		switch r.Status {
		case assembler.StatusStale, assembler.StatusFallback, assembler.StatusUnavailable:
			s.metrics.RecordDegradation(r.Name, string(r.Status))
		}
	}
}
