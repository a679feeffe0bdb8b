package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mkb/internal/ai"
	"mkb/internal/assembler"
	"mkb/internal/catalog"
	"mkb/internal/chat"
	"mkb/internal/errors"
	"mkb/internal/logging"
	"mkb/internal/semantic"
	"mkb/internal/session"
	"mkb/internal/taxonomy"
)

// fakeCatalog is a scripted catalog.Source.
type fakeCatalog struct {
	products []catalog.Product
	signals  catalog.Signals
	err      error
}

func (f *fakeCatalog) FetchProducts(ctx context.Context) ([]catalog.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeCatalog) FetchSignals(ctx context.Context) (catalog.Signals, error) {
	if f.err != nil {
		return catalog.Signals{}, f.err
	}
	return f.signals, nil
}

// fakeTaxonomy is a scripted taxonomy.Source.
type fakeTaxonomy struct {
	tree taxonomy.Tree
	err  error
}

func (f *fakeTaxonomy) FetchTree(ctx context.Context) (taxonomy.Tree, error) {
	if f.err != nil {
		return taxonomy.Tree{}, f.err
	}
	return f.tree, nil
}

// fakeCompleter is a scripted completion service.
type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, messages []ai.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeEmbedder returns fixed-dimension vectors so index builds succeed.
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), 1, 0.5}
	}
	return out, nil
}

type serverOptions struct {
	catalogErr   error
	completerErr error
	withIndex    bool
	shedding     LoadSheddingConfig
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, serverOptions{})
}

func newTestServerWith(t *testing.T, opts serverOptions) *Server {
	t.Helper()

	logger := logging.NewLogger(logging.Config{
		Level:  logging.ErrorLevel,
		Format: logging.JSONFormat,
		Output: io.Discard,
	})

	source := &fakeCatalog{
		err: opts.catalogErr,
		products: []catalog.Product{
			{ID: "crm-1", Name: "PipelinePro CRM", Vendor: "Acme", Category: "CRM", CategoryID: "crm", Description: "Sales pipeline tracking for busy teams."},
			{ID: "acct-1", Name: "LedgerLite", Vendor: "Beta Soft", Category: "Accounting", CategoryID: "accounting", Description: "Bookkeeping for small companies."},
		},
		signals: catalog.Signals{
			Featured:    []string{"crm-1"},
			BestSelling: []string{"acct-1"},
		},
	}
	tree := &fakeTaxonomy{tree: taxonomy.Tree{
		Categories: []taxonomy.Category{
			{ID: "crm", Name: "CRM", Keywords: []string{"crm", "pipeline", "sales tracking"}},
			{ID: "accounting", Name: "Accounting", Keywords: []string{"accounting", "bookkeeping"}},
		},
		OEMs: []taxonomy.OEM{
			{ID: "acme", Name: "Acme", Keywords: []string{"acme"}},
		},
	}}

	loader := catalog.NewLoader(source, catalog.TTLs{Products: time.Hour, Signals: time.Hour}, nil, logger)
	fetcher := taxonomy.NewFetcher(tree, time.Hour, nil, logger)

	deps := assembler.Deps{Catalog: loader, Taxonomy: fetcher}
	if opts.withIndex {
		deps.Index = semantic.NewIndex(fakeEmbedder{}, semantic.Config{}, nil, logger)
	}
	asm := assembler.New(deps, assembler.Config{}, nil, logger)

	pipeline := chat.New(asm, &fakeCompleter{reply: "PipelinePro CRM fits that need.", err: opts.completerErr}, logger)
	sessions := session.NewStore(session.Config{}, nil, logger)

	return NewServer(":0", Deps{
		Assembler: asm,
		Pipeline:  pipeline,
		Sessions:  sessions,
		Shedding:  opts.shedding,
	}, logger)
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response body: %v\nbody: %s", err, w.Body.String())
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", body["status"])
	}
	if body["version"] == "" {
		t.Error("Expected version to be set")
	}
	if body["timestamp"] == nil {
		t.Error("Expected timestamp to be set")
	}
}

func TestReadyEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["status"] != "ready" {
		t.Errorf("Expected status 'ready', got %v", body["status"])
	}
	sources, ok := body["sources"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected sources map in response")
	}
	if sources["catalog"] != true {
		t.Errorf("Expected catalog source ready, got %v", sources["catalog"])
	}
}

func TestReadyEndpointCatalogDown(t *testing.T) {
	server := newTestServerWith(t, serverOptions{
		catalogErr: errors.New(errors.SourceUnavailable, "catalog api is down", nil),
	})

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["status"] != "not_ready" {
		t.Errorf("Expected status 'not_ready', got %v", body["status"])
	}
	sources, ok := body["sources"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected sources map in response")
	}
	if sources["catalog"] != false {
		t.Errorf("Expected catalog source not ready, got %v", sources["catalog"])
	}
}

func TestRootEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["name"] != "MKB HTTP API" {
		t.Errorf("Expected name 'MKB HTTP API', got %v", body["name"])
	}
	endpoints, ok := body["endpoints"].([]interface{})
	if !ok || len(endpoints) == 0 {
		t.Fatal("Expected endpoints list in response")
	}
	listing := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		listing = append(listing, e.(string))
	}
	joined := strings.Join(listing, "\n")
	for _, path := range []string{"/health", "/context", "/chat", "/metrics"} {
		if !strings.Contains(joined, path) {
			t.Errorf("Expected endpoint %s in listing", path)
		}
	}
}

func TestNotFound(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"GET", "/context"},
		{"GET", "/chat"},
		{"DELETE", "/intent"},
		{"GET", "/index/rebuild"},
		{"PUT", "/session"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected status 405, got %d", w.Code)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %v", body["status"])
	}
	if _, ok := body["caches"].(map[string]interface{}); !ok {
		t.Error("Expected caches object in response")
	}
	completion, ok := body["completion"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected completion object in response")
	}
	if completion["state"] != "closed" {
		t.Errorf("Expected completion circuit 'closed', got %v", completion["state"])
	}
	if sessions, ok := body["sessions"].(float64); !ok || sessions != 0 {
		t.Errorf("Expected 0 active sessions, got %v", body["sessions"])
	}
	if _, present := body["load"]; present {
		t.Error("Expected no load stats when shedding is disabled")
	}
}

func TestStatusEndpointWithShedding(t *testing.T) {
	server := newTestServerWith(t, serverOptions{
		shedding: LoadSheddingConfig{
			Enabled:               true,
			MaxConcurrentRequests: 8,
			QueueSize:             4,
			QueueTimeout:          time.Second,
			RetryAfterSeconds:     1,
		},
	})

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	load, ok := body["load"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected load stats when shedding is enabled")
	}
	if load["enabled"] != true {
		t.Errorf("Expected shedding enabled, got %v", load["enabled"])
	}
	if load["maxConcurrent"] != float64(8) {
		t.Errorf("Expected maxConcurrent 8, got %v", load["maxConcurrent"])
	}
}

func TestContextEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server, "/context", map[string]interface{}{
		"query": "I need a CRM for my sales team",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["schemaVersion"] == nil {
		t.Error("Expected schemaVersion in envelope")
	}

	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected data object in envelope")
	}
	block, _ := data["block"].(string)
	if block == "" {
		t.Fatal("Expected non-empty context block")
	}
	if !strings.Contains(block, "PipelinePro CRM") {
		t.Error("Expected featured product in context block")
	}
	intentData, ok := data["intent"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected intent object in data")
	}
	if intentData["categoryId"] != "crm" {
		t.Errorf("Expected category 'crm', got %v", intentData["categoryId"])
	}

	meta, ok := body["meta"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected meta object in envelope")
	}
	if _, ok := meta["confidence"].(map[string]interface{}); !ok {
		t.Error("Expected confidence in meta")
	}
	sources, ok := meta["sources"].([]interface{})
	if !ok || len(sources) == 0 {
		t.Error("Expected per-source reports in meta")
	}
}

func TestContextEndpointValidation(t *testing.T) {
	server := newTestServer(t)

	t.Run("missing query", func(t *testing.T) {
		w := postJSON(t, server, "/context", map[string]interface{}{})

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
		body := decodeBody(t, w)
		if body["code"] != "INVALID_REQUEST" {
			t.Errorf("Expected code INVALID_REQUEST, got %v", body["code"])
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/context", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestChatEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server, "/chat", map[string]interface{}{
		"message": "recommend a crm",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected data object in envelope")
	}
	if data["reply"] != "PipelinePro CRM fits that need." {
		t.Errorf("Unexpected reply: %v", data["reply"])
	}
	if _, present := data["sessionId"]; present {
		t.Error("Expected no sessionId when chatting without a session")
	}
	if _, ok := data["intent"].(map[string]interface{}); !ok {
		t.Error("Expected intent in chat data")
	}
	if _, ok := body["meta"].(map[string]interface{}); !ok {
		t.Error("Expected meta in chat envelope")
	}
}

func TestChatEndpointWithSession(t *testing.T) {
	server := newTestServer(t)

	created := postJSON(t, server, "/session", nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", created.Code)
	}
	createdBody := decodeBody(t, created)
	sessData, ok := createdBody["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected session data in envelope")
	}
	id, _ := sessData["id"].(string)
	if id == "" {
		t.Fatal("Expected session id")
	}

	w := postJSON(t, server, "/chat", map[string]interface{}{
		"message":   "recommend a crm",
		"sessionId": id,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	if data["sessionId"] != id {
		t.Errorf("Expected sessionId %q echoed, got %v", id, data["sessionId"])
	}

	req := httptest.NewRequest("GET", "/session/"+id, nil)
	got := httptest.NewRecorder()
	server.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", got.Code)
	}
	sessBody := decodeBody(t, got)
	stored := sessBody["data"].(map[string]interface{})
	messages, ok := stored["messages"].([]interface{})
	if !ok || len(messages) != 2 {
		t.Fatalf("Expected 2 stored messages, got %v", stored["messages"])
	}
	first := messages[0].(map[string]interface{})
	second := messages[1].(map[string]interface{})
	if first["role"] != "user" || second["role"] != "assistant" {
		t.Errorf("Expected user then assistant turns, got %v then %v", first["role"], second["role"])
	}
	if second["content"] != "PipelinePro CRM fits that need." {
		t.Errorf("Unexpected stored reply: %v", second["content"])
	}
}

func TestChatEndpointUnknownSession(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server, "/chat", map[string]interface{}{
		"message":   "hello",
		"sessionId": "01JXJ0000000000000000000AA",
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["code"] != "SESSION_NOT_FOUND" {
		t.Errorf("Expected code SESSION_NOT_FOUND, got %v", body["code"])
	}
}

func TestChatEndpointCompletionFailure(t *testing.T) {
	server := newTestServerWith(t, serverOptions{
		completerErr: errors.New(errors.CompletionFailed, "model overloaded", nil),
	})

	w := postJSON(t, server, "/chat", map[string]interface{}{
		"message": "recommend a crm",
	})

	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	errInfo, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected error object in envelope")
	}
	if errInfo["code"] != "COMPLETION_FAILED" {
		t.Errorf("Expected code COMPLETION_FAILED, got %v", errInfo["code"])
	}

	// The assembled context still ships so the caller can fall back.
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected data object despite completion failure")
	}
	if block, _ := data["block"].(string); block == "" {
		t.Error("Expected context block despite completion failure")
	}
}

func TestChatEndpointValidation(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server, "/chat", map[string]interface{}{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestIntentEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/intent?q=acme+crm", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected data object in envelope")
	}
	if data["query"] != "acme crm" {
		t.Errorf("Expected query echoed, got %v", data["query"])
	}
	intentData, ok := data["intent"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected intent object in data")
	}
	if intentData["categoryId"] != "crm" {
		t.Errorf("Expected category 'crm', got %v", intentData["categoryId"])
	}
	if intentData["oemId"] != "acme" {
		t.Errorf("Expected OEM 'acme', got %v", intentData["oemId"])
	}
}

func TestIntentEndpointMissingQuery(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/intent", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestIndexRebuildNotConfigured(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server, "/index/rebuild", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["code"] != "INDEX_NOT_READY" {
		t.Errorf("Expected code INDEX_NOT_READY, got %v", body["code"])
	}
}

func TestIndexRebuild(t *testing.T) {
	server := newTestServerWith(t, serverOptions{withIndex: true})

	w := postJSON(t, server, "/index/rebuild", nil)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected data object in envelope")
	}
	if data["status"] != "started" {
		t.Errorf("Expected status 'started', got %v", data["status"])
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		st := server.assembler.Status()
		if st.Index != nil && st.Index.Ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Index never became ready, stats: %+v", st.Index)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionLifecycle(t *testing.T) {
	server := newTestServer(t)

	created := postJSON(t, server, "/session", nil)
	if created.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", created.Code)
	}
	body := decodeBody(t, created)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected session data in envelope")
	}
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatal("Expected session id")
	}

	req := httptest.NewRequest("GET", "/session/"+id, nil)
	got := httptest.NewRecorder()
	server.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", got.Code)
	}

	req = httptest.NewRequest("DELETE", "/session/"+id, nil)
	deleted := httptest.NewRecorder()
	server.ServeHTTP(deleted, req)
	if deleted.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", deleted.Code)
	}

	req = httptest.NewRequest("GET", "/session/"+id, nil)
	gone := httptest.NewRecorder()
	server.ServeHTTP(gone, req)
	if gone.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", gone.Code)
	}
}

func TestSessionMissingID(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/session/", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/openapi.json", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	body := decodeBody(t, w)
	if body["openapi"] != "3.0.0" {
		t.Errorf("Expected OpenAPI version 3.0.0, got %v", body["openapi"])
	}
	paths, ok := body["paths"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected paths in spec")
	}
	for _, path := range []string{"/context", "/chat", "/intent", "/session/{id}"} {
		if _, exists := paths[path]; !exists {
			t.Errorf("Expected path %s in spec", path)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	// One context call so the counters have something to show.
	if w := postJSON(t, server, "/context", map[string]interface{}{"query": "crm"}); w.Code != http.StatusOK {
		t.Fatalf("Context request failed: %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Expected text/plain content type, got %s", ct)
	}

	out := w.Body.String()
	for _, metric := range []string{"mkb_info", "mkb_uptime_seconds", "mkb_context_total", "mkb_goroutines"} {
		if !strings.Contains(out, metric) {
			t.Errorf("Expected metric %s in output", metric)
		}
	}
}

func TestGzipCompression(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/openapi.json", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Expected gzip encoding, got %q", enc)
	}

	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Failed to open gzip reader: %v", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to decompress body: %v", err)
	}
	var spec map[string]interface{}
	if err := json.Unmarshal(raw, &spec); err != nil {
		t.Fatalf("Failed to parse decompressed spec: %v", err)
	}
	if spec["openapi"] != "3.0.0" {
		t.Errorf("Expected OpenAPI spec after decompression, got %v", spec["openapi"])
	}
}

func TestCORSHeaders(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/context", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for preflight, got %d", w.Code)
	}
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Expected wildcard CORS origin, got %q", origin)
	}
}
