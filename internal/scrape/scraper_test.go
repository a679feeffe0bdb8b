package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mkb/internal/testutil"
)

func registryFor(server *httptest.Server, sources ...Source) Registry {
	out := make([]Source, len(sources))
	for i, s := range sources {
		s.URL = server.URL + s.URL
		out[i] = s
	}
	return Registry{Sources: out}
}

func TestScraper_FetchAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guides":
			w.Write([]byte(`<html><body><nav>menu</nav><p>How to pick a data warehouse.</p></body></html>`))
		case "/news":
			w.Write([]byte(`<html><body><p>New analytics products this week.</p><script>track()</script></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	scraper := NewScraper(
		registryFor(server, Source{Name: "guides", URL: "/guides"}, Source{Name: "news", URL: "/news"}),
		Options{},
		testutil.NewFakeClock(),
		testutil.SilentLogger(),
	)

	contents := scraper.FetchAll(context.Background())
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(contents))
	}
	if contents[0].Source != "guides" || contents[1].Source != "news" {
		t.Errorf("sections out of registry order: %s, %s", contents[0].Source, contents[1].Source)
	}
	if contents[0].Text != "How to pick a data warehouse." {
		t.Errorf("guides text = %q", contents[0].Text)
	}
	if strings.Contains(contents[1].Text, "track()") {
		t.Errorf("script text leaked into %q", contents[1].Text)
	}
}

func TestScraper_CachesPerSourceTTL(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<body>cached page</body>`))
	}))
	defer server.Close()

	clock := testutil.NewFakeClock()
	scraper := NewScraper(
		registryFor(server, Source{Name: "page", URL: "/", TTLMinutes: 10}),
		Options{},
		clock,
		testutil.SilentLogger(),
	)

	scraper.FetchAll(context.Background())
	scraper.FetchAll(context.Background())
	if got := calls.Load(); got != 1 {
		t.Fatalf("fetches = %d, want 1 within the TTL", got)
	}

	clock.Advance(11 * time.Minute)
	scraper.FetchAll(context.Background())
	if got := calls.Load(); got != 2 {
		t.Errorf("fetches = %d, want refetch after TTL", got)
	}
}

func TestScraper_StaleServeAfterFailedRefresh(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`<body>editorial picks</body>`))
	}))
	defer server.Close()

	clock := testutil.NewFakeClock()
	scraper := NewScraper(
		registryFor(server, Source{Name: "picks", URL: "/", TTLMinutes: 30}),
		Options{},
		clock,
		testutil.SilentLogger(),
	)

	first := scraper.FetchAll(context.Background())
	if len(first) != 1 || first[0].Stale {
		t.Fatalf("first fetch = %+v, want one fresh section", first)
	}

	failing.Store(true)
	clock.Advance(31 * time.Minute)

	second := scraper.FetchAll(context.Background())
	if len(second) != 1 {
		t.Fatalf("len = %d, want the stale text served", len(second))
	}
	if !second[0].Stale {
		t.Error("section should be marked stale after a failed refresh")
	}
	if second[0].Text != "editorial picks" {
		t.Errorf("stale text = %q", second[0].Text)
	}
}

func TestScraper_FailingSourceSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/good" {
			w.Write([]byte(`<body>still here</body>`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	scraper := NewScraper(
		registryFor(server, Source{Name: "gone", URL: "/gone"}, Source{Name: "good", URL: "/good"}),
		Options{},
		testutil.NewFakeClock(),
		testutil.SilentLogger(),
	)

	contents := scraper.FetchAll(context.Background())
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want the failing source dropped", len(contents))
	}
	if contents[0].Source != "good" || contents[0].Text != "still here" {
		t.Errorf("contents[0] = %+v", contents[0])
	}
}

func TestScraper_PerSourceCharCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<body>" + strings.Repeat("verbose ", 50) + "</body>"))
	}))
	defer server.Close()

	scraper := NewScraper(
		registryFor(server, Source{Name: "tight", URL: "/", MaxChars: 15}),
		Options{MaxChars: 4000},
		testutil.NewFakeClock(),
		testutil.SilentLogger(),
	)

	contents := scraper.FetchAll(context.Background())
	if len(contents) != 1 {
		t.Fatal("expected one section")
	}
	if got := len([]rune(contents[0].Text)); got > 15 {
		t.Errorf("text length = %d runes, want the source cap honored", got)
	}
}

func TestScraper_SendsUserAgent(t *testing.T) {
	var agent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		w.Write([]byte(`<body>ok</body>`))
	}))
	defer server.Close()

	scraper := NewScraper(
		registryFor(server, Source{Name: "ua", URL: "/"}),
		Options{UserAgent: "mkb-test/9"},
		testutil.NewFakeClock(),
		testutil.SilentLogger(),
	)

	scraper.FetchAll(context.Background())
	if got := agent.Load(); got != "mkb-test/9" {
		t.Errorf("User-Agent = %v, want mkb-test/9", got)
	}
}
