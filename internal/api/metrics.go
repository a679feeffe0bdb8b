package api

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mkb/internal/cache"
	"mkb/internal/version"
)

// MetricsCollector collects and exposes Prometheus metrics for the
// pipeline: operation counters, duration histograms, and gauges
// projected from cache, session, and index state at scrape time.
type MetricsCollector struct {
	// Counters
	contextTotal        *Counter
	chatTotal           *Counter
	sourceDegradedTotal *Counter
	rebuildTotal        *Counter

	// Histograms
	contextDuration *Histogram
	chatDuration    *Histogram

	// Gauges
	cacheHitRate *Gauge
	sessions     *Gauge
	indexChunks  *Gauge
	goroutines   *Gauge
	memoryAlloc  *Gauge

	startTime time.Time
}

// Counter is a monotonically increasing counter
type Counter struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*uint64
}

// Histogram tracks distributions of values
type Histogram struct {
	name    string
	help    string
	labels  []string
	buckets []float64
	values  sync.Map // map[string]*histogramValue
}

type histogramValue struct {
	mu      sync.Mutex
	sum     float64
	count   uint64
	buckets []uint64
}

// Gauge is a metric that can go up and down
type Gauge struct {
	name   string
	help   string
	labels []string
	values sync.Map // map[string]*float64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	m := &MetricsCollector{
		startTime: time.Now(),
	}

	// Initialize counters
	m.contextTotal = &Counter{
		name:   "mkb_context_total",
		help:   "Total number of context assembly operations",
		labels: []string{"cache"},
	}

	m.chatTotal = &Counter{
		name:   "mkb_chat_total",
		help:   "Total number of answered chat turns",
		labels: []string{"outcome"},
	}

	m.sourceDegradedTotal = &Counter{
		name:   "mkb_source_degraded_total",
		help:   "Total number of degraded source outcomes",
		labels: []string{"source", "status"},
	}

	m.rebuildTotal = &Counter{
		name:   "mkb_index_rebuild_total",
		help:   "Total number of index rebuild requests",
		labels: []string{"state"},
	}

	// Initialize histograms
	defaultBuckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	m.contextDuration = &Histogram{
		name:    "mkb_context_duration_seconds",
		help:    "Duration of context assembly in seconds",
		labels:  []string{"cache"},
		buckets: defaultBuckets,
	}

	m.chatDuration = &Histogram{
		name:    "mkb_chat_duration_seconds",
		help:    "Duration of answered chat turns in seconds",
		labels:  []string{"outcome"},
		buckets: defaultBuckets,
	}

	// Initialize gauges
	m.cacheHitRate = &Gauge{
		name:   "mkb_cache_hit_rate",
		help:   "Cache hit rate per tier (0-1)",
		labels: []string{"tier"},
	}

	m.sessions = &Gauge{
		name:   "mkb_sessions_active",
		help:   "Number of live conversation sessions",
		labels: []string{},
	}

	m.indexChunks = &Gauge{
		name:   "mkb_index_chunks",
		help:   "Number of chunks in the semantic index",
		labels: []string{},
	}

	m.goroutines = &Gauge{
		name:   "mkb_goroutines",
		help:   "Number of goroutines",
		labels: []string{},
	}

	m.memoryAlloc = &Gauge{
		name:   "mkb_memory_alloc_bytes",
		help:   "Allocated memory in bytes",
		labels: []string{},
	}

	return m
}

// RecordContext records a context assembly operation
func (m *MetricsCollector) RecordContext(cacheStatus string, duration time.Duration) {
	m.contextTotal.Inc(cacheStatus)
	m.contextDuration.Observe(duration.Seconds(), cacheStatus)
}

// RecordChat records an answered chat turn
func (m *MetricsCollector) RecordChat(outcome string, duration time.Duration) {
	m.chatTotal.Inc(outcome)
	m.chatDuration.Observe(duration.Seconds(), outcome)
}

// RecordDegradation records a degraded source outcome
func (m *MetricsCollector) RecordDegradation(source, status string) {
	m.sourceDegradedTotal.Inc(source, status)
}

// RecordRebuild records an index rebuild request
func (m *MetricsCollector) RecordRebuild(state string) {
	m.rebuildTotal.Inc(state)
}

// SetCacheHitRate sets the hit rate for one cache tier
func (m *MetricsCollector) SetCacheHitRate(tier string, rate float64) {
	m.cacheHitRate.Set(rate, tier)
}

// SetSessions sets the live session count
func (m *MetricsCollector) SetSessions(count int) {
	m.sessions.Set(float64(count))
}

// SetIndexChunks sets the semantic index chunk count
func (m *MetricsCollector) SetIndexChunks(count int) {
	m.indexChunks.Set(float64(count))
}

// WritePrometheus writes metrics in Prometheus text format
func (m *MetricsCollector) WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Update runtime metrics
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryAlloc.Set(float64(memStats.Alloc))

	// Write process info
	fmt.Fprintf(w, "# HELP mkb_info MKB build information\n")
	fmt.Fprintf(w, "# TYPE mkb_info gauge\n")
	fmt.Fprintf(w, "mkb_info{version=\"%s\"} 1\n\n", version.Version)

	// Write uptime
	fmt.Fprintf(w, "# HELP mkb_uptime_seconds Time since MKB started\n")
	fmt.Fprintf(w, "# TYPE mkb_uptime_seconds counter\n")
	fmt.Fprintf(w, "mkb_uptime_seconds %.3f\n\n", time.Since(m.startTime).Seconds())

	// Write counters
	m.writeCounter(w, m.contextTotal)
	m.writeCounter(w, m.chatTotal)
	m.writeCounter(w, m.sourceDegradedTotal)
	m.writeCounter(w, m.rebuildTotal)

	// Write histograms
	m.writeHistogram(w, m.contextDuration)
	m.writeHistogram(w, m.chatDuration)

	// Write gauges
	m.writeGauge(w, m.cacheHitRate)
	m.writeGauge(w, m.sessions)
	m.writeGauge(w, m.indexChunks)
	m.writeGauge(w, m.goroutines)
	m.writeGauge(w, m.memoryAlloc)
}

func (m *MetricsCollector) writeCounter(w http.ResponseWriter, c *Counter) {
	fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(w, "# TYPE %s counter\n", c.name)

	var keys []string
	c.values.Range(func(key, value interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		val, _ := c.values.Load(key)
		if ptr, ok := val.(*uint64); ok {
			fmt.Fprintf(w, "%s%s %d\n", c.name, key, atomic.LoadUint64(ptr))
		}
	}
	fmt.Fprintln(w)
}

func (m *MetricsCollector) writeHistogram(w http.ResponseWriter, h *Histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)

	var keys []string
	h.values.Range(func(key, value interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		val, _ := h.values.Load(key)
		if hv, ok := val.(*histogramValue); ok {
			hv.mu.Lock()
			// Write bucket counts
			cumulative := uint64(0)
			for i, bucket := range h.buckets {
				cumulative += hv.buckets[i]
				bucketLabel := key
				if bucketLabel != "" {
					bucketLabel = bucketLabel[:len(bucketLabel)-1] + fmt.Sprintf(",le=\"%.3f\"}", bucket)
				} else {
					bucketLabel = fmt.Sprintf("{le=\"%.3f\"}", bucket)
				}
				fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, bucketLabel, cumulative)
			}
			// +Inf bucket
			cumulative += hv.buckets[len(h.buckets)]
			infLabel := key
			if infLabel != "" {
				infLabel = infLabel[:len(infLabel)-1] + ",le=\"+Inf\"}"
			} else {
				infLabel = "{le=\"+Inf\"}"
			}
			fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, infLabel, cumulative)

			// Sum and count
			fmt.Fprintf(w, "%s_sum%s %.6f\n", h.name, key, hv.sum)
			fmt.Fprintf(w, "%s_count%s %d\n", h.name, key, hv.count)
			hv.mu.Unlock()
		}
	}
	fmt.Fprintln(w)
}

func (m *MetricsCollector) writeGauge(w http.ResponseWriter, g *Gauge) {
	fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)

	var keys []string
	g.values.Range(func(key, value interface{}) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		val, _ := g.values.Load(key)
		if ptr, ok := val.(*float64); ok {
			fmt.Fprintf(w, "%s%s %.6f\n", g.name, key, *ptr)
		}
	}
	fmt.Fprintln(w)
}

// Counter methods
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

func (c *Counter) Add(delta uint64, labelValues ...string) {
	key := c.labelsToKey(labelValues)
	val, _ := c.values.LoadOrStore(key, new(uint64))
	atomic.AddUint64(val.(*uint64), delta)
}

func (c *Counter) labelsToKey(values []string) string {
	return labelsToKey(c.labels, values)
}

// Histogram methods
func (h *Histogram) Observe(value float64, labelValues ...string) {
	key := h.labelsToKey(labelValues)

	val, _ := h.values.LoadOrStore(key, &histogramValue{
		buckets: make([]uint64, len(h.buckets)+1), // +1 for +Inf
	})
	hv := val.(*histogramValue)

	hv.mu.Lock()
	defer hv.mu.Unlock()

	hv.sum += value
	hv.count++

	// Find bucket
	bucketIdx := len(h.buckets) // Default to +Inf
	for i, bound := range h.buckets {
		if value <= bound {
			bucketIdx = i
			break
		}
	}
	hv.buckets[bucketIdx]++
}

func (h *Histogram) labelsToKey(values []string) string {
	return labelsToKey(h.labels, values)
}

// Gauge methods
func (g *Gauge) Set(value float64, labelValues ...string) {
	key := g.labelsToKey(labelValues)
	ptr := new(float64)
	*ptr = value
	g.values.Store(key, ptr)
}

func (g *Gauge) labelsToKey(values []string) string {
	return labelsToKey(g.labels, values)
}

// labelsToKey renders ordered label pairs as a Prometheus label block
func labelsToKey(labels, values []string) string {
	if len(labels) == 0 || len(values) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(labels))
	for i, label := range labels {
		if i < len(values) {
			pairs = append(pairs, fmt.Sprintf("%s=\"%s\"", label, values[i]))
		}
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// handleMetrics handles the /metrics endpoint
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.refreshPipelineGauges()
	s.metrics.WritePrometheus(w)
}

// refreshPipelineGauges projects current cache, session, and index
// state into the gauges before a scrape.
func (s *Server) refreshPipelineGauges() {
	st := s.assembler.Status()
	for tier, cs := range st.Catalog {
		s.metrics.SetCacheHitRate(tier, hitRate(cs))
	}
	s.metrics.SetCacheHitRate("taxonomy", hitRate(st.Taxonomy))
	s.metrics.SetCacheHitRate("blocks", hitRate(st.Blocks))
	if st.Content != nil {
		s.metrics.SetCacheHitRate("content", hitRate(*st.Content))
	}
	if st.Index != nil {
		s.metrics.SetIndexChunks(st.Index.Chunks)
	}
	s.metrics.SetSessions(s.sessions.Len())
}

func hitRate(cs cache.Stats) float64 {
	total := cs.Hits + cs.Misses
	if total == 0 {
		return 0
	}
	return float64(cs.Hits) / float64(total)
}
