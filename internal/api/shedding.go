package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// LoadSheddingConfig contains load shedding configuration
type LoadSheddingConfig struct {
	// Enabled enables load shedding
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// MaxConcurrentRequests is the maximum number of concurrent requests
	MaxConcurrentRequests int `json:"maxConcurrentRequests" mapstructure:"maxConcurrentRequests"`
	// QueueSize is the size of the request queue
	QueueSize int `json:"queueSize" mapstructure:"queueSize"`
	// QueueTimeout is how long to wait in queue before rejecting
	QueueTimeout time.Duration `json:"queueTimeout" mapstructure:"queueTimeout"`
	// PriorityEndpoints are endpoints that should never be shed
	PriorityEndpoints []string `json:"priorityEndpoints" mapstructure:"priorityEndpoints"`
	// RetryAfterSeconds is the value for the Retry-After header
	RetryAfterSeconds int `json:"retryAfterSeconds" mapstructure:"retryAfterSeconds"`
}

// DefaultLoadSheddingConfig returns default load shedding configuration
func DefaultLoadSheddingConfig() LoadSheddingConfig {
	return LoadSheddingConfig{
		Enabled:               false, // Disabled by default
		MaxConcurrentRequests: 100,
		QueueSize:             50,
		QueueTimeout:          5 * time.Second,
		PriorityEndpoints: []string{
			"/health",
			"/ready",
			"/metrics",
		},
		RetryAfterSeconds: 5,
	}
}

// LoadShedder rejects assembly traffic past a concurrency cap so the
// pipeline degrades with fast 503s instead of queueing without bound.
// Probe endpoints bypass it.
type LoadShedder struct {
	config LoadSheddingConfig

	// Current state
	inFlight     int64
	queueLength  int64
	totalShed    uint64
	lastShedTime atomic.Value // time.Time

	// Semaphore for concurrency control
	semaphore chan struct{}
	// Queue for waiting requests
	queue chan struct{}
}

// NewLoadShedder creates a new load shedder
func NewLoadShedder(config LoadSheddingConfig) *LoadShedder {
	ls := &LoadShedder{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrentRequests),
		queue:     make(chan struct{}, config.QueueSize),
	}
	ls.lastShedTime.Store(time.Time{})
	return ls
}

// Acquire tries to acquire a slot for processing a request.
// Returns true if the request can proceed, false if it should be rejected.
func (ls *LoadShedder) Acquire(endpoint string, timeout time.Duration) bool {
	// Check if this is a priority endpoint
	if ls.isPriorityEndpoint(endpoint) {
		return true
	}

	// Try to acquire immediately
	select {
	case ls.semaphore <- struct{}{}:
		atomic.AddInt64(&ls.inFlight, 1)
		return true
	default:
		// Semaphore is full, try to queue
	}

	// Try to enter queue
	select {
	case ls.queue <- struct{}{}:
		atomic.AddInt64(&ls.queueLength, 1)
		defer func() {
			<-ls.queue
			atomic.AddInt64(&ls.queueLength, -1)
		}()
	default:
		// Queue is full, shed immediately
		ls.recordShed()
		return false
	}

	// Wait in queue for a slot
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ls.semaphore <- struct{}{}:
		atomic.AddInt64(&ls.inFlight, 1)
		return true
	case <-timer.C:
		// Timeout waiting in queue
		ls.recordShed()
		return false
	}
}

// Release releases a slot after processing is complete.
func (ls *LoadShedder) Release(endpoint string) {
	// Priority endpoints don't hold slots
	if ls.isPriorityEndpoint(endpoint) {
		return
	}

	select {
	case <-ls.semaphore:
		atomic.AddInt64(&ls.inFlight, -1)
	default:
		// Should not happen, but don't block
	}
}

// Stats returns current load shedding statistics
func (ls *LoadShedder) Stats() LoadSheddingStats {
	lastShed, _ := ls.lastShedTime.Load().(time.Time)
	return LoadSheddingStats{
		InFlight:      atomic.LoadInt64(&ls.inFlight),
		QueueLength:   atomic.LoadInt64(&ls.queueLength),
		MaxConcurrent: ls.config.MaxConcurrentRequests,
		MaxQueue:      ls.config.QueueSize,
		TotalShed:     atomic.LoadUint64(&ls.totalShed),
		LastShedTime:  lastShed,
		Enabled:       ls.config.Enabled,
	}
}

// LoadSheddingStats contains load shedding statistics
type LoadSheddingStats struct {
	InFlight      int64     `json:"inFlight"`
	QueueLength   int64     `json:"queueLength"`
	MaxConcurrent int       `json:"maxConcurrent"`
	MaxQueue      int       `json:"maxQueue"`
	TotalShed     uint64    `json:"totalShed"`
	LastShedTime  time.Time `json:"lastShedTime,omitempty"`
	Enabled       bool      `json:"enabled"`
}

func (ls *LoadShedder) isPriorityEndpoint(endpoint string) bool {
	for _, priority := range ls.config.PriorityEndpoints {
		if strings.HasPrefix(endpoint, priority) {
			return true
		}
	}
	return false
}

func (ls *LoadShedder) recordShed() {
	atomic.AddUint64(&ls.totalShed, 1)
	ls.lastShedTime.Store(time.Now())
}

// Middleware wraps a handler with load shedding
func (ls *LoadShedder) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ls.Acquire(r.URL.Path, ls.config.QueueTimeout) {
				// Request was shed
				w.Header().Set("Retry-After", strconv.Itoa(ls.config.RetryAfterSeconds))
				w.Header().Set("X-Load-Shed", "true")
				http.Error(w, "Service temporarily overloaded. Please retry.", http.StatusServiceUnavailable)
				return
			}

			defer ls.Release(r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
