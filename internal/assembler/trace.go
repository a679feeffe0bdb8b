package assembler

import (
	"time"

	"mkb/internal/cache"
	"mkb/internal/funnel"
	"mkb/internal/intent"
)

// SourceStatus describes how one data source answered during a
// request.
type SourceStatus string

const (
	// StatusFresh means the source was fetched live this request.
	StatusFresh SourceStatus = "fresh"
	// StatusCached means the TTL cache answered without I/O.
	StatusCached SourceStatus = "cached"
	// StatusStale means a refresh failed and the previous data served.
	StatusStale SourceStatus = "stale"
	// StatusFallback means embedded static data substituted.
	StatusFallback SourceStatus = "fallback"
	// StatusUnavailable means the source had nothing to serve at all.
	StatusUnavailable SourceStatus = "unavailable"
)

// SourceReport is one source's outcome for a request.
type SourceReport struct {
	Name   string       `json:"name"`
	Status SourceStatus `json:"status"`
	Age    string       `json:"age,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// CacheReport describes how the assembled-block cache answered.
type CacheReport struct {
	Hit   bool          `json:"hit"`
	Age   time.Duration `json:"age,omitempty"`
	Stale bool          `json:"stale,omitempty"`
	Key   string        `json:"key,omitempty"`
}

// Truncation records what budget trimming did to the block.
type Truncation struct {
	Truncated bool   `json:"truncated"`
	Shown     int    `json:"shown,omitempty"`
	Total     int    `json:"total,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Trace carries everything a response envelope needs to explain how
// the block was put together.
type Trace struct {
	Sources    []SourceReport `json:"sources"`
	Cache      CacheReport    `json:"cache"`
	Truncation Truncation     `json:"truncation"`
	IndexReady bool           `json:"indexReady"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// Result is one assembled context block with its classification and
// trace.
type Result struct {
	Block  string        `json:"block"`
	Intent intent.Intent `json:"intent"`
	Stage  funnel.State  `json:"stage"`
	Trace  Trace         `json:"trace"`
}

// reportFor translates a cache result into a source report.
func reportFor[T any](name string, res cache.Result[T], err error) SourceReport {
	report := SourceReport{Name: name}
	switch {
	case err != nil:
		report.Status = StatusUnavailable
		report.Error = err.Error()
	case res.Stale:
		report.Status = StatusStale
		report.Age = res.Age.String()
		if res.FetchErr != nil {
			report.Error = res.FetchErr.Error()
		}
	case res.Hit:
		report.Status = StatusCached
		report.Age = res.Age.String()
	default:
		report.Status = StatusFresh
	}
	return report
}
