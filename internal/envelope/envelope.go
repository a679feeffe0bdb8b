// Package envelope provides the standardized response wrapper for all
// API responses. Every payload is wrapped in a consistent envelope that
// includes metadata about confidence, data sources, freshness,
// truncation, caching, and warnings.
package envelope

import "mkb/internal/errors"

// ConfidenceTier represents the quality tier of an assembled result.
type ConfidenceTier string

const (
	// TierHigh indicates every source answered with fresh data.
	TierHigh ConfidenceTier = "high"
	// TierMedium indicates cached or stale data contributed.
	TierMedium ConfidenceTier = "medium"
	// TierLow indicates a source was missing or a fallback substituted.
	TierLow ConfidenceTier = "low"
	// TierDegraded indicates the catalog itself was unavailable.
	TierDegraded ConfidenceTier = "degraded"
)

// ConfidenceFactor explains one component of the confidence score.
type ConfidenceFactor struct {
	Factor string  `json:"factor"` // e.g., "catalog_source"
	Status string  `json:"status"` // e.g., "fresh", "stale", "unavailable"
	Impact float64 `json:"impact"` // contribution to score (-1.0 to 0.0)
}

// Confidence describes result quality.
type Confidence struct {
	Score   float64            `json:"score"`             // 0.0 - 1.0
	Tier    ConfidenceTier     `json:"tier"`              // high, medium, low, degraded
	Reasons []string           `json:"reasons,omitempty"` // why this tier
	Factors []ConfidenceFactor `json:"factors,omitempty"` // breakdown of score
}

// SourceInfo reports how one data source answered for this response.
type SourceInfo struct {
	Name   string `json:"name"`            // "catalog", "signals", "taxonomy", "content"
	Status string `json:"status"`          // "fresh", "cached", "stale", "fallback", "unavailable"
	Age    string `json:"age,omitempty"`   // cache age when served from cache
	Error  string `json:"error,omitempty"` // fetch error for degraded sources
}

// IndexInfo describes semantic index state.
type IndexInfo struct {
	Ready    bool   `json:"ready"`
	Building bool   `json:"building,omitempty"`
	Chunks   int    `json:"chunks,omitempty"`
	Stale    bool   `json:"stale,omitempty"`     // older than the staleness window
	LastErr  string `json:"lastError,omitempty"` // most recent build failure
}

// Freshness describes data currency.
type Freshness struct {
	Index *IndexInfo `json:"index,omitempty"`
}

// Truncation describes result trimming.
type Truncation struct {
	IsTruncated bool   `json:"isTruncated"`
	Shown       int    `json:"shown,omitempty"`  // items or sections returned
	Total       int    `json:"total,omitempty"`  // total available
	Reason      string `json:"reason,omitempty"` // "max-block-bytes", "max-products-per-section"
}

// CacheInfo describes block cache status for this response.
type CacheInfo struct {
	Hit   bool   `json:"hit"`             // true if served from cache
	Age   string `json:"age,omitempty"`   // if hit, how old (e.g., "2m30s")
	Key   string `json:"key,omitempty"`   // cache key for debugging
	Stale bool   `json:"stale,omitempty"` // served stale after a failed refresh
}

// Meta holds response metadata.
type Meta struct {
	Confidence *Confidence  `json:"confidence,omitempty"`
	Sources    []SourceInfo `json:"sources,omitempty"`
	Freshness  *Freshness   `json:"freshness,omitempty"`
	Truncation *Truncation  `json:"truncation,omitempty"`
	Cache      *CacheInfo   `json:"cache,omitempty"`
}

// Warning represents a non-fatal issue.
type Warning struct {
	Code    string `json:"code,omitempty"` // machine-readable code
	Message string `json:"message"`        // human-readable message
}

// ErrorInfo carries a failed request's stable code and suggested fixes.
type ErrorInfo struct {
	Code           string             `json:"code"`
	Message        string             `json:"message"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// Response is the standard envelope for all API responses.
type Response struct {
	SchemaVersion string      `json:"schemaVersion"`
	Data          interface{} `json:"data"`
	Meta          *Meta       `json:"meta,omitempty"`
	Warnings      []Warning   `json:"warnings,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
}

// CurrentSchemaVersion is the current envelope schema version.
const CurrentSchemaVersion = "1.0"
