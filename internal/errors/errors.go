package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// SourceUnavailable indicates an upstream data source is unreachable
	SourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	// SourceTimeout indicates an upstream fetch exceeded its budget
	SourceTimeout ErrorCode = "SOURCE_TIMEOUT"
	// BadEnvelope indicates an upstream response had no recognizable shape
	BadEnvelope ErrorCode = "BAD_ENVELOPE"
	// KnowledgeEmpty indicates no catalog data exists, cached or live
	KnowledgeEmpty ErrorCode = "KNOWLEDGE_EMPTY"
	// IndexNotReady indicates the vector index has not been built yet
	IndexNotReady ErrorCode = "INDEX_NOT_READY"
	// IndexBuilding indicates a vector index build is already in flight
	IndexBuilding ErrorCode = "INDEX_BUILDING"
	// EmbeddingsUnavailable indicates the embedding service failed
	EmbeddingsUnavailable ErrorCode = "EMBEDDINGS_UNAVAILABLE"
	// CompletionFailed indicates the completion service returned an error
	CompletionFailed ErrorCode = "COMPLETION_FAILED"
	// SessionNotFound indicates the session id is unknown or expired
	SessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// InvalidRequest indicates a malformed request body or parameter
	InvalidRequest ErrorCode = "INVALID_REQUEST"
	// BudgetExceeded indicates a response hit its size limits
	BudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// CheckConfig suggests inspecting a configuration value
	CheckConfig FixActionType = "check-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Setting     string        `json:"setting,omitempty"`
}

// MkbError represents an MKB error with code, message, and suggestions
type MkbError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewMkbError creates a new MkbError
func NewMkbError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *MkbError {
	return &MkbError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// New creates a MkbError with the default suggested fixes for its code.
func New(code ErrorCode, message string, cause error) *MkbError {
	return NewMkbError(code, message, cause, GetSuggestedFixes(code))
}

// Error implements the error interface
func (e *MkbError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MkbError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *MkbError) WithDetails(details interface{}) *MkbError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	SourceUnavailable: {
		{
			Type:        RunCommand,
			Command:     "mkb status",
			Safe:        true,
			Description: "Check data source reachability and cache freshness",
		},
	},
	SourceTimeout: {
		{
			Type:        CheckConfig,
			Setting:     "timeouts",
			Description: "Raise the per-source timeout budget if the source is consistently slow",
		},
	},
	KnowledgeEmpty: {
		{
			Type:        RunCommand,
			Command:     "mkb status",
			Safe:        true,
			Description: "Verify the catalog source URL and credentials",
		},
	},
	IndexNotReady: {
		{
			Type:        RunCommand,
			Command:     "mkb index --rebuild",
			Safe:        true,
			Description: "Build the semantic index",
		},
	},
	EmbeddingsUnavailable: {
		{
			Type:        CheckConfig,
			Setting:     "ai.embeddingDeployment",
			Description: "Check the embedding deployment name and endpoint",
		},
	},
	CompletionFailed: {
		{
			Type:        CheckConfig,
			Setting:     "ai.completionDeployment",
			Description: "Check the completion deployment name and endpoint",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a MkbError.
// Unknown errors report InternalError.
func CodeOf(err error) ErrorCode {
	var me *MkbError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return InternalError
}

// Is reports whether err is (or wraps) a MkbError carrying the given code.
func Is(err error, code ErrorCode) bool {
	var me *MkbError
	if stderrors.As(err, &me) {
		return me.Code == code
	}
	return false
}
