package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"mkb/internal/envelope"
	"mkb/internal/errors"
)

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error          string             `json:"error"`
	Code           string             `json:"code"`
	Details        interface{}        `json:"details,omitempty"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := ErrorResponse{
		Error: err.Error(),
	}

	// If it's a MkbError, include additional information
	var me *errors.MkbError
	if stderrors.As(err, &me) {
		resp.Code = string(me.Code)
		resp.Details = me.Details
		resp.SuggestedFixes = me.SuggestedFixes
	} else {
		resp.Code = string(errors.InternalError)
	}

	json.NewEncoder(w).Encode(resp)
}

// WriteMkbError writes a typed error with automatic status code mapping
func WriteMkbError(w http.ResponseWriter, err error) {
	WriteError(w, err, MapMkbErrorToStatus(errors.CodeOf(err)))
}

// WriteEnvelopeError writes an envelope-wrapped error with automatic
// status code mapping, for endpoints whose success responses are
// envelopes. The builder may already carry assembled data.
func WriteEnvelopeError(w http.ResponseWriter, b *envelope.Builder, err error) {
	WriteJSON(w, b.Error(err).Build(), MapMkbErrorToStatus(errors.CodeOf(err)))
}

// MapMkbErrorToStatus maps pipeline error codes to HTTP status codes
func MapMkbErrorToStatus(code errors.ErrorCode) int {
	switch code {
	case errors.SourceTimeout:
		return http.StatusGatewayTimeout // 504
	case errors.SourceUnavailable:
		return http.StatusServiceUnavailable // 503
	case errors.KnowledgeEmpty:
		return http.StatusServiceUnavailable // 503
	case errors.IndexNotReady:
		return http.StatusServiceUnavailable // 503
	case errors.IndexBuilding:
		return http.StatusConflict // 409
	case errors.EmbeddingsUnavailable:
		return http.StatusServiceUnavailable // 503
	case errors.CompletionFailed:
		return http.StatusBadGateway // 502
	case errors.BadEnvelope:
		return http.StatusUnprocessableEntity // 422
	case errors.SessionNotFound:
		return http.StatusNotFound // 404
	case errors.InvalidRequest:
		return http.StatusBadRequest // 400
	case errors.BudgetExceeded:
		return http.StatusRequestEntityTooLarge // 413
	case errors.InternalError:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 Bad Request error
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, errors.New(errors.InvalidRequest, message, nil), http.StatusBadRequest)
}

// InternalError writes a 500 Internal Server Error
func InternalError(w http.ResponseWriter, message string, err error) {
	WriteError(w, errors.New(errors.InternalError, message, err), http.StatusInternalServerError)
}
