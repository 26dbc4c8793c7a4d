// Package response writes the uniform JSON envelopes used by every endpoint.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Error codes returned to clients. HTTP status is derived from the code via
// the lookup table below; unknown codes map to 500.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	CodeStorageQuota = "STORAGE_QUOTA"
	CodeInternal     = "INTERNAL_ERROR"
	CodeDegraded     = "DEGRADED"
)

var codeStatus = map[string]int{
	CodeValidation:   http.StatusBadRequest,
	CodeInvalidToken: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeRateLimited:  http.StatusTooManyRequests,
	CodeStorageQuota: http.StatusInsufficientStorage,
	CodeInternal:     http.StatusInternalServerError,
	CodeDegraded:     http.StatusServiceUnavailable,
}

// StatusForCode returns the HTTP status for an error code, 500 for unknown.
func StatusForCode(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error     errorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Path      string    `json:"path,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PaginationMeta describes a page of a fully-computed result set.
type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPaginationMeta derives full pagination metadata from page/limit/total.
func NewPaginationMeta(page, limit, total int) PaginationMeta {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (total + limit - 1) / limit
	return PaginationMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	}
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

// Document writes a composite result as the top-level JSON body, without the
// data envelope. The analytical endpoints return documents that carry their
// own summary and pagination sections.
func Document(w http.ResponseWriter, doc any) {
	writeJSON(w, http.StatusOK, doc)
}

// Error writes the uniform error payload. Status is derived from code; the
// request supplies the id and path echoed back for support correlation.
func Error(w http.ResponseWriter, r *http.Request, code, message string, details any) {
	env := errorEnvelope{
		Error:     errorBody{Code: code, Message: message, Details: details},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if r != nil {
		env.RequestID = middleware.GetReqID(r.Context())
		env.Path = r.URL.Path
	}
	writeJSON(w, StatusForCode(code), env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
