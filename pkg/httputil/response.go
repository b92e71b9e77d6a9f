package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/logger"
	"github.com/utafrali/commercecore/pkg/pagination"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Rule      string            `json:"rule,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes v inside the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// ErrorWriter renders errors as the standard error envelope. With
// ExposeInternal set (development), 5xx responses carry the underlying
// message; otherwise they are generic.
type ErrorWriter struct {
	Logger         *slog.Logger
	ExposeInternal bool
}

// Write maps err to a status and error envelope. It prefers the request-scoped
// logger from context (set by the RequestLogger middleware) over w.Logger.
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && ew.Logger != nil {
		l = ew.Logger
	}

	appErr := apperrors.ToAppError(err, ew.ExposeInternal)
	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, Response{Error: &ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Rule:      appErr.Rule,
		Fields:    appErr.Fields,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}

// WriteError writes err with internal details hidden.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ErrorWriter{Logger: fallback}.Write(w, r, err)
}

// PaginatedResponse is a generic paginated list response envelope.
type PaginatedResponse[T any] struct {
	Data        []T  `json:"data"`
	TotalCount  int  `json:"total_count"`
	Page        int  `json:"page"`
	PerPage     int  `json:"per_page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPaginatedResponse converts a page of items into the list envelope,
// rendering each item with render.
func NewPaginatedResponse[S, T any](page pagination.Result[S], render func(S) T) PaginatedResponse[T] {
	data := make([]T, len(page.Items))
	for i, item := range page.Items {
		data[i] = render(item)
	}
	return PaginatedResponse[T]{
		Data:        data,
		TotalCount:  page.Total,
		Page:        page.Page,
		PerPage:     page.Limit,
		TotalPages:  page.TotalPages,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	}
}

// ParseParam parses a path or query parameter. On failure it writes a 400
// INVALID_PARAMETER response and returns false.
func ParseParam[T any](w http.ResponseWriter, name, raw string, parse func(string) (T, error)) (T, bool) {
	v, err := parse(raw)
	if err != nil {
		var zero T
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid " + name + ": " + raw,
			},
		})
		return zero, false
	}
	return v, true
}
