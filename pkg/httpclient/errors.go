package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// errorEnvelope mirrors httputil.ErrorResponse so structured error bodies
// from receivers built on this codebase keep their code and message.
type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ResponseError is a non-2xx response from a downstream endpoint.
type ResponseError struct {
	Target  string
	Status  int
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Target, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Target, e.Status, e.Message)
}

// Unwrap maps the status onto the sentinel errors of pkg/errors.
func (e *ResponseError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Status == http.StatusBadRequest:
		return apperrors.ErrInvalidInput
	case e.Status == http.StatusConflict:
		return apperrors.ErrConflict
	case e.Status == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return apperrors.ErrForbidden
	case e.Status == http.StatusUnprocessableEntity:
		return apperrors.ErrBusinessRule
	case e.Status == http.StatusServiceUnavailable:
		return apperrors.ErrServiceUnavail
	default:
		return apperrors.ErrInternal
	}
}

// Retryable reports whether sending the same request again may succeed.
func (e *ResponseError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// ParseResponseError reads the body of a non-2xx response into a
// ResponseError. The body is fully consumed and closed.
func ParseResponseError(resp *http.Response, target string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", target, resp.StatusCode, err)
	}

	out := &ResponseError{Target: target, Status: resp.StatusCode, Message: string(bodyBytes)}
	var envelope errorEnvelope
	if json.Unmarshal(bodyBytes, &envelope) == nil && envelope.Error != nil {
		out.Code = envelope.Error.Code
		out.Message = envelope.Error.Message
	}
	return out
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
