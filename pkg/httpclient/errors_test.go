package httpclient

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestParseResponseError_Structured(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusUnprocessableEntity, apperrors.ErrBusinessRule},
		{http.StatusServiceUnavailable, apperrors.ErrServiceUnavail},
		{http.StatusInternalServerError, apperrors.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ParseResponseError(makeResponse(tt.status, `{"error":{"code":"X_CODE","message":"went wrong"}}`), "webhook")

			var re *ResponseError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.status, re.Status)
			assert.Equal(t, "X_CODE", re.Code)
			assert.Equal(t, "went wrong", re.Message)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), "webhook")
		})
	}
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadGateway, "<html>bad gateway</html>"), "webhook")

	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Empty(t, re.Code)
	assert.Equal(t, "<html>bad gateway</html>", re.Message)
	assert.True(t, re.Retryable())
}

func TestParseResponseError_NullErrorField(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadRequest, `{"error":null}`), "webhook")

	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, `{"error":null}`, re.Message)
	assert.False(t, re.Retryable())
}

func TestResponseError_Retryable(t *testing.T) {
	assert.True(t, (&ResponseError{Status: http.StatusTooManyRequests}).Retryable())
	assert.True(t, (&ResponseError{Status: http.StatusServiceUnavailable}).Retryable())
	assert.False(t, (&ResponseError{Status: http.StatusNotFound}).Retryable())
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(400))
	assert.True(t, IsClientError(499))
	assert.False(t, IsClientError(500))
	assert.False(t, IsClientError(204))
}
