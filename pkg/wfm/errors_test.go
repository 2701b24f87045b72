package wfm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	err := &APIError{Code: "not_found", Message: "employee not found", Status: 404}
	assert.Equal(t, "not_found: employee not found (status: 404)", err.Error())

	err = &APIError{Code: "invalid_email", Message: "email is malformed"}
	assert.Equal(t, "invalid_email: email is malformed", err.Error())
}

func TestErrorResponse_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown error", (&ErrorResponse{}).Error())

	resp := &ErrorResponse{Err: &APIError{Code: "forbidden", Message: "no access", Status: 403}}
	assert.Equal(t, "forbidden: no access (status: 403)", resp.Error())

	apiErr := &APIError{}
	require.ErrorAs(t, resp, &apiErr)
	assert.Equal(t, "forbidden", apiErr.Code)
}

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode string
		wantErr  bool
	}{
		{name: "enveloped", body: `{"error":{"code":"rate_limit_exceeded","message":"slow down"}}`, wantCode: "rate_limit_exceeded"},
		{name: "bare", body: `{"code":"validation_failed","message":"bad"}`, wantCode: "validation_failed"},
		{name: "empty object", body: `{}`},
		{name: "invalid json", body: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := ParseErrorResponse([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			if tt.wantCode == "" {
				assert.Nil(t, resp.Err)

				return
			}

			require.NotNil(t, resp.Err)
			assert.Equal(t, tt.wantCode, resp.Err.Code)
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	notFound := fmt.Errorf("getting employee: %w", &APIError{Code: ErrorCodeNotFound, Status: 404})
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsUnauthorized(notFound))

	assert.True(t, IsUnauthorized(&APIError{Status: 401}))
	assert.True(t, IsForbidden(&APIError{Code: ErrorCodeForbidden}))

	assert.True(t, IsRateLimited(&APIError{Status: 429}))
	assert.True(t, IsRateLimited(&APIError{Code: ErrorCodeRateLimitExceeded, Status: 400}))
	assert.True(t, IsRateLimited(&RateLimitedError{ResetAt: time.Now()}))

	assert.True(t, IsRetryable(&TransientError{Status: 503}))
	assert.False(t, IsRetryable(&APIError{Status: 400}))
}

func TestTypedErrors_Is(t *testing.T) {
	t.Parallel()

	cfgErr := &ConfigurationError{Endpoint: "payroll", Reason: "unknown endpoint"}
	require.ErrorIs(t, cfgErr, ErrConfiguration)
	assert.Equal(t, `configuration error for endpoint "payroll": unknown endpoint`, cfgErr.Error())

	cause := errors.New("connection reset")
	transient := &TransientError{Err: cause}
	require.ErrorIs(t, transient, ErrTransient)
	require.ErrorIs(t, transient, cause)

	exhausted := &ExhaustedRetriesError{Attempts: 4, Last: transient}
	require.ErrorIs(t, exhausted, ErrExhaustedRetries)
	require.ErrorIs(t, exhausted, ErrTransient)
	require.ErrorIs(t, exhausted, cause)
	assert.Contains(t, exhausted.Error(), "giving up after 4 attempts")

	cancelled := fmt.Errorf("%w: %w", ErrCancelled, context.Canceled)
	require.ErrorIs(t, cancelled, ErrCancelled)
	require.ErrorIs(t, cancelled, context.Canceled)
}
