package wfm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError represents an error returned by the workforce-management API.
type APIError struct {
	Code    string `json:"code"              yaml:"code"`
	Message string `json:"message"           yaml:"message"`
	Status  int    `json:"status,omitempty"  yaml:"status,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status: %d)", e.Code, e.Message, e.Status)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse represents the error envelope of an API response.
type ErrorResponse struct {
	Err *APIError `json:"error"`
}

// Error implements the error interface for ErrorResponse.
func (e *ErrorResponse) Error() string {
	if e.Err == nil {
		return "unknown error"
	}

	return e.Err.Error()
}

// Unwrap exposes the wrapped APIError.
func (e *ErrorResponse) Unwrap() error {
	if e.Err == nil {
		return nil
	}

	return e.Err
}

// Common error codes.
const (
	ErrorCodeNotFound          = "not_found"
	ErrorCodeUnauthorized      = "unauthorized"
	ErrorCodeForbidden         = "forbidden"
	ErrorCodeValidation        = "validation_failed"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeMissingResult     = "missing_result"
	ErrorCodeMissingIdentifier = "missing_identifier"
	ErrorCodeServerError       = "server_error"
)

// Pipeline error sentinels. Match with errors.Is.
var (
	ErrConfiguration          = errors.New("configuration error")
	ErrTransient              = errors.New("transient network error")
	ErrRateLimited            = errors.New("rate limited")
	ErrExhaustedRetries       = errors.New("retries exhausted")
	ErrCancelled              = errors.New("operation cancelled")
	ErrContextAlreadyExecuted = errors.New("operation context already executed")
)

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrAPIEndpointRequired  = errors.New("API endpoint is required")
	ErrTenantRequired       = errors.New("tenant ID is required")
	ErrUnknownEndpoint      = errors.New("unknown endpoint")
	ErrInvalidEndpoint      = errors.New("invalid endpoint descriptor")
	ErrUnsupportedOperation = errors.New("operation not supported by endpoint")
	ErrDuplicateIdentifier  = errors.New("duplicate item identifier")
	ErrFutureNotReady       = errors.New("future not completed")
	ErrNotAuthenticated     = errors.New("not authenticated")
)

// ConfigurationError reports a misconfigured endpoint or client.
type ConfigurationError struct {
	Endpoint string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}

	return fmt.Sprintf("configuration error for endpoint %q: %s", e.Endpoint, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TransientError is a failure worth retrying: a network error, an exchange
// timeout or a 5xx response.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transient failure: status %d", e.Status)
	}

	if e.Status == 0 {
		return fmt.Sprintf("transient failure: %v", e.Err)
	}

	return fmt.Sprintf("transient failure: status %d: %v", e.Status, e.Err)
}

// Is reports whether target is ErrTransient.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RateLimitedError is returned when the API refused an exchange because the
// tenant's request budget is spent.
type RateLimitedError struct {
	ResetAt time.Time
	Err     *APIError
}

func (e *RateLimitedError) Error() string {
	if e.ResetAt.IsZero() {
		return "rate limited"
	}

	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func (e *RateLimitedError) Unwrap() error {
	if e.Err == nil {
		return nil
	}

	return e.Err
}

// ExhaustedRetriesError is returned when an exchange kept failing after the
// configured number of retries. Last holds the final underlying failure.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

// Is reports whether target is ErrExhaustedRetries.
func (e *ExhaustedRetriesError) Is(target error) bool {
	return target == ErrExhaustedRetries
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Last
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return hasStatusOrCode(err, http.StatusNotFound, ErrorCodeNotFound)
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return hasStatusOrCode(err, http.StatusUnauthorized, ErrorCodeUnauthorized)
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return hasStatusOrCode(err, http.StatusForbidden, ErrorCodeForbidden)
}

// IsRateLimited checks if the error was caused by the API rate limit.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	return hasStatusOrCode(err, http.StatusTooManyRequests, ErrorCodeRateLimitExceeded)
}

// IsRetryable reports whether retrying the failed exchange may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || IsRateLimited(err)
}

func hasStatusOrCode(err error, status int, code string) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Status == status || apiErr.Code == code
	}

	return false
}

// ParseErrorResponse parses an error response body. Bodies carrying the
// error object at the top level are accepted as well as the enveloped form.
func ParseErrorResponse(data []byte) (*ErrorResponse, error) {
	var errResp ErrorResponse

	err := json.Unmarshal(data, &errResp)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal response error: %w", err)
	}

	if errResp.Err != nil {
		return &errResp, nil
	}

	var bare APIError

	err = json.Unmarshal(data, &bare)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal response error: %w", err)
	}

	if bare.Code == "" && bare.Message == "" {
		return &errResp, nil
	}

	return &ErrorResponse{Err: &bare}, nil
}
