// Package http is the JSON-over-HTTP transport used by the operation engine.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/wfm-client/internal/auth"
	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// Request is a single API exchange.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body is encoded as JSON.
	Body any
	// RawBody is sent verbatim with ContentType and takes precedence over Body.
	RawBody     []byte
	ContentType string
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RequestID  string
}

// Client sends requests to the API.
type Client struct {
	baseURL      string
	tokenManager auth.TokenManager
	retryClient  *retryablehttp.Client
	logger       wfm.Logger
	debug        bool
	userAgent    string
	tenantID     string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger wfm.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug logs every request and response at debug level.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTenant sets the X-Tenant-ID header sent with every request.
func WithTenant(tenantID string) Option {
	return func(c *Client) {
		c.tenantID = tenantID
	}
}

// WithTimeout bounds every attempt of the underlying HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.retryClient.HTTPClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.retryClient.HTTPClient = httpClient
	}
}

// WithLeveledLogger routes retryablehttp's own attempt logging to logger.
func WithLeveledLogger(logger retryablehttp.LeveledLogger) Option {
	return func(c *Client) {
		c.retryClient.Logger = logger
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil for
// unauthenticated use.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		tokenManager: tokenManager,
		retryClient:  retryClient,
		logger:       wfm.NopLogger(),
		userAgent:    constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do sends req. For responses with status >= 400 both the response and an
// error describing the API failure are returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.do(ctx, req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || c.tokenManager == nil {
		return resp, err
	}

	// One retry with a fresh token; static tokens cannot be refreshed.
	if refreshErr := c.tokenManager.RefreshToken(ctx); refreshErr != nil {
		return resp, err
	}

	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	requestID := httpReq.Header.Get(constants.HeaderRequestID)

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":     req.Method,
			"url":        httpReq.URL.String(),
			"request_id": requestID,
		})
	}

	start := time.Now()

	httpResp, err := c.retryClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":     httpResp.StatusCode,
			"duration":   time.Since(start).String(),
			"request_id": requestID,
			"bytes":      len(body),
		})
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		RequestID:  requestID,
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return resp, responseError(httpResp.StatusCode, body)
	}

	return resp, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*retryablehttp.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        []byte
		contentType string
	)

	switch {
	case req.RawBody != nil:
		body = req.RawBody
		contentType = req.ContentType
	case req.Body != nil:
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}

		body = encoded
		contentType = "application/json"
	}

	var bodyArg interface{}
	if body != nil {
		bodyArg = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, bodyArg)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(constants.HeaderRequestID, uuid.NewString())

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if c.tenantID != "" {
		httpReq.Header.Set(constants.HeaderTenantID, c.tenantID)
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: getting auth token: %w", wfm.ErrNotAuthenticated, err)
		}

		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

func responseError(status int, body []byte) error {
	errResp, err := wfm.ParseErrorResponse(body)
	if err != nil || errResp.Err == nil {
		return &wfm.APIError{
			Code:    codeForStatus(status),
			Message: strings.TrimSpace(truncate(string(body), 200)),
			Status:  status,
		}
	}

	errResp.Err.Status = status

	return errResp
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return wfm.ErrorCodeUnauthorized
	case status == http.StatusForbidden:
		return wfm.ErrorCodeForbidden
	case status == http.StatusNotFound:
		return wfm.ErrorCodeNotFound
	case status == http.StatusTooManyRequests:
		return wfm.ErrorCodeRateLimitExceeded
	case status >= http.StatusInternalServerError:
		return wfm.ErrorCodeServerError
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit]
}

// APIErrorFrom extracts the APIError carried by err, if any.
func APIErrorFrom(err error) *wfm.APIError {
	apiErr := &wfm.APIError{}
	if errors.As(err, &apiErr) {
		return apiErr
	}

	return nil
}
