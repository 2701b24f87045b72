package engine_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/wfm-client/internal/engine"
	wfmhttp "github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/internal/registry"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers exchanges from a handler and records every request.
type fakeTransport struct {
	mu       sync.Mutex
	requests []*wfmhttp.Request
	handler  func(ctx context.Context, call int, req *wfmhttp.Request) (*wfmhttp.Response, error)
}

func (f *fakeTransport) Do(ctx context.Context, req *wfmhttp.Request) (*wfmhttp.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()

	return f.handler(ctx, call, req)
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

func jsonResponse(status int, body string) *wfmhttp.Response {
	return &wfmhttp.Response{
		StatusCode: status,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

// apiResponse mimics the HTTP client: status >= 400 comes with an error.
func apiResponse(status int, code, message string) (*wfmhttp.Response, error) {
	resp := jsonResponse(status, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)

	return resp, &wfm.ErrorResponse{Err: &wfm.APIError{Code: code, Message: message, Status: status}}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg, err := registry.New(
		registry.EndpointDescriptor{
			ID:                 "employees",
			BasePath:           "/v1/employees",
			Entity:             "employees",
			SupportsBulk:       true,
			MaxItemsPerCall:    50,
			SupportsPagination: true,
			Methods: map[wfm.OperationKind]string{
				wfm.OperationCreate: "POST",
				wfm.OperationGet:    "GET",
				wfm.OperationUpdate: "PATCH",
				wfm.OperationDelete: "DELETE",
			},
		},
		registry.EndpointDescriptor{
			ID:                 "locations",
			BasePath:           "/v1/locations",
			Entity:             "locations",
			SupportsPagination: false,
			Methods: map[wfm.OperationKind]string{
				wfm.OperationCreate: "POST",
				wfm.OperationGet:    "GET",
				wfm.OperationUpdate: "PUT",
				wfm.OperationDelete: "DELETE",
			},
		},
		registry.EndpointDescriptor{
			ID:       "documents",
			BasePath: "/v1/documents",
			Entity:   "documents",
			Methods: map[wfm.OperationKind]string{
				wfm.OperationUpload:   "POST",
				wfm.OperationDownload: "GET",
			},
			Paths: map[wfm.OperationKind]string{
				wfm.OperationDownload: "/v1/documents/{id}/content",
			},
		},
	)
	require.NoError(t, err)

	return reg
}

func testOptions() engine.Options {
	return engine.Options{
		RetryMax:         3,
		RetryWaitMin:     time.Millisecond,
		RetryWaitMax:     5 * time.Millisecond,
		ExchangeTimeout:  time.Second,
		RateLimitWait:    5 * time.Millisecond,
		RateLimitWaitMax: 50 * time.Millisecond,
	}
}

func newTestEngine(t *testing.T, transport engine.Transport) *engine.Engine {
	t.Helper()

	return engine.New(testRegistry(t), transport, testOptions())
}
