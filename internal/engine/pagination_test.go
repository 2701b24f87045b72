package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/fivetwenty-io/wfm-client/internal/auth"
	"github.com/fivetwenty-io/wfm-client/internal/engine"
	wfmhttp "github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedServer serves totalPages pages of pageSize employees using page
// numbers, recording every query it receives.
type pagedServer struct {
	mu         sync.Mutex
	queries    []map[string]string
	totalPages int
	pageSize   int
}

func (s *pagedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := map[string]string{}
	for key := range r.URL.Query() {
		query[key] = r.URL.Query().Get(key)
	}

	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	page := 1
	if value := r.URL.Query().Get("page"); value != "" {
		page, _ = strconv.Atoi(value)
	}

	items := make([]wfm.Employee, s.pageSize)
	for i := range items {
		items[i] = wfm.Employee{
			Resource:  wfm.Resource{ID: fmt.Sprintf("e-%d-%d", page, i)},
			FirstName: "Page" + strconv.Itoa(page),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", "100")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(100-page))

	_ = json.NewEncoder(w).Encode(map[string]any{
		"results": map[string]any{"employees": items},
		"more":    page < s.totalPages,
	})
}

func (s *pagedServer) recorded() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]map[string]string(nil), s.queries...)
}

func newHTTPEngine(t *testing.T, handler http.Handler) *engine.Engine {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := wfmhttp.NewClient(server.URL, auth.NewStaticTokenManager("test-token"), wfmhttp.WithTenant("acme"))

	return engine.New(testRegistry(t), client, testOptions())
}

func TestExecute_GetFollowsPages(t *testing.T) {
	t.Parallel()

	server := &pagedServer{totalPages: 3, pageSize: 2}
	eng := newHTTPEngine(t, server)

	filter := wfm.NewFilter().Add("department_id", "d1", "d2")

	op := engine.NewGet[wfm.Employee]("employees", filter, &wfm.RequestOptions{PageSize: 2})
	require.NoError(t, eng.Execute(context.Background(), op))

	results := op.Results()
	require.Len(t, results.Items, 6)
	assert.Equal(t, "e-1-0", results.Items[0].ID)
	assert.Equal(t, "e-3-1", results.Items[5].ID)

	queries := server.recorded()
	require.Len(t, queries, 3)

	for i, query := range queries {
		assert.Equal(t, "d1,d2", query["department_id"])
		assert.Equal(t, "2", query["per_page"])

		if i == 0 {
			assert.NotContains(t, query, "page")
		} else {
			assert.Equal(t, strconv.Itoa(i+1), query["page"])
		}
	}

	require.NotNil(t, results.Meta.Page)
	assert.False(t, results.Meta.Page.HasMore)
	assert.Equal(t, 3, results.Meta.Page.Page)

	require.NotNil(t, results.Meta.RateLimit)
	assert.Equal(t, 97, results.Meta.RateLimit.Remaining)
	assert.Equal(t, 97, eng.Budget().Snapshot().Remaining)
	assert.NotEmpty(t, results.Meta.RequestID)
}

func TestExecute_GetStopsAtMaxPages(t *testing.T) {
	t.Parallel()

	server := &pagedServer{totalPages: 10, pageSize: 1}
	eng := newHTTPEngine(t, server)

	op := engine.NewGet[wfm.Employee]("employees", nil, &wfm.RequestOptions{MaxPages: 4})
	require.NoError(t, eng.Execute(context.Background(), op))

	assert.Len(t, server.recorded(), 4)
	assert.Len(t, op.Results().Items, 4)

	page := op.Results().Meta.Page
	require.NotNil(t, page)
	assert.True(t, page.HasMore)
	assert.Equal(t, 4, page.Page)
	assert.Equal(t, "5", page.Next)
}

func TestExecute_GetStartPage(t *testing.T) {
	t.Parallel()

	server := &pagedServer{totalPages: 3, pageSize: 1}
	eng := newHTTPEngine(t, server)

	op := engine.NewGet[wfm.Employee]("employees", nil, &wfm.RequestOptions{StartPage: 2})
	require.NoError(t, eng.Execute(context.Background(), op))

	queries := server.recorded()
	require.Len(t, queries, 2)
	assert.Equal(t, "2", queries[0]["page"])
	assert.Equal(t, "3", queries[1]["page"])
}

func TestExecute_GetFollowsCursor(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"":   `{"results":{"employees":[{"id":"a"}]},"more":true,"cursor":"c1"}`,
		"c1": `{"results":{"employees":[{"id":"b"}]},"more":true,"next_page":"c2"}`,
		"c2": `{"results":{"employees":[{"id":"c"}]},"more":false}`,
	}

	transport := &fakeTransport{handler: func(_ context.Context, _ int, req *wfmhttp.Request) (*wfmhttp.Response, error) {
		return jsonResponse(http.StatusOK, pages[req.Query.Get("cursor")]), nil
	}}
	eng := newTestEngine(t, transport)

	op := engine.NewGet[wfm.Employee]("employees", wfm.NewFilter().Add("status", "active"), nil)
	require.NoError(t, eng.Execute(context.Background(), op))

	require.Equal(t, 3, transport.calls())

	ids := make([]string, 0, 3)
	for _, item := range op.Results().Items {
		ids = append(ids, item.ID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids)

	for _, req := range transport.requests {
		assert.Equal(t, "active", req.Query.Get("status"))
		assert.Empty(t, req.Query.Get("page"))
	}
}

func TestExecute_GetStuckCursor(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{handler: func(context.Context, int, *wfmhttp.Request) (*wfmhttp.Response, error) {
		return jsonResponse(http.StatusOK, `{"results":{"employees":[]},"more":true,"cursor":"same"}`), nil
	}}
	eng := newTestEngine(t, transport)

	op := engine.NewGet[wfm.Employee]("employees", nil, nil)
	err := eng.Execute(context.Background(), op)
	require.ErrorIs(t, err, wfm.ErrConfiguration)
	assert.Equal(t, 2, transport.calls())
	assert.Nil(t, op.Results())
}

func TestExecute_GetWithoutPagination(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{handler: func(context.Context, int, *wfmhttp.Request) (*wfmhttp.Response, error) {
		return jsonResponse(http.StatusOK, `[{"id":"l1","name":"Berlin"},{"id":"l2","name":"Paris"}]`), nil
	}}
	eng := newTestEngine(t, transport)

	op := engine.NewGet[wfm.Location]("locations", nil, nil)
	require.NoError(t, eng.Execute(context.Background(), op))

	assert.Equal(t, 1, transport.calls())
	require.Len(t, op.Results().Items, 2)
	assert.Equal(t, "Paris", op.Results().Items[1].Name)
}

func TestExecute_GetClientErrorRaises(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{handler: func(context.Context, int, *wfmhttp.Request) (*wfmhttp.Response, error) {
		return apiResponse(http.StatusBadRequest, wfm.ErrorCodeValidation, "unknown filter")
	}}
	eng := newTestEngine(t, transport)

	op := engine.NewGet[wfm.Employee]("employees", wfm.NewFilter().Add("color", "blue"), nil)
	err := eng.Execute(context.Background(), op)
	require.Error(t, err)

	apiErr := wfmhttp.APIErrorFrom(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, "unknown filter", apiErr.Message)
	assert.Equal(t, 1, transport.calls())
	assert.Nil(t, op.Results())
}
