package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/progress"
	"github.com/kailas-cloud/taxdex/internal/domain/search/mode"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
	"github.com/kailas-cloud/taxdex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/taxdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/taxdex/internal/usecase/search"
)

// --- Mocks ---

type mockSearcher struct {
	last     *request.Request
	response *searchuc.Response
	count    int64
	states   map[string]progress.State
}

func (m *mockSearcher) Search(_ context.Context, req *request.Request) *searchuc.Response {
	m.last = req
	if m.response != nil {
		return m.response
	}
	return &searchuc.Response{Status: searchuc.Status{Success: true}, Mode: mode.Bounded, Records: []result.Record{}}
}

func (m *mockSearcher) Count(_ context.Context, req *request.Request) *searchuc.CountResponse {
	m.last = req
	return &searchuc.CountResponse{Status: searchuc.Status{Success: true, Total: m.count}, Count: m.count}
}

func (m *mockSearcher) Progress(_ context.Context, id string) (progress.State, error) {
	st, ok := m.states[id]
	if !ok {
		return progress.State{}, fmt.Errorf("progress %s: %w", id, domain.ErrNotFound)
	}
	return st, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestServer(opts Options) (*mockSearcher, http.Handler) {
	s := &mockSearcher{states: map[string]progress.State{}}
	h := mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentEngine: healthuc.CheckOK},
		Took:   3 * time.Millisecond,
	}}
	return s, NewServer(s, h, opts, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&e))
	return e
}

// --- Tests ---

func TestSearchGet_BindsParameters(t *testing.T) {
	s, h := newTestServer(Options{})

	q := url.Values{}
	q.Set("query", "tax_tree(Mammalia) AND assembly_level=chromosome,complete genome")
	q.Set("result", "Assembly")
	q.Set("fields", "genome_size,assembly_level")
	q.Set("names", "common_name")
	q.Set("size", "25")
	q.Set("offset", "5")
	q.Set("includeEstimates", "true")
	q.Set("excludeAncestral", "genome_size")
	q.Set("sortBy", "genome_size")
	q.Set("sortOrder", "desc")
	q.Set("maxDepth", "2")

	rr := do(t, h, http.MethodGet, "/api/v2/search?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, s.last)

	req := s.last
	assert.Equal(t, "tax_tree(Mammalia) AND assembly_level=chromosome,complete genome", req.Query())
	assert.Equal(t, "assembly", req.Category())
	assert.Equal(t, []string{"genome_size", "assembly_level"}, req.Fields())
	assert.Equal(t, []string{"common_name"}, req.NameClasses())
	assert.Equal(t, 25, req.Size())
	assert.Equal(t, 5, req.Offset())
	assert.True(t, req.IncludeEstimates())
	assert.Equal(t, []string{"genome_size"}, req.Exclusions().Ancestral)
	assert.Equal(t, []request.Sort{{By: "genome_size", Order: request.Desc}}, req.Sort())
	require.NotNil(t, req.MaxDepth())
	assert.Equal(t, 2, *req.MaxDepth())
}

func TestSearchGet_ResponseShape(t *testing.T) {
	s, h := newTestServer(Options{})
	s.response = &searchuc.Response{
		Status: searchuc.Status{Success: true, Hits: 1, Total: 1},
		Mode:   mode.Bounded,
		Records: []result.Record{{
			ID: "9606",
			Attributes: map[string]result.AttributeValue{
				"genome_size": {Value: result.Integer(3100000000), AggregationSource: "direct"},
			},
		}},
	}

	rr := do(t, h, http.MethodGet, "/api/v2/search?query=genome_size", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status  searchuc.Status `json:"status"`
		Results []struct {
			ID     string `json:"id"`
			Fields map[string]struct {
				Value             float64 `json:"value"`
				AggregationSource string  `json:"aggregation_source"`
			} `json:"fields"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.True(t, body.Status.Success)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "9606", body.Results[0].ID)
	assert.InDelta(t, 3100000000, body.Results[0].Fields["genome_size"].Value, 0)
	assert.Equal(t, "direct", body.Results[0].Fields["genome_size"].AggregationSource)
}

func TestSearchPost_AcceptsAggregations(t *testing.T) {
	s, h := newTestServer(Options{})

	rr := do(t, h, http.MethodPost, "/api/v2/search", `{
		"query": "genome_size>1000000",
		"size": 0,
		"fields": ["genome_size"],
		"aggregations": {"ranks": {"terms": {"field": "taxon_rank"}}}
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, s.last.HasAggregations())
	assert.Equal(t, request.DefaultSize, s.last.Size())
}

func TestSearch_RejectsBadInput(t *testing.T) {
	_, h := newTestServer(Options{MaxSize: 100000})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   ErrorCode
	}{
		{name: "non numeric size", method: http.MethodGet, target: "/api/v2/search?size=ten", code: CodeBadRequest},
		{name: "size above limit", method: http.MethodGet, target: "/api/v2/search?size=100001", code: CodeValidationFailed},
		{name: "unknown category", method: http.MethodGet, target: "/api/v2/search?result=gene", code: CodeValidationFailed},
		{
			name: "sort orders without fields", method: http.MethodGet,
			target: "/api/v2/search?sortOrder=asc", code: CodeValidationFailed,
		},
		{name: "malformed body", method: http.MethodPost, target: "/api/v2/search", body: `{"query":`, code: CodeBadRequest},
		{
			name: "unknown body field", method: http.MethodPost, target: "/api/v2/count",
			body: `{"qurey":"x"}`, code: CodeBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, tc.method, tc.target, tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.code, decodeError(t, rr).Code)
		})
	}
}

func TestCountGet(t *testing.T) {
	s, h := newTestServer(Options{})
	s.count = 5400

	rr := do(t, h, http.MethodGet, "/api/v2/count?query=tax_tree(Mammalia)", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body searchuc.CountResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, int64(5400), body.Count)
	assert.Equal(t, "tax_tree(Mammalia)", s.last.Query())
}

func TestGetProgress(t *testing.T) {
	s, h := newTestServer(Options{})
	s.states["job-1"] = progress.State{Current: 2000, Total: 8000}

	rr := do(t, h, http.MethodGet, "/api/v2/progress/job-1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body ProgressResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, ProgressResponse{ProgressID: "job-1", Current: 2000, Total: 8000, Percent: 25}, body)

	rr = do(t, h, http.MethodGet, "/api/v2/progress/missing", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rr).Code)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			srv := NewServer(&mockSearcher{}, mockHealth{report: healthuc.Report{Status: tc.status}}, Options{}, nil)
			rr := do(t, srv.Handler(), http.MethodGet, "/health", "")
			assert.Equal(t, tc.want, rr.Code)

			var body HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

func TestHandler_Middleware(t *testing.T) {
	_, h := newTestServer(Options{APIKeys: []string{"secret"}})

	t.Run("auth enforced on api", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/v2/search", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("health exempt and request id echoed", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v2/search", http.NoBody)
		req.Header.Set("Origin", "https://goat.genomehubs.org")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/collections", http.NoBody)
		req.Header.Set("Authorization", "Bearer secret")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestSearchGet_ConfiguredDefaults(t *testing.T) {
	s, h := newTestServer(Options{DefaultSize: 50, DefaultTaxonomy: "ott"})

	rr := do(t, h, http.MethodGet, "/api/v2/search?query=genome_size", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 50, s.last.Size())
	assert.Equal(t, "ott", s.last.Taxonomy())

	rr = do(t, h, http.MethodGet, "/api/v2/search?size=5&taxonomy=ncbi", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, s.last.Size())
	assert.Equal(t, "ncbi", s.last.Taxonomy())
}
