package elastic

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/taxdex/internal/db"
)

const testIndex = "taxon--ncbi--goat--2024.01"

// newTestStore starts a fake cluster serving handler.
func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	s, err := NewStore(Config{Addrs: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead || r.URL.Path != "/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Unavailable(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := s.Ping(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpPing {
		t.Fatalf("expected PING db.Error, got %v", err)
	}
}

const searchResponse = `{
	"took": 12,
	"timed_out": false,
	"_shards": {"total": 3, "successful": 3, "skipped": 0, "failed": 0},
	"hits": {
		"total": {"value": 1, "relation": "eq"},
		"hits": [{
			"_index": "taxon--ncbi--goat--2024.01",
			"_id": "taxon-9606",
			"_score": 2.5,
			"_source": {"taxon_id": "9606", "scientific_name": "Homo sapiens"},
			"inner_hits": {
				"genome_size": {"hits": {"total": {"value": 1, "relation": "eq"}, "hits": [{
					"_id": "taxon-9606", "_score": 1,
					"_source": {"key": "genome_size", "long_value": 3100000000, "aggregation_source": ["direct"]}
				}]}}
			}
		}]
	},
	"aggregations": {"null_counts": {"buckets": {"genome_size": {"doc_count": 0}}}}
}`

func TestSearch(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+testIndex+"/_search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["size"] != float64(10) {
			t.Errorf("size = %v", body["size"])
		}
		_, _ = io.WriteString(w, searchResponse)
	})

	res, err := s.Search(context.Background(), &db.SearchQuery{
		Index: testIndex,
		Body:  map[string]any{"size": 10, "query": map[string]any{"match_all": map[string]any{}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Took != 12 || res.Shards.Successful != 3 || res.Hits.Total.Value != 1 {
		t.Errorf("unexpected envelope: %+v", res)
	}
	if len(res.Hits.Hits) != 1 {
		t.Fatalf("hits = %d", len(res.Hits.Hits))
	}
	hit := res.Hits.Hits[0]
	if hit.ID != "taxon-9606" || hit.Score != 2.5 || hit.Source["scientific_name"] != "Homo sapiens" {
		t.Errorf("unexpected hit: %+v", hit)
	}
	inner := hit.InnerHits["genome_size"].Hits.Hits
	if len(inner) != 1 || inner[0].Source["key"] != "genome_size" {
		t.Errorf("unexpected inner hits: %+v", hit.InnerHits)
	}
	if _, ok := res.Aggregations["null_counts"]; !ok {
		t.Error("aggregations missing")
	}
}

func TestSearch_IndexNotFound(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": {"type": "index_not_found_exception", "reason": "no such index"}, "status": 404}`)
	})
	_, err := s.Search(context.Background(), &db.SearchQuery{Index: "missing", Body: map[string]any{}})
	if !IsNotFound(err) {
		t.Fatalf("expected index not found, got %v", err)
	}
	var respErr *ResponseError
	if !errors.As(err, &respErr) || respErr.Status != http.StatusNotFound {
		t.Errorf("expected ResponseError 404, got %v", err)
	}
}

func TestSearch_ServerErrorWithoutBody(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `not json`)
	})
	_, err := s.Search(context.Background(), &db.SearchQuery{Index: testIndex, Body: map[string]any{}})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSearch {
		t.Fatalf("expected SEARCH db.Error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error = %q", err)
	}
}

func TestMultiSearch(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+testIndex+"/_msearch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		lines := 0
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) != "" {
				lines++
			}
		}
		if lines != 4 {
			t.Errorf("ndjson lines = %d, want 4", lines)
		}
		_, _ = io.WriteString(w, `{"took": 5, "responses": [`+searchResponse+`,
			{"error": {"type": "search_phase_execution_exception", "reason": "boom"}, "status": 500}]}`)
	})

	items, err := s.MultiSearch(context.Background(), testIndex, []map[string]any{
		{"query": map[string]any{"term": map[string]any{"taxon_id": "9606"}}},
		{"query": map[string]any{"term": map[string]any{"taxon_id": "9598"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].Err != nil || items[0].Response.Hits.Total.Value != 1 {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].Err == nil || !strings.Contains(items[1].Err.Error(), "boom") {
		t.Errorf("second item error = %v", items[1].Err)
	}
}

func TestMultiSearch_Empty(t *testing.T) {
	s := newTestStore(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})
	items, err := s.MultiSearch(context.Background(), testIndex, nil)
	if err != nil || items != nil {
		t.Errorf("got %v, %v", items, err)
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+testIndex+"/_count" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["query"]; !ok {
			t.Error("count body has no query")
		}
		_, _ = io.WriteString(w, `{"count": 4213, "_shards": {"total": 1, "successful": 1}}`)
	})
	n, err := s.Count(context.Background(), testIndex, map[string]any{"match_all": map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4213 {
		t.Errorf("count = %d", n)
	}
}

func TestScrollLifecycle(t *testing.T) {
	var opened, scrolled, cleared bool
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/"+testIndex+"/_search":
			opened = true
			if r.URL.Query().Get("scroll") == "" {
				t.Error("scroll keep-alive missing")
			}
			_, _ = io.WriteString(w, `{"_scroll_id": "c1", "took": 1, "hits": {"total": {"value": 2}, "hits": [{"_id": "a"}]}}`)
		case strings.HasPrefix(r.URL.Path, "/_search/scroll") && r.Method == http.MethodDelete:
			cleared = true
			_, _ = io.WriteString(w, `{"succeeded": true, "num_freed": 1}`)
		case strings.HasPrefix(r.URL.Path, "/_search/scroll"):
			scrolled = true
			_, _ = io.WriteString(w, `{"_scroll_id": "c1", "took": 1, "hits": {"total": {"value": 2}, "hits": [{"_id": "b"}]}}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	first, err := s.OpenScroll(ctx, &db.SearchQuery{Index: testIndex, Body: map[string]any{"size": 1}}, time.Minute)
	if err != nil {
		t.Fatalf("OpenScroll: %v", err)
	}
	if first.ScrollID != "c1" || first.Hits.Hits[0].ID != "a" {
		t.Errorf("first batch = %+v", first)
	}
	next, err := s.Scroll(ctx, first.ScrollID, time.Minute)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if next.Hits.Hits[0].ID != "b" {
		t.Errorf("second batch = %+v", next)
	}
	if err := s.ClearScroll(ctx, first.ScrollID); err != nil {
		t.Fatalf("ClearScroll: %v", err)
	}
	if !opened || !scrolled || !cleared {
		t.Errorf("opened=%v scrolled=%v cleared=%v", opened, scrolled, cleared)
	}
}

func TestClearScroll_Expired(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"succeeded": true, "num_freed": 0}`)
	})
	if err := s.ClearScroll(context.Background(), "gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
