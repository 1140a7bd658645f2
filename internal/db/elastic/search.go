package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/taxdex/internal/db"
)

// Search runs one search request.
func (s *Store) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResponse, error) {
	body, err := encode(q.Body)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(q.Index),
		s.client.Search.WithBody(body),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	var out db.SearchResponse
	if err := decode(res, db.OpSearch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type multiSearchBody struct {
	Responses []json.RawMessage `json:"responses"`
}

// MultiSearch runs bodies as one batched request. Per-search failures are
// reported on their items; the returned error covers the whole call.
func (s *Store) MultiSearch(ctx context.Context, index string, bodies []map[string]any) ([]db.MultiSearchItem, error) {
	if len(bodies) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, b := range bodies {
		if err := enc.Encode(map[string]any{}); err != nil {
			return nil, &db.Error{Op: db.OpMultiSearch, Err: err}
		}
		if err := enc.Encode(b); err != nil {
			return nil, &db.Error{Op: db.OpMultiSearch, Err: fmt.Errorf("encode body: %w", err)}
		}
	}
	res, err := s.client.Msearch(&buf,
		s.client.Msearch.WithContext(ctx),
		s.client.Msearch.WithIndex(index),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpMultiSearch, Err: err}
	}
	var out multiSearchBody
	if err := decode(res, db.OpMultiSearch, &out); err != nil {
		return nil, err
	}

	items := make([]db.MultiSearchItem, 0, len(out.Responses))
	for _, raw := range out.Responses {
		var eb errorBody
		if err := json.Unmarshal(raw, &eb); err == nil && eb.Error.Type != "" {
			items = append(items, db.MultiSearchItem{Err: &db.Error{
				Op:  db.OpMultiSearch,
				Err: &ResponseError{Status: eb.Status, Type: eb.Error.Type, Reason: eb.Error.Reason},
			}})
			continue
		}
		var sr db.SearchResponse
		if err := json.Unmarshal(raw, &sr); err != nil {
			items = append(items, db.MultiSearchItem{Err: &db.Error{Op: db.OpMultiSearch, Err: err}})
			continue
		}
		items = append(items, db.MultiSearchItem{Response: &sr})
	}
	return items, nil
}

// Count returns the number of documents matching query.
func (s *Store) Count(ctx context.Context, index string, query map[string]any) (int64, error) {
	body, err := encode(map[string]any{"query": query})
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(index),
		s.client.Count.WithBody(body),
	)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	var out struct {
		Count int64 `json:"count"`
	}
	if err := decode(res, db.OpCount, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// OpenScroll runs the first search of a scroll and returns its cursor.
func (s *Store) OpenScroll(ctx context.Context, q *db.SearchQuery, keepAlive time.Duration) (*db.SearchResponse, error) {
	body, err := encode(q.Body)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(q.Index),
		s.client.Search.WithBody(body),
		s.client.Search.WithScroll(keepAlive),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}
	var out db.SearchResponse
	if err := decode(res, db.OpScroll, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Scroll fetches the next batch of an open scroll.
func (s *Store) Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*db.SearchResponse, error) {
	res, err := s.client.Scroll(
		s.client.Scroll.WithContext(ctx),
		s.client.Scroll.WithScrollID(scrollID),
		s.client.Scroll.WithScroll(keepAlive),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}
	var out db.SearchResponse
	if err := decode(res, db.OpScroll, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearScroll releases a scroll cursor.
func (s *Store) ClearScroll(ctx context.Context, scrollID string) error {
	res, err := s.client.ClearScroll(
		s.client.ClearScroll.WithContext(ctx),
		s.client.ClearScroll.WithScrollID(scrollID),
	)
	if err != nil {
		return &db.Error{Op: db.OpClearScroll, Err: err}
	}
	// an expired cursor answers 404, which leaves nothing to clear
	if res.StatusCode == http.StatusNotFound {
		closeBody(res)
		return nil
	}
	return decode(res, db.OpClearScroll, nil)
}
