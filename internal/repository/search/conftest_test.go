package search

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/taxdex/internal/db"
	"github.com/kailas-cloud/taxdex/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn      func(ctx context.Context, q *db.SearchQuery) (*db.SearchResponse, error)
	multiSearchFn func(ctx context.Context, index string, bodies []map[string]any) ([]db.MultiSearchItem, error)
	countFn       func(ctx context.Context, index string, query map[string]any) (int64, error)
	openScrollFn  func(ctx context.Context, q *db.SearchQuery, keepAlive time.Duration) (*db.SearchResponse, error)
	scrollFn      func(ctx context.Context, scrollID string, keepAlive time.Duration) (*db.SearchResponse, error)
	clearScrollFn func(ctx context.Context, scrollID string) error
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResponse, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResponse{}, nil
}

func (m *mockStore) MultiSearch(ctx context.Context, index string, bodies []map[string]any) ([]db.MultiSearchItem, error) {
	if m.multiSearchFn != nil {
		return m.multiSearchFn(ctx, index, bodies)
	}
	return nil, nil
}

func (m *mockStore) Count(ctx context.Context, index string, query map[string]any) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, index, query)
	}
	return 0, nil
}

func (m *mockStore) OpenScroll(ctx context.Context, q *db.SearchQuery, keepAlive time.Duration) (*db.SearchResponse, error) {
	if m.openScrollFn != nil {
		return m.openScrollFn(ctx, q, keepAlive)
	}
	return &db.SearchResponse{}, nil
}

func (m *mockStore) Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*db.SearchResponse, error) {
	if m.scrollFn != nil {
		return m.scrollFn(ctx, scrollID, keepAlive)
	}
	return &db.SearchResponse{}, nil
}

func (m *mockStore) ClearScroll(ctx context.Context, scrollID string) error {
	if m.clearScrollFn != nil {
		return m.clearScrollFn(ctx, scrollID)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, domain.IndexNaming{Separator: "--", Hub: "goat", Release: "2024.01"}), ms
}

// page builds a scroll batch of ids.
func page(scrollID string, total int64, ids ...string) *db.SearchResponse {
	resp := &db.SearchResponse{
		Took:     2,
		ScrollID: scrollID,
		Shards:   db.ShardStats{Total: 1, Successful: 1},
	}
	resp.Hits.Total.Value = total
	for _, id := range ids {
		resp.Hits.Hits = append(resp.Hits.Hits, db.Hit{ID: id, Source: map[string]any{"taxon_id": id}})
	}
	return resp
}
