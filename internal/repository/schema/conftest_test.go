package schema

import (
	"context"
	"testing"

	"github.com/kailas-cloud/taxdex/internal/db"
	"github.com/kailas-cloud/taxdex/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn func(ctx context.Context, q *db.SearchQuery) (*db.SearchResponse, error)
	queries  []*db.SearchQuery
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResponse, error) {
	m.queries = append(m.queries, q)
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResponse{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, domain.IndexNaming{Separator: "--", Hub: "goat", Release: "2024.01"}), ms
}

func hits(sources ...map[string]any) *db.SearchResponse {
	out := &db.SearchResponse{}
	for i, s := range sources {
		out.Hits.Hits = append(out.Hits.Hits, db.Hit{ID: string(rune('a' + i)), Source: s})
	}
	out.Hits.Total.Value = int64(len(sources))
	return out
}
