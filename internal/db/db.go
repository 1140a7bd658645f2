package db

import (
	"context"
	"time"
)

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore keeps small records as field maps that expire.
type HashStore interface {
	HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Searcher runs single and batched searches against the document engine.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResponse, error)
	MultiSearch(ctx context.Context, index string, bodies []map[string]any) ([]MultiSearchItem, error)
	Count(ctx context.Context, index string, query map[string]any) (int64, error)
}

// Scroller pulls large result sets through a server-side cursor.
type Scroller interface {
	OpenScroll(ctx context.Context, q *SearchQuery, keepAlive time.Duration) (*SearchResponse, error)
	Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*SearchResponse, error)
	ClearScroll(ctx context.Context, scrollID string) error
}

// Engine is the document engine facade.
type Engine interface {
	Pinger
	Searcher
	Scroller
}
