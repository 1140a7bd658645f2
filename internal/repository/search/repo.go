package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/taxdex/internal/db"
	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/search/filter"
	"github.com/kailas-cloud/taxdex/internal/domain/search/mode"
	"github.com/kailas-cloud/taxdex/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResponse, error)
	MultiSearch(ctx context.Context, index string, bodies []map[string]any) ([]db.MultiSearchItem, error)
	Count(ctx context.Context, index string, query map[string]any) (int64, error)
	OpenScroll(ctx context.Context, q *db.SearchQuery, keepAlive time.Duration) (*db.SearchResponse, error)
	Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*db.SearchResponse, error)
	ClearScroll(ctx context.Context, scrollID string) error
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store  store
	naming domain.IndexNaming
}

// New creates a search repository.
func New(s store, naming domain.IndexNaming) *Repo {
	return &Repo{store: s, naming: naming}
}

// Index returns the backing index for category under taxonomy.
func (r *Repo) Index(category, taxonomy string) string {
	return r.naming.Name(category, taxonomy)
}

// Search runs body as a single bounded search.
func (r *Repo) Search(ctx context.Context, category, taxonomy string, body filter.Body) (result.Envelope, error) {
	index := r.Index(category, taxonomy)
	resp, err := r.store.Search(ctx, &db.SearchQuery{Index: index, Body: body})
	if err != nil {
		return result.Envelope{}, fmt.Errorf("search %s: %w", index, err)
	}
	return toEnvelope(resp), nil
}

// MultiSearch runs bodies in one batched call and returns one envelope per
// body in order. Any failed body fails the whole call.
func (r *Repo) MultiSearch(ctx context.Context, category, taxonomy string, bodies []filter.Body) ([]result.Envelope, error) {
	index := r.Index(category, taxonomy)
	raw := make([]map[string]any, len(bodies))
	for i, b := range bodies {
		raw[i] = b
	}
	items, err := r.store.MultiSearch(ctx, index, raw)
	if err != nil {
		return nil, fmt.Errorf("msearch %s: %w", index, err)
	}
	if len(items) != len(bodies) {
		return nil, fmt.Errorf("msearch %s: got %d responses for %d searches", index, len(items), len(bodies))
	}
	out := make([]result.Envelope, len(items))
	var errs []error
	for i, item := range items {
		if item.Err != nil {
			errs = append(errs, fmt.Errorf("msearch %s line %d: %w", index, i, item.Err))
			continue
		}
		out[i] = toEnvelope(item.Response)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of records matching query.
func (r *Repo) Count(ctx context.Context, category, taxonomy string, query map[string]any) (int64, error) {
	index := r.Index(category, taxonomy)
	n, err := r.store.Count(ctx, index, query)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", index, err)
	}
	return n, nil
}

// Stream opens a scroll over body and returns a lazily pulled hit stream.
// The stream stops after limit hits when limit is positive.
func (r *Repo) Stream(
	ctx context.Context, category, taxonomy string, body filter.Body,
	opts mode.StreamOptions,
) (result.Stream, error) {
	index := r.Index(category, taxonomy)
	opts = opts.WithDefaults()
	body = body.Without("from", "aggs").With("size", opts.BatchSize)

	resp, err := r.store.OpenScroll(ctx, &db.SearchQuery{Index: index, Body: body}, opts.KeepAlive)
	if err != nil {
		return nil, fmt.Errorf("open scroll %s: %w", index, err)
	}
	return newHitStream(r.store, resp, opts), nil
}

// toEnvelope converts an engine response into the normalizer's input.
func toEnvelope(resp *db.SearchResponse) result.Envelope {
	if resp == nil {
		return result.Envelope{}
	}
	return result.Envelope{
		ElapsedMs:    resp.Took,
		TimedOut:     resp.TimedOut,
		Shards:       toShards(resp.Shards),
		Total:        resp.Hits.Total.Value,
		Hits:         toHits(resp.Hits.Hits),
		Aggregations: resp.Aggregations,
	}
}

func toShards(s db.ShardStats) result.Shards {
	return result.Shards{
		Total:      s.Total,
		Successful: s.Successful,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
	}
}

func toHits(hits []db.Hit) []result.RawHit {
	out := make([]result.RawHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, toHit(h))
	}
	return out
}

func toHit(h db.Hit) result.RawHit {
	hit := result.RawHit{
		ID:     h.ID,
		Index:  h.Index,
		Score:  h.Score,
		Source: h.Source,
		Sort:   h.Sort,
	}
	if len(h.InnerHits) > 0 {
		hit.InnerHits = make(map[string][]map[string]any, len(h.InnerHits))
		for name, group := range h.InnerHits {
			docs := make([]map[string]any, 0, len(group.Hits.Hits))
			for _, inner := range group.Hits.Hits {
				if inner.Source != nil {
					docs = append(docs, inner.Source)
				}
			}
			hit.InnerHits[name] = docs
		}
	}
	return hit
}
