package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/taxdex/internal/db"
	"github.com/kailas-cloud/taxdex/internal/domain"
	domschema "github.com/kailas-cloud/taxdex/internal/domain/schema"
)

// maxAttributes caps a single schema fetch.
const maxAttributes = 10000

// store is the consumer interface for schema reads (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResponse, error)
}

// Repo implements usecase/schema.Repository.
type Repo struct {
	store  store
	naming domain.IndexNaming
}

// New creates a schema repository.
func New(s store, naming domain.IndexNaming) *Repo {
	return &Repo{store: s, naming: naming}
}

// Fetch loads the attributes declared for category under taxonomy from the
// kind's metadata index. A missing index yields an empty set.
func (r *Repo) Fetch(ctx context.Context, category, taxonomy string, kind domschema.Kind) (*domschema.Set, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("schema kind %q: %w", kind, domain.ErrInvalidRequest)
	}
	index := r.naming.Name(string(kind), taxonomy)
	resp, err := r.store.Search(ctx, &db.SearchQuery{
		Index: index,
		Body: map[string]any{
			"size": maxAttributes,
			"query": map[string]any{
				"bool": map[string]any{
					"filter": []any{
						map[string]any{"term": map[string]any{"group": category}},
					},
				},
			},
		},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return domschema.NewSet(category, taxonomy, kind, nil), nil
		}
		return nil, fmt.Errorf("fetch %s schema %s: %w", kind, index, err)
	}

	attrs := make([]domschema.Attribute, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		row, err := rowFromSource(hit.Source)
		if err != nil {
			return nil, fmt.Errorf("parse attribute %s: %w", hit.ID, err)
		}
		if row.Name == "" {
			continue
		}
		attrs = append(attrs, row.toAttribute())
	}
	return domschema.NewSet(category, taxonomy, kind, attrs), nil
}
