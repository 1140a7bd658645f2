package search

import (
	"context"

	"github.com/kailas-cloud/taxdex/internal/domain/progress"
	domschema "github.com/kailas-cloud/taxdex/internal/domain/schema"
	"github.com/kailas-cloud/taxdex/internal/domain/search/filter"
	"github.com/kailas-cloud/taxdex/internal/domain/search/mode"
	"github.com/kailas-cloud/taxdex/internal/domain/search/result"
)

// Repository defines the storage contract for search execution.
type Repository interface {
	Index(category, taxonomy string) string
	Search(ctx context.Context, category, taxonomy string, body filter.Body) (result.Envelope, error)
	MultiSearch(ctx context.Context, category, taxonomy string, bodies []filter.Body) ([]result.Envelope, error)
	Count(ctx context.Context, category, taxonomy string, query map[string]any) (int64, error)
	Stream(
		ctx context.Context, category, taxonomy string, body filter.Body, opts mode.StreamOptions,
	) (result.Stream, error)
}

// SchemaResolver resolves attribute and identifier schemas.
type SchemaResolver interface {
	Resolve(ctx context.Context, category, taxonomy string, kind domschema.Kind) (*domschema.Set, error)
	ResolveAll(
		ctx context.Context, categories []string, taxonomy string, kind domschema.Kind,
	) (map[string]*domschema.Set, error)
}

// ProgressStore tracks streamed searches by id.
type ProgressStore interface {
	Set(ctx context.Context, id string, st progress.State) error
	Get(ctx context.Context, id string) (progress.State, error)
	Delete(ctx context.Context, id string) error
}
