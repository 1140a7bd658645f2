package schema

import (
	"context"

	domschema "github.com/kailas-cloud/taxdex/internal/domain/schema"
)

// Repository defines the storage contract for schema metadata.
type Repository interface {
	Fetch(ctx context.Context, category, taxonomy string, kind domschema.Kind) (*domschema.Set, error)
}
