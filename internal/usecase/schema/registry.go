package schema

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/taxdex/internal/domain"
	domschema "github.com/kailas-cloud/taxdex/internal/domain/schema"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
	"github.com/kailas-cloud/taxdex/internal/metrics"
)

// DefaultTTL is how long a fetched snapshot is served without refetching.
const DefaultTTL = 24 * time.Hour

// fetchTimeout bounds a shared fetch, which outlives any single caller.
const fetchTimeout = time.Minute

type key struct {
	category string
	taxonomy string
	kind     domschema.Kind
}

func (k key) String() string {
	return string(k.kind) + "/" + k.taxonomy + "/" + k.category
}

type entry struct {
	set     *domschema.Set
	fetched time.Time
}

// Registry caches schema snapshots per (category, taxonomy, kind). Snapshots
// are immutable and swapped whole; concurrent misses for one key share a
// single fetch.
type Registry struct {
	repo   Repository
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[key]entry
	group   singleflight.Group
}

// New creates a schema registry. A non-positive ttl uses DefaultTTL.
func New(repo Repository, ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		repo:    repo,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[key]entry),
	}
}

// Resolve returns the schema snapshot for the key, fetching it when missing
// or expired. A failed fetch serves the previous snapshot if one exists.
func (r *Registry) Resolve(ctx context.Context, category, taxonomy string, kind domschema.Kind) (*domschema.Set, error) {
	k := key{category: category, taxonomy: taxonomy, kind: kind}

	if set, ok := r.fresh(k); ok {
		metrics.SchemaCacheTotal.WithLabelValues("hit").Inc()
		return set, nil
	}

	// The flight is shared, so it must not die with the caller that started it.
	ch := r.group.DoChan(k.String(), func() (any, error) {
		// a flight that finished between the check above and DoChan already stored it
		if set, ok := r.fresh(k); ok {
			return set, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return r.refresh(fctx, k)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("resolve %s schema: %w", k, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err //nolint:wrapcheck // refresh already wraps
		}
		return res.Val.(*domschema.Set), nil
	}
}

func (r *Registry) fresh(k key) (*domschema.Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[k]
	if !ok || r.now().Sub(e.fetched) >= r.ttl {
		return nil, false
	}
	return e.set, true
}

// refresh fetches k and swaps the snapshot in.
func (r *Registry) refresh(ctx context.Context, k key) (*domschema.Set, error) {
	metrics.SchemaCacheTotal.WithLabelValues("miss").Inc()
	set, err := r.repo.Fetch(ctx, k.category, k.taxonomy, k.kind)
	if err != nil {
		metrics.SchemaFetchErrorsTotal.WithLabelValues(string(k.kind)).Inc()
		r.mu.RLock()
		stale, ok := r.entries[k]
		r.mu.RUnlock()
		if ok {
			metrics.SchemaCacheTotal.WithLabelValues("stale").Inc()
			r.logger.Warn("Schema fetch failed, serving stale snapshot",
				zap.String("category", k.category),
				zap.String("taxonomy", k.taxonomy),
				zap.String("kind", string(k.kind)),
				zap.Time("fetched_at", stale.fetched),
				zap.Error(err),
			)
			return stale.set, nil
		}
		return nil, fmt.Errorf("resolve %s schema: %w: %w", k, domain.ErrSchemaUnavailable, err)
	}

	r.mu.Lock()
	r.entries[k] = entry{set: set, fetched: r.now()}
	r.mu.Unlock()
	return set, nil
}

// ResolveAll resolves the kind for each category concurrently. An empty
// identifier schema falls back to the taxon identifiers.
func (r *Registry) ResolveAll(
	ctx context.Context, categories []string, taxonomy string, kind domschema.Kind,
) (map[string]*domschema.Set, error) {
	var mu sync.Mutex
	out := make(map[string]*domschema.Set, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for _, category := range categories {
		g.Go(func() error {
			set, err := r.Resolve(gctx, category, taxonomy, kind)
			if err != nil {
				return err
			}
			if kind == domschema.Identifiers && set.Len() == 0 && category != request.DefaultCategory {
				set, err = r.Resolve(gctx, request.DefaultCategory, taxonomy, kind)
				if err != nil {
					return err
				}
			}
			mu.Lock()
			out[category] = set
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve all: %w", err)
	}
	return out, nil
}

// Run refetches every known key each interval until ctx is done. Failed
// refreshes keep the previous snapshot.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll refetches every cached key once.
func (r *Registry) RefreshAll(ctx context.Context) {
	for _, k := range r.keys() {
		if ctx.Err() != nil {
			return
		}
		_, _, _ = r.group.Do(k.String(), func() (any, error) {
			return r.refresh(ctx, k)
		})
	}
	r.logger.Debug("Schema snapshots refreshed", zap.Int("keys", r.Len()))
}

func (r *Registry) keys() []key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]key, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	return out
}

// Len returns the number of cached snapshots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
