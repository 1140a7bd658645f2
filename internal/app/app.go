// Package app wires stores, repositories and use cases into a running
// search stack. It is shared by the server binary and the library client.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taxdex/internal/config"
	"github.com/kailas-cloud/taxdex/internal/db"
	dbElastic "github.com/kailas-cloud/taxdex/internal/db/elastic"
	dbRedis "github.com/kailas-cloud/taxdex/internal/db/redis"
	domschema "github.com/kailas-cloud/taxdex/internal/domain/schema"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
	"github.com/kailas-cloud/taxdex/internal/metrics"
	progressrepo "github.com/kailas-cloud/taxdex/internal/repository/progress"
	schemarepo "github.com/kailas-cloud/taxdex/internal/repository/schema"
	searchrepo "github.com/kailas-cloud/taxdex/internal/repository/search"
	healthuc "github.com/kailas-cloud/taxdex/internal/usecase/health"
	schemauc "github.com/kailas-cloud/taxdex/internal/usecase/schema"
	searchuc "github.com/kailas-cloud/taxdex/internal/usecase/search"
)

const readinessTimeout = 10 * time.Second

// App is a wired search stack.
type App struct {
	Engine   db.Engine
	Registry *schemauc.Registry
	Search   *searchuc.Service
	Health   *healthuc.Service

	cfg     config.Config
	logger  *zap.Logger
	closers []func()
}

// New connects to Elasticsearch (and Redis for the redis progress backend)
// and wires the stack.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	engine, err := dbElastic.NewStore(dbElastic.Config{
		Addrs:          cfg.Elasticsearch.Addrs,
		Username:       cfg.Elasticsearch.Username,
		Password:       cfg.Elasticsearch.Password,
		MaxRetries:     cfg.Elasticsearch.MaxRetries,
		RequestTimeout: time.Duration(cfg.Elasticsearch.RequestTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch store: %w", err)
	}
	if err := engine.WaitForReady(ctx, readinessTimeout); err != nil {
		return nil, fmt.Errorf("elasticsearch not ready: %w", err)
	}
	logger.Info("Connected to elasticsearch", zap.Strings("addrs", cfg.Elasticsearch.Addrs))

	// Keep the pinger a nil interface for the memory backend.
	var (
		progress searchuc.ProgressStore
		pinger   healthuc.Pinger
		closers  []func()
	)
	switch cfg.Progress.Backend {
	case config.ProgressRedis:
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := kv.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			kv.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
		progress = progressrepo.New(kv, cfg.Progress.TTL)
		pinger = kv
		closers = append(closers, kv.Close)
	default:
		progress = progressrepo.NewMemory(cfg.Progress.TTL)
	}

	a := Wire(engine, progress, pinger, cfg, logger)
	a.closers = closers
	return a, nil
}

// Wire assembles the stack over already connected backends. pinger may be
// nil when progress is process-local.
func Wire(
	engine db.Engine,
	progress searchuc.ProgressStore,
	pinger healthuc.Pinger,
	cfg config.Config,
	logger *zap.Logger,
) *App {
	metrics.RegisterSearchMetrics()

	naming := cfg.Index.Naming()
	registry := schemauc.New(schemarepo.New(engine, naming), cfg.Schema.TTL, logger)
	search := searchuc.New(registry, searchrepo.New(engine, naming), progress, searchuc.Config{
		ScrollThreshold: cfg.Search.ScrollThreshold,
		BatchSize:       cfg.Search.ScrollBatchSize,
		KeepAlive:       cfg.Search.ScrollKeepAlive,
	}, logger)

	return &App{
		Engine:   engine,
		Registry: registry,
		Search:   search,
		Health:   healthuc.New(engine, pinger, registry),
		cfg:      cfg,
		logger:   logger,
	}
}

// Start warms the default schemas and refreshes cached schemas in the
// background until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.Warm(ctx)
	go a.Registry.Run(ctx, a.cfg.Schema.RefreshInterval)
}

// Warm loads the default category's schemas. Failures are logged; requests
// retry the fetch.
func (a *App) Warm(ctx context.Context) {
	taxonomy := a.cfg.Index.DefaultTaxonomy
	for _, kind := range []domschema.Kind{domschema.Attributes, domschema.Identifiers} {
		set, err := a.Registry.Resolve(ctx, request.DefaultCategory, taxonomy, kind)
		if err != nil {
			a.logger.Warn("Schema warm-up failed",
				zap.String("taxonomy", taxonomy),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			continue
		}
		a.logger.Info("Schema loaded",
			zap.String("taxonomy", taxonomy),
			zap.String("kind", string(kind)),
			zap.Int("attributes", set.Len()),
		)
	}
}

// Close releases backend connections.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
}
