package taxdex

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taxdex/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg    config.Config
	logger *zap.Logger
}

// WithElasticsearch sets the cluster addresses.
func WithElasticsearch(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Elasticsearch.Addrs = addrs
	})
}

// WithBasicAuth sets Elasticsearch credentials.
func WithBasicAuth(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Elasticsearch.Username = username
		c.cfg.Elasticsearch.Password = password
	})
}

// WithRelease selects the hub and release the backing indices belong to,
// e.g. ("goat", "2024.01").
func WithRelease(hub, release string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Index.Hub = hub
		c.cfg.Index.Release = release
	})
}

// WithTaxonomy sets the taxonomy used when a search names none.
func WithTaxonomy(taxonomy string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Index.DefaultTaxonomy = taxonomy
	})
}

// WithScroll tunes streamed execution: searches asking for at least
// threshold records scroll in batches of batchSize.
func WithScroll(threshold, batchSize int, keepAlive time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.ScrollThreshold = threshold
		c.cfg.Search.ScrollBatchSize = batchSize
		c.cfg.Search.ScrollKeepAlive = keepAlive
	})
}

// WithSchemaTTL sets how long fetched attribute schemas are served from cache.
func WithSchemaTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Schema.TTL = ttl
	})
}

// WithRedisProgress keeps streamed-search progress in Redis so other
// processes can read it.
func WithRedisProgress(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Progress.Backend = config.ProgressRedis
		c.cfg.Progress.TTL = ttl
		c.cfg.Redis.Addrs = []string{addr}
		c.cfg.Redis.Password = password
	})
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
