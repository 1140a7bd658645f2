package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
)

// Progress backends.
const (
	ProgressMemory = "memory"
	ProgressRedis  = "redis"
)

// Config holds the taxdex API configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Index         IndexConfig         `yaml:"index"`
	Search        SearchConfig        `yaml:"search"`
	Schema        SchemaConfig        `yaml:"schema"`
	Progress      ProgressConfig      `yaml:"progress"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig holds cross-origin settings. Empty allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ElasticsearchConfig holds search engine connection settings.
type ElasticsearchConfig struct {
	Addrs             []string `yaml:"addrs"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	RequestTimeoutSec int      `yaml:"request_timeout_sec"`
	MaxRetries        int      `yaml:"max_retries"`
}

// IndexConfig holds backing index naming.
type IndexConfig struct {
	Separator       string `yaml:"separator"`
	Hub             string `yaml:"hub"`
	Release         string `yaml:"release"`
	DefaultTaxonomy string `yaml:"default_taxonomy"`
}

// Naming returns the index naming described by c.
func (c IndexConfig) Naming() domain.IndexNaming {
	return domain.IndexNaming{Separator: c.Separator, Hub: c.Hub, Release: c.Release}
}

// SearchConfig holds execution settings.
type SearchConfig struct {
	ScrollThreshold int           `yaml:"scroll_threshold"`
	ScrollBatchSize int           `yaml:"scroll_batch_size"`
	ScrollKeepAlive time.Duration `yaml:"scroll_keep_alive"`
	DefaultSize     int           `yaml:"default_size"`
	MaxSize         int           `yaml:"max_size"`
}

// SchemaConfig holds schema cache settings.
type SchemaConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ProgressConfig holds streamed-search progress settings.
type ProgressConfig struct {
	Backend string        `yaml:"backend"` // memory, redis (default: memory)
	TTL     time.Duration `yaml:"ttl"`
}

// RedisConfig holds the progress backend connection.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// streamed searches hold the connection for the whole scroll
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Elasticsearch.RequestTimeoutSec <= 0 {
		c.Elasticsearch.RequestTimeoutSec = 30
	}
	if c.Elasticsearch.MaxRetries <= 0 {
		c.Elasticsearch.MaxRetries = 3
	}

	naming := domain.DefaultIndexNaming()
	if c.Index.Separator == "" {
		c.Index.Separator = naming.Separator
	}
	if c.Index.Hub == "" {
		c.Index.Hub = naming.Hub
	}
	if c.Index.Release == "" {
		c.Index.Release = naming.Release
	}
	if c.Index.DefaultTaxonomy == "" {
		c.Index.DefaultTaxonomy = request.DefaultTaxonomy
	}

	if c.Search.ScrollThreshold <= 0 {
		c.Search.ScrollThreshold = 10000
	}
	if c.Search.ScrollBatchSize <= 0 {
		c.Search.ScrollBatchSize = 1000
	}
	if c.Search.ScrollKeepAlive <= 0 {
		c.Search.ScrollKeepAlive = time.Minute
	}
	if c.Search.DefaultSize <= 0 {
		c.Search.DefaultSize = request.DefaultSize
	}
	if c.Search.MaxSize <= 0 {
		c.Search.MaxSize = 100000
	}

	if c.Schema.TTL <= 0 {
		c.Schema.TTL = 24 * time.Hour
	}
	if c.Schema.RefreshInterval <= 0 {
		c.Schema.RefreshInterval = time.Hour
	}

	if c.Progress.Backend == "" {
		c.Progress.Backend = ProgressMemory
	}
	if c.Progress.TTL <= 0 {
		c.Progress.TTL = time.Hour
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Elasticsearch.Addrs) == 0 {
		return fmt.Errorf("elasticsearch.addrs is required")
	}
	if c.Search.ScrollBatchSize > c.Search.ScrollThreshold {
		return fmt.Errorf(
			"search.scroll_batch_size (%d) must not exceed search.scroll_threshold (%d)",
			c.Search.ScrollBatchSize, c.Search.ScrollThreshold,
		)
	}
	if c.Search.MaxSize > request.MaxSize {
		return fmt.Errorf("search.max_size must be at most %d, got %d", request.MaxSize, c.Search.MaxSize)
	}
	if c.Search.DefaultSize > c.Search.MaxSize {
		return fmt.Errorf("search.default_size must not exceed search.max_size")
	}
	switch c.Progress.Backend {
	case ProgressMemory:
	case ProgressRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for progress.backend %q", ProgressRedis)
		}
	default:
		return fmt.Errorf(
			"progress.backend must be %q or %q, got %q",
			ProgressMemory, ProgressRedis, c.Progress.Backend,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
