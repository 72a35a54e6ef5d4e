// Package config defines the configuration structures for the
// SlaveryRisk-Intelligence engine. No I/O lives in this file, only plain data
// types and validation.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Version is the build version, set with -ldflags "-X ...config.Version=".
var Version = "dev"

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	RateBurst       int           `mapstructure:"rate_burst"`
}

// BreakerConfig tunes a circuit breaker guarding an external dependency.
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// OracleConfig configures the generative gap-filling oracle. The endpoint
// speaks the OpenAI chat-completions protocol.
type OracleConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

// SourceConfig configures one HTTP enrichment source.
type SourceConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// NewsConfig extends SourceConfig with query shaping.
type NewsConfig struct {
	SourceConfig `mapstructure:",squash"`
	LookbackDays int      `mapstructure:"lookback_days"`
	PageSize     int      `mapstructure:"page_size"`
	Keywords     []string `mapstructure:"keywords"`
}

// EnrichmentConfig configures supplementary country and news context.
type EnrichmentConfig struct {
	Enabled       bool         `mapstructure:"enabled"`
	Cache         string       `mapstructure:"cache"` // "memory" | "redis" | "none"
	MemoryCacheMB int          `mapstructure:"memory_cache_mb"`
	Sentiment     bool         `mapstructure:"sentiment"`
	WorldBank     SourceConfig `mapstructure:"world_bank"`
	News          NewsConfig   `mapstructure:"news"`
}

// ReferenceConfig selects where the reference tables and registry snapshots
// are read from.
type ReferenceConfig struct {
	Source           string   `mapstructure:"source"` // "embedded" | "file" | "minio"
	CountriesPath    string   `mapstructure:"countries_path"`
	IndustriesPath   string   `mapstructure:"industries_path"`
	RegistryDir      string   `mapstructure:"registry_dir"`
	RegistryPriority []string `mapstructure:"registry_priority"`
	FuzzyThreshold   float64  `mapstructure:"fuzzy_threshold"`
}

// RedisConfig holds Redis connection parameters for the shared enrichment cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds assessment event stream parameters.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	RequestTopic    string        `mapstructure:"request_topic"`
	CompletedTopic  string        `mapstructure:"completed_topic"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// MinIOConfig holds object-storage parameters for reference snapshots.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// AssessmentConfig holds engine-level execution parameters.
type AssessmentConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	MaxBatchSize     int           `mapstructure:"max_batch_size"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ReviewInterval   time.Duration `mapstructure:"review_interval"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. Every component reads its
// settings from the relevant sub-struct; nothing reads globals.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        logging.LogConfig `mapstructure:"log"`
	Oracle     OracleConfig      `mapstructure:"oracle"`
	Enrichment EnrichmentConfig  `mapstructure:"enrichment"`
	Reference  ReferenceConfig   `mapstructure:"reference"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Assessment AssessmentConfig  `mapstructure:"assessment"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeConfigInvalid, "config: "+format, args...)
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered. Every error carries a CFG_ code and
// callers refuse to start on it.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return invalid("server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RatePerSecond < 0 {
		return invalid("server.rate_per_second must be ≥ 0, got %v", c.Server.RatePerSecond)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Oracle
	if c.Oracle.Enabled {
		if err := validURL("oracle.base_url", c.Oracle.BaseURL); err != nil {
			return err
		}
		if c.Oracle.Model == "" {
			return invalid("oracle.model is required when the oracle is enabled")
		}
	}
	if c.Oracle.Timeout <= 0 {
		return invalid("oracle.timeout must be positive, got %s", c.Oracle.Timeout)
	}
	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
		return invalid("oracle.temperature %v is out of range [0, 2]", c.Oracle.Temperature)
	}
	if c.Oracle.RatePerSecond <= 0 {
		return invalid("oracle.rate_per_second must be positive, got %v", c.Oracle.RatePerSecond)
	}
	if c.Oracle.MaxConcurrency < 1 {
		return invalid("oracle.max_concurrency must be ≥ 1, got %d", c.Oracle.MaxConcurrency)
	}

	// Enrichment
	switch c.Enrichment.Cache {
	case "memory", "redis", "none":
	default:
		return invalid("enrichment.cache %q is invalid; expected memory|redis|none", c.Enrichment.Cache)
	}
	if c.Enrichment.Enabled {
		if c.Enrichment.WorldBank.Enabled {
			if err := validURL("enrichment.world_bank.base_url", c.Enrichment.WorldBank.BaseURL); err != nil {
				return err
			}
		}
		if c.Enrichment.News.Enabled {
			if err := validURL("enrichment.news.base_url", c.Enrichment.News.BaseURL); err != nil {
				return err
			}
			if c.Enrichment.News.APIKey == "" {
				return invalid("enrichment.news.api_key is required when news enrichment is enabled")
			}
		}
		if c.Enrichment.Cache == "redis" && c.Redis.Addr == "" {
			return invalid("redis.addr is required when enrichment.cache is redis")
		}
	}

	// Reference
	switch c.Reference.Source {
	case "embedded":
	case "file":
		if c.Reference.CountriesPath == "" || c.Reference.IndustriesPath == "" || c.Reference.RegistryDir == "" {
			return invalid("reference.source=file requires countries_path, industries_path and registry_dir")
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return invalid("reference.source=minio requires minio.endpoint and minio.bucket")
		}
	default:
		return invalid("reference.source %q is invalid; expected embedded|file|minio", c.Reference.Source)
	}
	if len(c.Reference.RegistryPriority) == 0 {
		return invalid("reference.registry_priority must name at least one registry")
	}
	seen := make(map[string]bool, len(c.Reference.RegistryPriority))
	for _, k := range c.Reference.RegistryPriority {
		k = strings.ToUpper(strings.TrimSpace(k))
		switch k {
		case "UK", "AU", "BHR":
		default:
			return invalid("reference.registry_priority entry %q is unknown; expected UK|AU|BHR", k)
		}
		if seen[k] {
			return invalid("reference.registry_priority lists %s twice", k)
		}
		seen[k] = true
	}
	if c.Reference.FuzzyThreshold <= 0 || c.Reference.FuzzyThreshold > 1 {
		return invalid("reference.fuzzy_threshold %v is out of range (0, 1]", c.Reference.FuzzyThreshold)
	}

	// Redis
	if c.Redis.DB < 0 {
		return invalid("redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return invalid("kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return invalid("kafka.group_id is required")
		}
	}

	// Assessment
	if c.Assessment.BatchConcurrency < 1 {
		return invalid("assessment.batch_concurrency must be ≥ 1, got %d", c.Assessment.BatchConcurrency)
	}
	if c.Assessment.MaxBatchSize < 1 {
		return invalid("assessment.max_batch_size must be ≥ 1, got %d", c.Assessment.MaxBatchSize)
	}

	return nil
}

func validURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("%s %q is not an absolute URL", key, raw)
	}
	return nil
}
