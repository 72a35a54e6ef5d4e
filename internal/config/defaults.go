// Package config provides configuration loading, defaults, and validation for
// the SlaveryRisk-Intelligence engine.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 60 * time.Second
	DefaultServerMaxBodySize     = 1 << 20
	DefaultServerShutdownTimeout = 15 * time.Second
	DefaultServerRatePerSecond   = 20.0
	DefaultServerRateBurst       = 40

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultOracleBaseURL        = "https://api.openai.com/v1"
	DefaultOracleModel          = "gpt-4"
	DefaultOracleTemperature    = 0.3
	DefaultOracleMaxTokens      = 2000
	DefaultOracleTimeout        = 30 * time.Second
	DefaultOracleRatePerSecond  = 2.0
	DefaultOracleBurst          = 4
	DefaultOracleMaxConcurrency = 4

	DefaultBreakerMaxRequests      = 1
	DefaultBreakerInterval         = 60 * time.Second
	DefaultBreakerTimeout          = 30 * time.Second
	DefaultBreakerFailureThreshold = 5

	DefaultWorldBankBaseURL = "https://api.worldbank.org/v2"
	DefaultWorldBankTimeout = 10 * time.Second
	DefaultWorldBankTTL     = 24 * time.Hour
	DefaultNewsBaseURL      = "https://newsapi.org/v2"
	DefaultNewsTimeout      = 10 * time.Second
	DefaultNewsTTL          = 6 * time.Hour
	DefaultNewsLookbackDays = 365
	DefaultNewsPageSize     = 10
	DefaultSourceRate       = 5.0
	DefaultSourceBurst      = 5
	DefaultEnrichmentCache  = "memory"
	DefaultMemoryCacheMB    = 64

	DefaultReferenceSource = "embedded"
	DefaultFuzzyThreshold  = 0.9

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "msrisk:"
	DefaultRedisTTL       = 24 * time.Hour

	DefaultKafkaBroker          = "localhost:9092"
	DefaultKafkaGroupID         = "msrisk-worker"
	DefaultKafkaRequestTopic    = "msrisk.assessment.requested"
	DefaultKafkaCompletedTopic  = "msrisk.assessment.completed"
	DefaultKafkaDeadLetterTopic = "msrisk.assessment.dlq"
	DefaultKafkaWriteTimeout    = 10 * time.Second
	DefaultKafkaMaxRetries      = 3
	DefaultKafkaConcurrency     = 4

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "msrisk-reference"

	DefaultMetricsNamespace = "msrisk"
	DefaultMetricsPath      = "/metrics"

	DefaultBatchConcurrency = 4
	DefaultMaxBatchSize     = 100
	DefaultAssessTimeout    = 2 * time.Minute
	DefaultReviewInterval   = 90 * 24 * time.Hour
)

// DefaultRegistryPriority is the order registries are consulted in.
var DefaultRegistryPriority = []string{"UK", "AU", "BHR"}

// DefaultNewsKeywords are OR-ed with the company name in news queries.
var DefaultNewsKeywords = []string{"modern slavery", "forced labor", "labor violations", "supply chain"}

// registerBoolDefaults seeds viper with defaults for switches whose zero value
// is not the default. ApplyDefaults cannot tell false from unset.
func registerBoolDefaults(v *viper.Viper) {
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.sentiment", true)
	v.SetDefault("enrichment.world_bank.enabled", true)
	v.SetDefault("enrichment.news.enabled", false)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("minio.use_ssl", false)
}

// ApplyDefaults fills every zero-value field in cfg with the engine default.
// Fields already set are left unchanged so explicit configuration wins.
// It must run after unmarshalling and before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.RatePerSecond == 0 {
		cfg.Server.RatePerSecond = DefaultServerRatePerSecond
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = DefaultServerRateBurst
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Oracle ────────────────────────────────────────────────────────────────
	if cfg.Oracle.BaseURL == "" {
		cfg.Oracle.BaseURL = DefaultOracleBaseURL
	}
	if cfg.Oracle.Model == "" {
		cfg.Oracle.Model = DefaultOracleModel
	}
	if cfg.Oracle.Temperature == 0 {
		cfg.Oracle.Temperature = DefaultOracleTemperature
	}
	if cfg.Oracle.MaxTokens == 0 {
		cfg.Oracle.MaxTokens = DefaultOracleMaxTokens
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = DefaultOracleTimeout
	}
	if cfg.Oracle.RatePerSecond == 0 {
		cfg.Oracle.RatePerSecond = DefaultOracleRatePerSecond
	}
	if cfg.Oracle.Burst == 0 {
		cfg.Oracle.Burst = DefaultOracleBurst
	}
	if cfg.Oracle.MaxConcurrency == 0 {
		cfg.Oracle.MaxConcurrency = DefaultOracleMaxConcurrency
	}
	applyBreakerDefaults(&cfg.Oracle.Breaker)

	// ── Enrichment ────────────────────────────────────────────────────────────
	if cfg.Enrichment.Cache == "" {
		cfg.Enrichment.Cache = DefaultEnrichmentCache
	}
	if cfg.Enrichment.MemoryCacheMB == 0 {
		cfg.Enrichment.MemoryCacheMB = DefaultMemoryCacheMB
	}
	applySourceDefaults(&cfg.Enrichment.WorldBank, DefaultWorldBankBaseURL, DefaultWorldBankTimeout, DefaultWorldBankTTL)
	applySourceDefaults(&cfg.Enrichment.News.SourceConfig, DefaultNewsBaseURL, DefaultNewsTimeout, DefaultNewsTTL)
	if cfg.Enrichment.News.LookbackDays == 0 {
		cfg.Enrichment.News.LookbackDays = DefaultNewsLookbackDays
	}
	if cfg.Enrichment.News.PageSize == 0 {
		cfg.Enrichment.News.PageSize = DefaultNewsPageSize
	}
	if len(cfg.Enrichment.News.Keywords) == 0 {
		cfg.Enrichment.News.Keywords = append([]string(nil), DefaultNewsKeywords...)
	}

	// ── Reference ─────────────────────────────────────────────────────────────
	if cfg.Reference.Source == "" {
		cfg.Reference.Source = DefaultReferenceSource
	}
	if len(cfg.Reference.RegistryPriority) == 0 {
		cfg.Reference.RegistryPriority = append([]string(nil), DefaultRegistryPriority...)
	}
	if cfg.Reference.FuzzyThreshold == 0 {
		cfg.Reference.FuzzyThreshold = DefaultFuzzyThreshold
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.CompletedTopic == "" {
		cfg.Kafka.CompletedTopic = DefaultKafkaCompletedTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultKafkaDeadLetterTopic
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.Concurrency == 0 {
		cfg.Kafka.Concurrency = DefaultKafkaConcurrency
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Assessment ────────────────────────────────────────────────────────────
	if cfg.Assessment.BatchConcurrency == 0 {
		cfg.Assessment.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Assessment.MaxBatchSize == 0 {
		cfg.Assessment.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Assessment.Timeout == 0 {
		cfg.Assessment.Timeout = DefaultAssessTimeout
	}
	if cfg.Assessment.ReviewInterval == 0 {
		cfg.Assessment.ReviewInterval = DefaultReviewInterval
	}
}

func applyBreakerDefaults(b *BreakerConfig) {
	if b.MaxRequests == 0 {
		b.MaxRequests = DefaultBreakerMaxRequests
	}
	if b.Interval == 0 {
		b.Interval = DefaultBreakerInterval
	}
	if b.Timeout == 0 {
		b.Timeout = DefaultBreakerTimeout
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = DefaultBreakerFailureThreshold
	}
}

func applySourceDefaults(s *SourceConfig, baseURL string, timeout, ttl time.Duration) {
	if s.BaseURL == "" {
		s.BaseURL = baseURL
	}
	if s.Timeout == 0 {
		s.Timeout = timeout
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = ttl
	}
	if s.RatePerSecond == 0 {
		s.RatePerSecond = DefaultSourceRate
	}
	if s.Burst == 0 {
		s.Burst = DefaultSourceBurst
	}
}

// Default returns a Config populated entirely from defaults. It is what the
// CLI uses when no config file is given.
func Default() *Config {
	cfg := &Config{
		Enrichment: EnrichmentConfig{
			Enabled:   true,
			Sentiment: true,
			WorldBank: SourceConfig{Enabled: true},
		},
		Metrics: MetricsConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
