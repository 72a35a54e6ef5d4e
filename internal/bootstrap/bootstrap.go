// Package bootstrap assembles the engine and its infrastructure from a
// Config. The apiserver, the worker and the CLI all start here.
package bootstrap

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/worker"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/reference"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/cache"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/enrichment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/rules"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// HealthCheck is one dependency probe.
type HealthCheck struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (h HealthCheck) Name() string                    { return h.Label }
func (h HealthCheck) Check(ctx context.Context) error { return h.Fn(ctx) }

// App holds every long-lived component. Fields for disabled features are
// nil.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics
	Limiters  *resilience.LimiterSet

	Store    *reference.Store
	Matcher  *registry.Matcher
	Oracle   oracle.GapFiller
	Rules    *rules.Engine
	Cache    cache.Cache
	Enricher *enrichment.Enricher
	Service  *assessment.Service

	Redis     *redis.Client
	Claims    *redis.Claims
	MinIO     *minio.Client
	Producer  *kafka.Producer
	Submitter *worker.Submitter
	Topics    *kafka.TopicManager

	checks  []HealthCheck
	closers []func() error
}

// Option adjusts what Build connects.
type Option func(*options)

type options struct {
	claims  bool
	noKafka bool
	minio   bool
	fetcher registry.Fetcher
}

// WithClaims connects Redis for request deduplication even when the
// enrichment cache does not use it.
func WithClaims() Option {
	return func(o *options) { o.claims = true }
}

// WithoutKafka skips the producer and topic manager, for one-shot CLI use.
func WithoutKafka() Option {
	return func(o *options) { o.noKafka = true }
}

// WithMinIO connects object storage even when reference data is not read
// from it.
func WithMinIO() Option {
	return func(o *options) { o.minio = true }
}

// WithRegistryFetcher overrides where registry snapshots are read from.
func WithRegistryFetcher(f registry.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// Build wires an App. On error every component opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app = &App{Config: cfg, Logger: logger, Limiters: resilience.NewLimiterSet()}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if err = app.initMetrics(); err != nil {
		return nil, err
	}
	if err = app.initStorage(ctx, o); err != nil {
		return nil, err
	}
	if err = app.initReference(ctx, o); err != nil {
		return nil, err
	}
	if err = app.initIntelligence(); err != nil {
		return nil, err
	}
	if err = app.initCache(o); err != nil {
		return nil, err
	}
	if !o.noKafka {
		if err = app.initKafka(ctx); err != nil {
			return nil, err
		}
	}
	app.initService()

	logger.Info("engine assembled",
		logging.String("reference_source", cfg.Reference.Source),
		logging.Int("countries", app.Store.CountryCount()),
		logging.Int("industries", app.Store.IndustryCount()),
		logging.Bool("oracle", !oracle.IsDisabled(app.Oracle)),
		logging.Strings("enrichment", app.Enricher.Sources()),
		logging.Bool("kafka", app.Producer != nil),
	)
	return app, nil
}

func (a *App) initMetrics() error {
	if !a.Config.Metrics.Enabled {
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            a.Config.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Collector = collector
	a.Metrics = prometheus.NewAppMetrics(collector)
	return nil
}

func (a *App) initStorage(ctx context.Context, o options) error {
	needRedis := o.claims || (a.Config.Enrichment.Enabled && a.Config.Enrichment.Cache == "redis")
	if needRedis {
		client, err := redis.NewClient(a.Config.Redis, a.Logger)
		if err != nil {
			return err
		}
		a.Redis = client
		a.Claims = redis.NewClaims(client, a.Logger)
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, HealthCheck{Label: "redis", Fn: client.Ping})
	}

	if o.minio || a.Config.Reference.Source == "minio" {
		client, err := minio.NewClient(ctx, a.Config.MinIO, a.Logger)
		if err != nil {
			return err
		}
		a.MinIO = client
		a.checks = append(a.checks, HealthCheck{Label: "minio", Fn: client.Ping})
	}
	return nil
}

func (a *App) initReference(ctx context.Context, o options) error {
	rc := a.Config.Reference
	normalizer := reference.NewNormalizer(nil)

	kinds := make([]registry.Kind, 0, len(rc.RegistryPriority))
	for _, s := range rc.RegistryPriority {
		k, ok := registry.ParseKind(s)
		if !ok {
			return errors.Newf(errors.ErrCodeConfigInvalid, "bootstrap: unknown registry %q", s)
		}
		kinds = append(kinds, k)
	}

	var (
		store     *reference.Store
		snapshots []*registry.Snapshot
		err       error
	)
	fetcher := o.fetcher
	switch rc.Source {
	case "file":
		store, err = reference.LoadFiles(rc.CountriesPath, rc.IndustriesPath, normalizer)
		if fetcher == nil {
			fetcher = registry.DirFetcher(rc.RegistryDir)
		}
	case "minio":
		store, err = a.MinIO.LoadReference(ctx, normalizer)
		if fetcher == nil {
			fetcher = a.MinIO
		}
	default:
		store, err = reference.LoadEmbedded(normalizer)
		if fetcher == nil {
			fetcher = registry.EmbeddedFetcher
		}
	}
	if err != nil {
		return err
	}
	if snapshots, err = registry.LoadAll(ctx, fetcher, kinds); err != nil {
		return err
	}

	a.Store = store
	a.Matcher = registry.NewMatcher(snapshots,
		registry.WithPriority(kinds...),
		registry.WithFuzzyThreshold(rc.FuzzyThreshold),
	)
	a.Metrics.SetReferenceSize("countries", store.CountryCount())
	a.Metrics.SetReferenceSize("industries", store.IndustryCount())
	for k, n := range a.Matcher.Counts() {
		a.Metrics.SetReferenceSize("registry_"+string(k), n)
	}
	return nil
}

func (a *App) initIntelligence() error {
	var observe resilience.StateObserver
	if a.Metrics != nil {
		observe = func(name string, state gobreaker.State) {
			a.Metrics.SetBreakerState(name, int(state))
		}
	}
	filler, err := oracle.NewFromConfig(a.Config.Oracle, a.Limiters, a.oracleMetrics(), a.Logger, observe)
	if err != nil {
		return err
	}
	a.Oracle = filler

	engine, err := rules.NewEmbeddedEngine(a.Logger)
	if err != nil {
		return err
	}
	a.Rules = engine
	return nil
}

func (a *App) initCache(o options) error {
	ec := a.Config.Enrichment
	var c cache.Cache = cache.Nop{}
	if ec.Enabled {
		switch ec.Cache {
		case "memory":
			mem, err := cache.NewMemory(cache.MemoryConfig{MaxSizeMB: ec.MemoryCacheMB})
			if err != nil {
				return err
			}
			a.closers = append(a.closers, mem.Close)
			c = mem
		case "redis":
			c = redis.NewCache(a.Redis, a.Logger,
				redis.WithPrefix(a.Config.Redis.KeyPrefix+"enrichment:"),
				redis.WithDefaultTTL(a.Config.Redis.DefaultTTL),
			)
		}
	}
	if a.Metrics != nil {
		c = cache.Instrument(c, "enrichment", a.Metrics)
	}
	a.Cache = c
	a.Enricher = enrichment.NewFromConfig(ec, c, a.Limiters, a.Oracle, a.enrichmentMetrics(), a.Logger)
	return nil
}

func (a *App) initKafka(ctx context.Context) error {
	kc := a.Config.Kafka
	if !kc.Enabled {
		return nil
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfigFrom(kc), a.kafkaMetrics(), a.Logger)
	if err != nil {
		return err
	}
	a.Producer = producer
	a.closers = append(a.closers, producer.Close)

	topics, err := kafka.NewTopicManager(kc.Brokers, a.Logger)
	if err != nil {
		return err
	}
	a.Topics = topics
	a.closers = append(a.closers, topics.Close)

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := topics.EnsureTopics(ensureCtx, kafka.DefaultTopics(kc.RequestTopic, kc.CompletedTopic, kc.DeadLetterTopic, 1)); err != nil {
		return err
	}
	a.checks = append(a.checks, HealthCheck{Label: "kafka", Fn: func(ctx context.Context) error {
		ok, err := topics.TopicExists(ctx, kc.RequestTopic)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrCodeMessageQueue, "kafka: request topic missing").WithDetail(kc.RequestTopic)
		}
		return nil
	}})

	requests := kafka.NewEventPublisher(producer, kc.RequestTopic, kafka.EventAssessmentRequested, "msrisk-apiserver")
	a.Submitter = worker.NewSubmitter(requests, uuid.NewString)
	return nil
}

func (a *App) initService() {
	opts := []assessment.ServiceOption{
		assessment.WithRules(a.Rules),
		assessment.WithEnricher(a.Enricher),
		assessment.WithLogger(a.Logger),
		assessment.WithConfig(a.Config.Assessment),
		assessment.WithOracleConcurrency(a.Config.Oracle.MaxConcurrency),
	}
	if a.Metrics != nil {
		opts = append(opts, assessment.WithMetrics(a.Metrics))
	}
	if a.Producer != nil {
		completed := kafka.NewEventPublisher(a.Producer, a.Config.Kafka.CompletedTopic, kafka.EventAssessmentCompleted, "msrisk-engine")
		opts = append(opts, assessment.WithPublisher(completed))
	}
	a.Service = assessment.NewService(a.Store, a.Matcher, a.Oracle, opts...)
}

// HealthChecks returns one probe per connected dependency.
func (a *App) HealthChecks() []HealthCheck {
	return append([]HealthCheck(nil), a.checks...)
}

// Close releases every component in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", logging.Err(err))
		}
	}
	a.closers = nil
}

// The metric adapters below return untyped nil when metrics are disabled so
// the consumers fall back to their own no-op implementations.

func (a *App) oracleMetrics() oracle.Metrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}

func (a *App) enrichmentMetrics() enrichment.Metrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}

func (a *App) kafkaMetrics() kafka.Metrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}
