package enrichment

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/cache"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
)

// RecentArticles is how many articles a report carries.
const RecentArticles = 5

// CountryRef identifies a country to enrich.
type CountryRef struct {
	Name string
	ISO3 string
}

// Target is what to enrich.
type Target struct {
	Company   string
	Countries []CountryRef
}

// News is the media block of a report.
type News struct {
	ArticleCount int        `json:"article_count"`
	Articles     []Article  `json:"recent_articles"`
	Sentiment    *Sentiment `json:"sentiment,omitempty"`
}

// Report is everything enrichment found. Sources that failed are named in
// Warnings and otherwise left out.
type Report struct {
	Enabled   bool                `json:"enabled"`
	Countries []CountryIndicators `json:"world_bank,omitempty"`
	News      *News               `json:"news,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Metrics receives one observation per source call.
type Metrics interface {
	RecordEnrichment(source string, ok bool, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordEnrichment(string, bool, time.Duration) {}

// Enricher fans out to every configured source.
type Enricher struct {
	worldBank *WorldBankClient
	news      *NewsClient
	analyzer  *Analyzer
	cache     *cache.Loading
	wbTTL     time.Duration
	newsTTL   time.Duration
	metrics   Metrics
	logger    logging.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithWorldBank enables indicator lookups cached for ttl.
func WithWorldBank(c *WorldBankClient, ttl time.Duration) Option {
	return func(e *Enricher) { e.worldBank, e.wbTTL = c, ttl }
}

// WithNews enables news search cached for ttl.
func WithNews(c *NewsClient, ttl time.Duration) Option {
	return func(e *Enricher) { e.news, e.newsTTL = c, ttl }
}

// WithSentiment scores news headlines.
func WithSentiment(a *Analyzer) Option {
	return func(e *Enricher) { e.analyzer = a }
}

// WithCache sets the response cache.
func WithCache(c cache.Cache) Option {
	return func(e *Enricher) {
		if c != nil {
			e.cache = cache.NewLoading(c)
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(e *Enricher) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(e *Enricher) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an Enricher. With no sources it is disabled.
func New(opts ...Option) *Enricher {
	e := &Enricher{
		cache:   cache.NewLoading(cache.Nop{}),
		metrics: nopMetrics{},
		logger:  logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.Named("enrichment")
	return e
}

// NewFromConfig wires the sources enabled in cfg.
func NewFromConfig(cfg config.EnrichmentConfig, c cache.Cache, limiters *resilience.LimiterSet, filler oracle.GapFiller, metrics Metrics, logger logging.Logger) *Enricher {
	if !cfg.Enabled {
		return New(WithLogger(logger))
	}
	if limiters == nil {
		limiters = resilience.NewLimiterSet()
	}
	opts := []Option{WithCache(c), WithMetrics(metrics), WithLogger(logger)}
	if wb := cfg.WorldBank; wb.Enabled {
		l := limiters.Register(resilience.DependencyWorldBank, wb.RatePerSecond, wb.Burst)
		opts = append(opts, WithWorldBank(NewWorldBankClient(wb.BaseURL, &http.Client{}, l, wb.Timeout), wb.CacheTTL))
	}
	if n := cfg.News; n.Enabled {
		l := limiters.Register(resilience.DependencyNews, n.RatePerSecond, n.Burst)
		client := NewNewsClient(n.BaseURL, n.APIKey, NewsOptions{
			Keywords:     n.Keywords,
			LookbackDays: n.LookbackDays,
			PageSize:     n.PageSize,
		}, &http.Client{}, l, n.Timeout)
		opts = append(opts, WithNews(client, n.CacheTTL))
		if cfg.Sentiment {
			opts = append(opts, WithSentiment(NewAnalyzer(filler)))
		}
	}
	return New(opts...)
}

// Enabled reports whether any source is configured.
func (e *Enricher) Enabled() bool {
	return e != nil && (e.worldBank != nil || e.news != nil)
}

// Sources lists the configured sources.
func (e *Enricher) Sources() []string {
	var out []string
	if e == nil {
		return out
	}
	if e.worldBank != nil {
		out = append(out, SourceWorldBank)
	}
	if e.news != nil {
		out = append(out, SourceNews)
		if e.analyzer != nil {
			out = append(out, SourceSentiment)
		}
	}
	return out
}

// Enrich queries every source concurrently. It never fails.
func (e *Enricher) Enrich(ctx context.Context, t Target) Report {
	if !e.Enabled() {
		return Report{}
	}
	rep := Report{Enabled: true}
	var mu sync.Mutex
	warn := func(source, subject string, err error) {
		e.logger.Warn("enrichment source failed",
			logging.String("source", source),
			logging.String("subject", subject),
			logging.Err(err),
		)
		mu.Lock()
		rep.Warnings = append(rep.Warnings, source+": "+subject+": "+err.Error())
		mu.Unlock()
	}

	var wg conc.WaitGroup
	var countries []CountryIndicators
	if e.worldBank != nil {
		refs := dedupeCountries(t.Countries)
		countries = make([]CountryIndicators, len(refs))
		for i, ref := range refs {
			i, ref := i, ref
			wg.Go(func() {
				ci, err := e.indicators(ctx, ref)
				if err != nil {
					warn(SourceWorldBank, ref.Name, err)
					return
				}
				countries[i] = ci
			})
		}
	}
	if e.news != nil && strings.TrimSpace(t.Company) != "" {
		wg.Go(func() {
			articles, err := e.articles(ctx, t.Company)
			if err != nil {
				warn(SourceNews, t.Company, err)
				return
			}
			news := &News{ArticleCount: len(articles), Articles: articles}
			if len(news.Articles) > RecentArticles {
				news.Articles = news.Articles[:RecentArticles]
			}
			if e.analyzer != nil {
				start := time.Now()
				s, err := e.analyzer.Analyze(ctx, t.Company, articles)
				e.metrics.RecordEnrichment(SourceSentiment, err == nil, time.Since(start))
				if err != nil {
					warn(SourceSentiment, t.Company, err)
				}
				news.Sentiment = s
			}
			mu.Lock()
			rep.News = news
			mu.Unlock()
		})
	}
	wg.Wait()

	for _, ci := range countries {
		if ci.ISO3 != "" {
			rep.Countries = append(rep.Countries, ci)
		}
	}
	return rep
}

func (e *Enricher) indicators(ctx context.Context, ref CountryRef) (CountryIndicators, error) {
	var ci CountryIndicators
	err := e.cache.GetOrSet(ctx, "wb:"+strings.ToUpper(ref.ISO3), &ci, e.wbTTL, func(ctx context.Context) (interface{}, error) {
		start := time.Now()
		v, err := e.worldBank.Fetch(ctx, ref.Name, ref.ISO3)
		e.metrics.RecordEnrichment(SourceWorldBank, err == nil, time.Since(start))
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	return ci, err
}

func (e *Enricher) articles(ctx context.Context, company string) ([]Article, error) {
	var out []Article
	err := e.cache.GetOrSet(ctx, "news:"+strings.ToLower(strings.TrimSpace(company)), &out, e.newsTTL, func(ctx context.Context) (interface{}, error) {
		start := time.Now()
		v, err := e.news.Search(ctx, company)
		e.metrics.RecordEnrichment(SourceNews, err == nil, time.Since(start))
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	return out, err
}

func dedupeCountries(in []CountryRef) []CountryRef {
	var out []CountryRef
	seen := make(map[string]bool)
	for _, c := range in {
		k := strings.ToUpper(c.ISO3)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
