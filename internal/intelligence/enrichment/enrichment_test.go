package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/cache"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

func wbPayload(name string, obs ...interface{}) string {
	rows := make([]map[string]interface{}, 0, len(obs)/2)
	for i := 0; i+1 < len(obs); i += 2 {
		rows = append(rows, map[string]interface{}{
			"indicator": map[string]string{"id": "x", "value": name},
			"date":      obs[i],
			"value":     obs[i+1],
		})
	}
	b, _ := json.Marshal([]interface{}{map[string]int{"page": 1}, rows})
	return string(b)
}

type fakeWorldBank struct {
	calls   int32
	mu      sync.Mutex
	queries []string
	fail    map[string]int
}

func (f *fakeWorldBank) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.RawQuery)
		f.mu.Unlock()

		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v2/country/"), "/")
		if !assert.Len(t, parts, 3) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		code := parts[2]
		if status, ok := f.fail[code]; ok {
			w.WriteHeader(status)
			return
		}
		switch code {
		case IndicatorGDPPerCapita:
			fmt.Fprint(w, wbPayload("GDP per capita (current US$)", "2023", 2238.2, "2022", 2175.9))
		case IndicatorGini:
			// Latest year not yet published.
			fmt.Fprint(w, wbPayload("Gini index", "2023", nil, "2022", nil, "2021", 43.5))
		case IndicatorUnemployment:
			fmt.Fprint(w, `[{"page":1,"total":0},null]`)
		default:
			fmt.Fprint(w, wbPayload(code, "2022", -0.12))
		}
	}
}

func newsBody(n int) string {
	arts := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		arts = append(arts, map[string]interface{}{
			"source":      map[string]string{"name": "Wire"},
			"title":       fmt.Sprintf("Headline %d", i),
			"url":         fmt.Sprintf("https://news.example/%d", i),
			"publishedAt": "2026-03-01T10:00:00Z",
		})
	}
	arts = append(arts, map[string]interface{}{"title": "[Removed]"})
	b, _ := json.Marshal(map[string]interface{}{"status": "ok", "totalResults": n, "articles": arts})
	return string(b)
}

type fakeFiller struct {
	calls int32
	value float64
	err   error
	got   oracle.Context
}

func (f *fakeFiller) Estimate(_ context.Context, fields []oracle.Field, c oracle.Context) oracle.Estimate {
	atomic.AddInt32(&f.calls, 1)
	f.got = c
	if f.err != nil {
		return oracle.Estimate{Err: f.err}
	}
	return oracle.Estimate{Values: map[oracle.Field]float64{fields[0]: f.value}, Reasoning: "coverage"}
}

type metricsRecorder struct {
	mu  sync.Mutex
	got map[string][]bool
}

func (m *metricsRecorder) RecordEnrichment(source string, ok bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.got == nil {
		m.got = map[string][]bool{}
	}
	m.got[source] = append(m.got[source], ok)
}

// ─────────────────────────────────────────────────────────────────────────────
// World Bank
// ─────────────────────────────────────────────────────────────────────────────

func TestWorldBankClient_Fetch(t *testing.T) {
	fake := &fakeWorldBank{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := NewWorldBankClient(srv.URL+"/v2/", nil, nil, time.Second)
	got, err := c.Fetch(context.Background(), "Ghana", "GHA")
	require.NoError(t, err)

	assert.Equal(t, "Ghana", got.Country)
	assert.Equal(t, int32(len(Indicators)), atomic.LoadInt32(&fake.calls))
	assert.Equal(t, IndicatorValue{Name: "GDP per capita (current US$)", Value: 2238.2, Year: "2023"}, got.Indicators[IndicatorGDPPerCapita])
	assert.Equal(t, IndicatorValue{Name: "Gini index", Value: 43.5, Year: "2021"}, got.Indicators[IndicatorGini])
	assert.NotContains(t, got.Indicators, IndicatorUnemployment)
	assert.Len(t, got.Indicators, 5)

	for _, q := range fake.queries {
		assert.Contains(t, q, "date=2020%3A2023")
		assert.Contains(t, q, "format=json")
	}
}

func TestWorldBankClient_PartialFailure(t *testing.T) {
	fake := &fakeWorldBank{fail: map[string]int{IndicatorRuleOfLaw: http.StatusBadGateway}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	got, err := NewWorldBankClient(srv.URL+"/v2", nil, nil, time.Second).Fetch(context.Background(), "Ghana", "GHA")
	require.NoError(t, err)
	assert.NotContains(t, got.Indicators, IndicatorRuleOfLaw)
	assert.Contains(t, got.Indicators, IndicatorGovEffectiveness)
}

func TestWorldBankClient_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"message":[{"id":"120","key":"Invalid value"}]}]`)
	}))
	defer srv.Close()

	_, err := NewWorldBankClient(srv.URL, nil, nil, time.Second).Fetch(context.Background(), "Atlantis", "ATL")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEnrichmentMalformed))
}

func TestWorldBankClient_NoISO3(t *testing.T) {
	_, err := NewWorldBankClient("http://unused", nil, nil, time.Second).Fetch(context.Background(), "Atlantis", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEnrichmentUnavailable))
}

func TestWorldBankClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewWorldBankClient(srv.URL, nil, nil, 20*time.Millisecond).Fetch(context.Background(), "Ghana", "GHA")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

// ─────────────────────────────────────────────────────────────────────────────
// News
// ─────────────────────────────────────────────────────────────────────────────

func TestQuery(t *testing.T) {
	assert.Equal(t, `"Acme Ltd"`, Query("Acme Ltd", nil))
	assert.Equal(t,
		`"Acme Ltd" AND ("modern slavery" OR "forced labor" OR trafficking)`,
		Query("Acme Ltd", []string{"modern slavery", "forced labor", "trafficking"}))
}

func TestNewsClient_Search(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/everything", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-Api-Key")
		fmt.Fprint(w, newsBody(3))
	}))
	defer srv.Close()

	c := NewNewsClient(srv.URL, "secret", NewsOptions{Keywords: config.DefaultNewsKeywords}, nil, nil, time.Second)
	c.now = func() time.Time { return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) }

	arts, err := c.Search(context.Background(), "Acme Ltd")
	require.NoError(t, err)
	require.Len(t, arts, 3)
	assert.Equal(t, "Wire", arts[0].Source)
	assert.Equal(t, "Headline 0", arts[0].Title)
	assert.Equal(t, 2026, arts[0].PublishedAt.Year())

	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, gotQuery, "from=2025-10-16")
	assert.Contains(t, gotQuery, "pageSize=10")
	assert.Contains(t, gotQuery, "sortBy=relevancy")
	assert.Contains(t, gotQuery, "language=en")
}

func TestNewsClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`)
	}))
	defer srv.Close()

	_, err := NewNewsClient(srv.URL, "bad", NewsOptions{}, nil, nil, time.Second).Search(context.Background(), "Acme")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEnrichmentUnavailable))
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}

func TestNewsClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewNewsClient(srv.URL, "k", NewsOptions{}, nil, nil, time.Second).Search(context.Background(), "Acme")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEnrichmentUnavailable))
}

func TestNewsClient_RateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewNewsClient("http://unused", "k", NewsOptions{}, nil, resilience.NewTokenBucket("news", 1, 1), time.Second)
	_, err := c.Search(ctx, "Acme")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEnrichmentUnavailable))
}

// ─────────────────────────────────────────────────────────────────────────────
// Sentiment
// ─────────────────────────────────────────────────────────────────────────────

func TestLabelFor(t *testing.T) {
	assert.Equal(t, SentimentNegative, LabelFor(0))
	assert.Equal(t, SentimentNegative, LabelFor(29.9))
	assert.Equal(t, SentimentMixed, LabelFor(30))
	assert.Equal(t, SentimentMixed, LabelFor(49.9))
	assert.Equal(t, SentimentPositive, LabelFor(50))
}

func TestAnalyzer(t *testing.T) {
	arts := []Article{{Title: "Supplier audit finds forced labour"}, {Title: "Company pledges remediation"}}

	f := &fakeFiller{value: 22}
	s, err := NewAnalyzer(f).Analyze(context.Background(), "Acme", arts)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 22.0, s.Score)
	assert.Equal(t, SentimentNegative, s.Label)
	assert.Equal(t, []string{"Supplier audit finds forced labour", "Company pledges remediation"}, f.got.Headlines)
	assert.Equal(t, "Acme", f.got.CompanyName)

	s, err = NewAnalyzer(f).Analyze(context.Background(), "Acme", nil)
	assert.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewAnalyzer(nil).Analyze(context.Background(), "Acme", arts)
	assert.NoError(t, err)
	assert.Nil(t, s)

	boom := errors.New(errors.ErrCodeOracleUnavailable, "down")
	s, err = NewAnalyzer(&fakeFiller{err: boom}).Analyze(context.Background(), "Acme", arts)
	assert.Nil(t, s)
	assert.True(t, errors.IsCode(err, errors.ErrCodeOracleUnavailable))
}

// ─────────────────────────────────────────────────────────────────────────────
// Enricher
// ─────────────────────────────────────────────────────────────────────────────

func TestEnricher_Disabled(t *testing.T) {
	e := New()
	assert.False(t, e.Enabled())
	assert.Empty(t, e.Sources())
	assert.Equal(t, Report{}, e.Enrich(context.Background(), Target{Company: "Acme"}))

	e = NewFromConfig(config.EnrichmentConfig{Enabled: false}, nil, nil, nil, nil, nil)
	assert.False(t, e.Enabled())
}

func TestEnricher_FullReport(t *testing.T) {
	wb := &fakeWorldBank{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/country/", wb.handler(t))
	var newsCalls int32
	mux.HandleFunc("/news/everything", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&newsCalls, 1)
		fmt.Fprint(w, newsBody(8))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mem, err := cache.NewMemory(cache.MemoryConfig{MaxTTL: time.Hour, MaxSizeMB: 4})
	require.NoError(t, err)
	defer mem.Close()

	rec := &metricsRecorder{}
	filler := &fakeFiller{value: 41}
	e := New(
		WithWorldBank(NewWorldBankClient(srv.URL+"/v2", nil, nil, time.Second), time.Hour),
		WithNews(NewNewsClient(srv.URL+"/news", "k", NewsOptions{}, nil, nil, time.Second), time.Hour),
		WithSentiment(NewAnalyzer(filler)),
		WithCache(mem),
		WithMetrics(rec),
	)
	assert.Equal(t, []string{SourceWorldBank, SourceNews, SourceSentiment}, e.Sources())

	target := Target{Company: "Acme Ltd", Countries: []CountryRef{
		{Name: "Ghana", ISO3: "GHA"},
		{Name: "Ghana", ISO3: "gha"},
		{Name: "Atlantis"},
		{Name: "India", ISO3: "IND"},
	}}
	rep := e.Enrich(context.Background(), target)

	assert.True(t, rep.Enabled)
	assert.Empty(t, rep.Warnings)
	require.Len(t, rep.Countries, 2)
	assert.Equal(t, "GHA", rep.Countries[0].ISO3)
	assert.Equal(t, "IND", rep.Countries[1].ISO3)

	require.NotNil(t, rep.News)
	assert.Equal(t, 8, rep.News.ArticleCount)
	assert.Len(t, rep.News.Articles, RecentArticles)
	require.NotNil(t, rep.News.Sentiment)
	assert.Equal(t, 41.0, rep.News.Sentiment.Score)
	assert.Equal(t, SentimentMixed, rep.News.Sentiment.Label)

	// Second run is served from cache except sentiment.
	calls := atomic.LoadInt32(&wb.calls)
	rep2 := e.Enrich(context.Background(), target)
	assert.Equal(t, calls, atomic.LoadInt32(&wb.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&newsCalls))
	assert.Equal(t, rep.Countries, rep2.Countries)
	assert.Equal(t, int32(2), atomic.LoadInt32(&filler.calls))

	assert.Equal(t, []bool{true, true}, rec.got[SourceWorldBank])
	assert.Equal(t, []bool{true}, rec.got[SourceNews])
	assert.Equal(t, []bool{true, true}, rec.got[SourceSentiment])
}

func TestEnricher_SourceFailuresBecomeWarnings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := New(
		WithWorldBank(NewWorldBankClient(srv.URL, nil, nil, time.Second), time.Hour),
		WithNews(NewNewsClient(srv.URL, "k", NewsOptions{}, nil, nil, time.Second), time.Hour),
	)
	rep := e.Enrich(context.Background(), Target{Company: "Acme", Countries: []CountryRef{{Name: "Ghana", ISO3: "GHA"}}})

	assert.True(t, rep.Enabled)
	assert.Empty(t, rep.Countries)
	assert.Nil(t, rep.News)
	require.Len(t, rep.Warnings, 2)
	joined := strings.Join(rep.Warnings, "\n")
	assert.Contains(t, joined, "world_bank: Ghana")
	assert.Contains(t, joined, "news: Acme")
}

func TestNewFromConfig(t *testing.T) {
	limiters := resilience.NewLimiterSet()
	cfg := config.EnrichmentConfig{
		Enabled:   true,
		Sentiment: true,
		WorldBank: config.SourceConfig{Enabled: true, BaseURL: "https://api.worldbank.org/v2", RatePerSecond: 5, Burst: 5},
		News: config.NewsConfig{
			SourceConfig: config.SourceConfig{Enabled: true, BaseURL: "https://newsapi.org/v2", APIKey: "k"},
		},
	}
	e := NewFromConfig(cfg, nil, limiters, &fakeFiller{}, nil, nil)
	assert.Equal(t, []string{SourceWorldBank, SourceNews, SourceSentiment}, e.Sources())
	_, ok := limiters.Get(resilience.DependencyWorldBank).(*resilience.TokenBucket)
	assert.True(t, ok)
}
