package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

type fakeChatServer struct {
	*httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	lastBody openAIRequest
	lastAuth string
}

func newFakeChatServer(t *testing.T, handler func(w http.ResponseWriter)) *fakeChatServer {
	t.Helper()
	s := &fakeChatServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.lastBody = body
		s.lastAuth = r.Header.Get("Authorization")
		s.mu.Unlock()
		handler(w)
	}))
	t.Cleanup(s.Close)
	return s
}

func replyContent(content string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func newTestOracle(t *testing.T, srv *fakeChatServer, opts ...Option) *Oracle {
	t.Helper()
	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test", Temperature: 0.3, MaxTokens: 500}, srv.Client())
	o, err := New(client, opts...)
	require.NoError(t, err)
	return o
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	fields   map[string]bool
}

func (m *recordingMetrics) RecordOracleCall(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) RecordOracleField(field string, accepted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fields == nil {
		m.fields = map[string]bool{}
	}
	m.fields[field] = accepted
}

var countryFields = []Field{FieldTipTierRisk, FieldPrevalenceRisk, FieldGovResponseRisk, FieldLaborIssuesRisk}

// ─────────────────────────────────────────────────────────────────────────────
// Happy path
// ─────────────────────────────────────────────────────────────────────────────

func TestEstimate_AllFieldsValid(t *testing.T) {
	srv := newFakeChatServer(t, replyContent(`{"tip_tier_risk": 30, "prevalence_risk": 12.5, "gov_response_risk": 9, "labor_issues_risk": 6, "reasoning": "weak enforcement"}`))
	o := newTestOracle(t, srv)

	est := o.Estimate(context.Background(), countryFields, Context{Country: "Atlantis", CompanyName: "Acme"})

	require.NoError(t, est.Err)
	assert.True(t, est.Recovered())
	assert.Equal(t, map[Field]float64{
		FieldTipTierRisk:     30,
		FieldPrevalenceRisk:  12.5,
		FieldGovResponseRisk: 9,
		FieldLaborIssuesRisk: 6,
	}, est.Values)
	assert.Equal(t, "weak enforcement", est.Reasoning)
	assert.Empty(t, est.Rejected)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestEstimate_RequestShape(t *testing.T) {
	srv := newFakeChatServer(t, replyContent(`{"industry_risk": 70}`))
	o := newTestOracle(t, srv)

	est := o.Estimate(context.Background(), []Field{FieldIndustryRisk}, Context{Industry: "Quarrying", CompanyName: "Stone Co"})
	require.NoError(t, est.Err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "Bearer sk-test", srv.lastAuth)
	assert.Equal(t, "gpt-test", srv.lastBody.Model)
	assert.Equal(t, 500, srv.lastBody.MaxTokens)
	require.Len(t, srv.lastBody.Messages, 2)
	assert.Equal(t, "system", srv.lastBody.Messages[0].Role)
	assert.Contains(t, srv.lastBody.Messages[0].Content, "modern slavery")
	user := srv.lastBody.Messages[1].Content
	assert.Contains(t, user, "industry_risk: number from 0 to 100")
	assert.Contains(t, user, `"missing_fields":["industry_risk"]`)
	assert.Contains(t, user, `"industry":"Quarrying"`)
}

func TestEstimate_FencedJSON(t *testing.T) {
	srv := newFakeChatServer(t, replyContent("Here you go:\n```json\n{\"statement_quality\": 42}\n```\nThanks."))
	o := newTestOracle(t, srv)

	est := o.Estimate(context.Background(), []Field{FieldStatementQuality}, Context{CompanyName: "Acme"})
	require.NoError(t, est.Err)
	v, ok := est.Get(FieldStatementQuality)
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-field discard
// ─────────────────────────────────────────────────────────────────────────────

func TestEstimate_PartiallyValidKeepsValidFields(t *testing.T) {
	metrics := &recordingMetrics{}
	srv := newFakeChatServer(t, replyContent(`{
		"tip_tier_risk": 55,
		"prevalence_risk": "high",
		"gov_response_risk": 7.5,
		"statement_quality": 90
	}`))
	o := newTestOracle(t, srv, WithMetrics(metrics))

	est := o.Estimate(context.Background(), countryFields, Context{Country: "Atlantis"})

	require.NoError(t, est.Err)
	assert.Equal(t, map[Field]float64{FieldGovResponseRisk: 7.5}, est.Values)
	assert.ElementsMatch(t, []Field{FieldTipTierRisk, FieldPrevalenceRisk}, est.Rejected)
	_, unrequested := est.Get(FieldStatementQuality)
	assert.False(t, unrequested)
	_, missing := est.Get(FieldLaborIssuesRisk)
	assert.False(t, missing)

	assert.Equal(t, []string{OutcomeOK}, metrics.outcomes)
	assert.Equal(t, map[string]bool{
		"tip_tier_risk":     false,
		"prevalence_risk":   false,
		"gov_response_risk": true,
	}, metrics.fields)
}

func TestEstimate_UnknownFieldsSkipTheCall(t *testing.T) {
	srv := newFakeChatServer(t, replyContent(`{}`))
	o := newTestOracle(t, srv)

	est := o.Estimate(context.Background(), []Field{"shoe_size", "shoe_size"}, Context{})
	assert.False(t, est.Recovered())
	assert.NoError(t, est.Err)
	assert.Equal(t, []Field{"shoe_size"}, est.Rejected)
	assert.EqualValues(t, 0, srv.calls.Load())
}

// ─────────────────────────────────────────────────────────────────────────────
// Failures: no fields recovered, exactly one attempt
// ─────────────────────────────────────────────────────────────────────────────

func TestEstimate_FailuresRecoverNothing(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter)
		code    errors.ErrorCode
		outcome string
	}{
		{"non-200", func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }, errors.ErrCodeOracleUnavailable, OutcomeUnavailable},
		{"rate limited upstream", func(w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) }, errors.ErrCodeOracleUnavailable, OutcomeUnavailable},
		{"body not json", func(w http.ResponseWriter) { _, _ = w.Write([]byte("<html>oops</html>")) }, errors.ErrCodeOracleMalformed, OutcomeMalformed},
		{"no choices", func(w http.ResponseWriter) { _, _ = w.Write([]byte(`{"choices":[]}`)) }, errors.ErrCodeOracleMalformed, OutcomeMalformed},
		{"content not json", replyContent("I cannot help with that."), errors.ErrCodeOracleMalformed, OutcomeMalformed},
		{"content is array", replyContent(`[1,2,3]`), errors.ErrCodeOracleMalformed, OutcomeMalformed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			srv := newFakeChatServer(t, tt.handler)
			o := newTestOracle(t, srv, WithMetrics(metrics))

			est := o.Estimate(context.Background(), countryFields, Context{Country: "Atlantis"})

			assert.False(t, est.Recovered())
			require.Error(t, est.Err)
			assert.True(t, errors.IsCode(est.Err, tt.code), "got %v", est.Err)
			assert.EqualValues(t, 1, srv.calls.Load())
			assert.Equal(t, []string{tt.outcome}, metrics.outcomes)
		})
	}
}

func TestEstimate_TimeoutIsOrdinaryFailure(t *testing.T) {
	release := make(chan struct{})
	srv := newFakeChatServer(t, func(w http.ResponseWriter) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		replyContent(`{"tip_tier_risk": 10}`)(w)
	})
	defer close(release)
	o := newTestOracle(t, srv, WithTimeout(30*time.Millisecond))

	start := time.Now()
	est := o.Estimate(context.Background(), countryFields, Context{Country: "Atlantis"})

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, est.Recovered())
	assert.True(t, errors.IsCode(est.Err, errors.ErrCodeOracleTimeout), "got %v", est.Err)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestEstimate_CircuitOpenShortCircuits(t *testing.T) {
	srv := newFakeChatServer(t, func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) })
	breaker := resilience.NewBreaker(resilience.BreakerSettings{Name: "oracle", FailureThreshold: 1, Timeout: time.Minute}, nil, nil)
	o := newTestOracle(t, srv, WithBreaker(breaker))

	first := o.Estimate(context.Background(), countryFields, Context{})
	assert.True(t, errors.IsCode(first.Err, errors.ErrCodeOracleUnavailable))

	second := o.Estimate(context.Background(), countryFields, Context{})
	assert.False(t, second.Recovered())
	assert.True(t, errors.IsCode(second.Err, errors.ErrCodeOracleCircuitOpen), "got %v", second.Err)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestEstimate_RateLimitWaitFailure(t *testing.T) {
	srv := newFakeChatServer(t, replyContent(`{"tip_tier_risk": 10}`))
	limiter := resilience.NewTokenBucket(resilience.DependencyOracle, 0.001, 1)
	o := newTestOracle(t, srv, WithLimiter(limiter), WithTimeout(20*time.Millisecond))

	first := o.Estimate(context.Background(), countryFields, Context{})
	require.NoError(t, first.Err)

	second := o.Estimate(context.Background(), countryFields, Context{})
	assert.False(t, second.Recovered())
	assert.True(t, errors.IsCode(second.Err, errors.ErrCodeOracleRateLimited), "got %v", second.Err)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestEstimate_CancelledContext(t *testing.T) {
	srv := newFakeChatServer(t, replyContent(`{"tip_tier_risk": 10}`))
	o := newTestOracle(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	est := o.Estimate(ctx, countryFields, Context{})
	assert.False(t, est.Recovered())
	assert.Error(t, est.Err)
}

func TestDisabled(t *testing.T) {
	var g GapFiller = Disabled{}
	est := g.Estimate(context.Background(), countryFields, Context{Country: "Atlantis"})
	assert.False(t, est.Recovered())
	assert.True(t, errors.IsCode(est.Err, errors.ErrCodeOracleDisabled))
	assert.True(t, IsDisabled(g))
}

func TestNewFromConfig(t *testing.T) {
	g, err := NewFromConfig(config.OracleConfig{Enabled: false}, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, IsDisabled(g))

	srv := newFakeChatServer(t, replyContent(`{"sentiment_score": 35}`))
	limiters := resilience.NewLimiterSet()
	g, err = NewFromConfig(config.OracleConfig{
		Enabled:       true,
		BaseURL:       srv.URL + "/v1",
		Model:         "gpt-test",
		Timeout:       time.Second,
		RatePerSecond: 100,
		Burst:         5,
	}, limiters, nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, IsDisabled(g))
	_, isBucket := limiters.Get(resilience.DependencyOracle).(*resilience.TokenBucket)
	assert.True(t, isBucket)

	est := g.Estimate(context.Background(), []Field{FieldSentimentScore}, Context{CompanyName: "Acme", Headlines: []string{"Acme accused of forced labour"}})
	require.NoError(t, est.Err)
	v, _ := est.Get(FieldSentimentScore)
	assert.Equal(t, 35.0, v)
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Properties
// ─────────────────────────────────────────────────────────────────────────────

func TestEstimate_AcceptsExactlyInRangeValues(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tip_tier_risk accepted iff within [0,40]", prop.ForAll(
		func(v float64) bool {
			client := ChatClientFunc(func(context.Context, []Message) (string, error) {
				return fmt.Sprintf(`{"tip_tier_risk": %g}`, v), nil
			})
			o, err := New(client)
			if err != nil {
				return false
			}
			est := o.Estimate(context.Background(), []Field{FieldTipTierRisk}, Context{})
			got, ok := est.Get(FieldTipTierRisk)
			inRange := v >= 0 && v <= 40
			return ok == inRange && (!ok || got == v)
		},
		gen.Float64Range(-50, 90),
	))

	properties.Property("chat errors never recover fields", prop.ForAll(
		func(msg string) bool {
			client := ChatClientFunc(func(context.Context, []Message) (string, error) {
				return "", errors.New(errors.ErrCodeOracleUnavailable, msg)
			})
			o, err := New(client)
			if err != nil {
				return false
			}
			est := o.Estimate(context.Background(), Fields(), Context{})
			return !est.Recovered() && est.Err != nil
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
