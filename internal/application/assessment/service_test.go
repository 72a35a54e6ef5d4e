package assessment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/reference"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/enrichment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/rules"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []interface{}
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	categories []string
	fallbacks  []string
	registries []string
	batchOK    int
	batchFail  int
	errors     []string
}

func (m *recordingMetrics) RecordAssessment(category string, _ float64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append(m.categories, category)
}

func (m *recordingMetrics) RecordFallback(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, component)
}

func (m *recordingMetrics) RecordRegistryMatch(kind, method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registries = append(m.registries, kind+"/"+method)
}

func (m *recordingMetrics) RecordBatchItem(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.batchOK++
	} else {
		m.batchFail++
	}
}

func (m *recordingMetrics) RecordError(component, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, component+":"+code)
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	store     *reference.Store
	matcher   *registry.Matcher
	engine    *rules.Engine
	publisher *recordingPublisher
	metrics   *recordingMetrics
	svc       *Service
}

func (s *ServiceSuite) SetupSuite() {
	s.store = testStore(s.T())
	s.matcher = testMatcher(s.T())
	engine, err := rules.NewEmbeddedEngine(nil)
	s.Require().NoError(err)
	s.engine = engine
}

func (s *ServiceSuite) SetupTest() {
	s.publisher = &recordingPublisher{}
	s.metrics = &recordingMetrics{}
	s.svc = s.newService(oracle.Disabled{})
}

func (s *ServiceSuite) newService(filler oracle.GapFiller, opts ...ServiceOption) *Service {
	base := []ServiceOption{
		WithRules(s.engine),
		WithPublisher(s.publisher),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "asm-1" }),
		WithConfig(config.AssessmentConfig{BatchConcurrency: 3, MaxBatchSize: 5}),
	}
	return NewService(s.store, s.matcher, filler, append(base, opts...)...)
}

func (s *ServiceSuite) TestHighRiskCountryWithoutStatement() {
	rep, err := s.svc.Assess(context.Background(), Request{
		CompanyName: "Zzyzx Unlisted Widgets",
		CountryHint: "Eritrea",
	})
	s.Require().NoError(err)

	s.Contains([]risk.Category{risk.CategoryHigh, risk.CategoryVeryHigh}, rep.Category)
	s.Equal(75.0, rep.FinalScore)
	s.False(rep.Coverage.ResidualDataAvailable)
	s.True(rep.Coverage.InherentDataAvailable)
	s.False(rep.Coverage.AIEnhanced)
	s.Nil(rep.Match)
	s.Equal("asm-1", rep.ID)
	s.Equal(fixedNow, rep.AssessedAt)

	ids := make([]string, 0, len(rep.Recommendations))
	for _, r := range rep.Recommendations {
		ids = append(ids, r.ID)
	}
	s.Contains(ids, "publish_statement")
	s.Contains(ids, "commission_audit")
	s.Equal("commission_audit", ids[0])

	var compliance []string
	for _, c := range rep.Compliance {
		compliance = append(compliance, c.ID)
	}
	s.Contains(compliance, "intl_ungp")
	s.Equal(ConfidenceMedium, rep.Quality.ConfidenceLevel)
}

func (s *ServiceSuite) TestRegisteredLowRiskCompany() {
	rep, err := s.svc.Assess(context.Background(), Request{
		CompanyName:  "Brightwave Technology Services",
		CountryHint:  "United Kingdom",
		IndustryHint: "Technology Services",
	})
	s.Require().NoError(err)

	s.Contains([]risk.Category{risk.CategoryVeryLow, risk.CategoryLow}, rep.Category)
	s.Equal(0.0, rep.FinalScore)
	s.True(rep.Coverage.ResidualDataAvailable)
	s.Equal(100.0, rep.Residual.Score)
	s.True(rep.Residual.Saturated)
	s.Require().NotNil(rep.Match)
	s.Equal(registry.KindUK, rep.Match.Kind)

	var compliance []string
	for _, c := range rep.Compliance {
		compliance = append(compliance, c.ID)
	}
	s.Contains(compliance, "uk_msa_s54")
	s.Equal(80.0, rep.Quality.DataCompleteness)
	s.Equal(ConfidenceHigh, rep.Quality.ConfidenceLevel)

	s.Equal([]string{string(registry.KindUK) + "/" + registry.MethodExact}, s.metrics.registries)
	s.Empty(s.metrics.fallbacks)
}

func (s *ServiceSuite) TestUnknownCountryStillScores() {
	rep, err := s.svc.Assess(context.Background(), Request{
		CompanyName: "Zzyzx Unlisted Widgets",
		CountryHint: "Atlantis",
	})
	s.Require().NoError(err)

	s.Equal(61.5, rep.Inherent.Score)
	s.Equal(25.0, rep.Residual.Score)
	s.Equal(46.1, rep.FinalScore)
	s.Equal(risk.CategoryMedium, rep.Category)
	s.False(rep.Coverage.InherentDataAvailable)
	s.Equal(6, rep.Coverage.Defaulted)
	s.Equal(ConfidenceLow, rep.Quality.ConfidenceLevel)

	s.ElementsMatch([]string{
		risk.ComponentTIPTier, risk.ComponentPrevalence, risk.ComponentGovResponse,
		risk.ComponentLaborIssues, risk.ComponentIndustry, risk.ComponentStatement,
	}, s.metrics.fallbacks)
	s.Equal([]string{"none/none"}, s.metrics.registries)
}

func (s *ServiceSuite) TestInvalidRequest() {
	_, err := s.svc.Assess(context.Background(), Request{CompanyName: "  "})
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.ErrCodeAssessmentInvalid))
	s.Empty(s.publisher.events)
	s.Equal([]string{"assessment:" + string(errors.ErrCodeAssessmentInvalid)}, s.metrics.errors)
}

func (s *ServiceSuite) TestPublishesCompletedEvent() {
	rep, err := s.svc.Assess(context.Background(), Request{CompanyName: "Acme", CountryHint: "India"})
	s.Require().NoError(err)

	s.Require().Len(s.publisher.events, 1)
	s.Equal([]string{"asm-1"}, s.publisher.keys)
	ev, ok := s.publisher.events[0].(CompletedEvent)
	s.Require().True(ok)
	s.Equal(rep.FinalScore, ev.FinalScore)
	s.Equal(rep.Category, ev.Category)
	s.Equal("Acme", ev.CompanyName)
	s.Equal([]string{string(rep.Category)}, s.metrics.categories)
}

func (s *ServiceSuite) TestPublishFailureDoesNotFailAssessment() {
	s.publisher.err = errors.New(errors.ErrCodeMessageQueue, "broker down")
	_, err := s.svc.Assess(context.Background(), Request{CompanyName: "Acme", CountryHint: "India"})
	s.NoError(err)
	s.Contains(s.metrics.errors, "publisher:"+string(errors.ErrCodeMessageQueue))
}

func (s *ServiceSuite) TestOracleEstimatesMarkAIEnhanced() {
	svc := s.newService(&stubFiller{values: map[oracle.Field]float64{oracle.FieldStatementQuality: 10}})
	rep, err := svc.Assess(context.Background(), Request{
		CompanyName:  "Zzyzx Unlisted Widgets",
		CountryHint:  "United Kingdom",
		IndustryHint: "Technology Services",
	})
	s.Require().NoError(err)
	s.True(rep.Coverage.AIEnhanced)
	s.Equal(risk.DataSourceAIEstimate, rep.Residual.DataSource)

	var ids []string
	for _, r := range rep.Recommendations {
		ids = append(ids, r.ID)
	}
	s.Contains(ids, "validate_estimates")
}

func (s *ServiceSuite) TestReportJSON() {
	rep, err := s.svc.Assess(context.Background(), Request{CompanyName: "Acme", CountryHint: "India"})
	s.Require().NoError(err)

	raw, err := json.Marshal(rep)
	s.Require().NoError(err)
	var m map[string]interface{}
	s.Require().NoError(json.Unmarshal(raw, &m))
	for _, key := range []string{
		"assessment_id", "company_name", "final_risk_score", "risk_category", "inherent_risk",
		"residual_risk", "data_coverage", "components", "recommendations",
		"compliance_requirements", "monitoring_alerts", "assessment_quality",
	} {
		s.Contains(m, key)
	}
	s.NotContains(m, "enrichment")
}

func (s *ServiceSuite) TestBatch() {
	res, err := s.svc.AssessBatch(context.Background(), []Request{
		{CompanyName: "Acme", CountryHint: "India"},
		{CompanyName: ""},
		{CompanyName: "Brightwave Technology Services", CountryHint: "United Kingdom"},
	})
	s.Require().NoError(err)
	s.Require().Len(res.Items, 3)
	s.Equal(2, res.Succeeded)
	s.Equal(1, res.Failed)

	for i, it := range res.Items {
		s.Equal(i, it.Index)
	}
	s.Require().NotNil(res.Items[0].Report)
	s.Equal("Acme", res.Items[0].Report.CompanyName)
	s.Nil(res.Items[1].Report)
	s.True(errors.IsCode(res.Items[1].Error, errors.ErrCodeAssessmentInvalid))
	s.Require().NotNil(res.Items[2].Report)
	s.Equal("Brightwave Technology Services", res.Items[2].Report.CompanyName)

	s.Equal(2, s.metrics.batchOK)
	s.Equal(1, s.metrics.batchFail)
}

func (s *ServiceSuite) TestBatchLimits() {
	_, err := s.svc.AssessBatch(context.Background(), nil)
	s.True(errors.IsCode(err, errors.ErrCodeAssessmentInvalid))

	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{CompanyName: "Acme"}
	}
	_, err = s.svc.AssessBatch(context.Background(), reqs)
	s.True(errors.IsCode(err, errors.ErrCodeBatchTooLarge))
}

func (s *ServiceSuite) TestCapabilities() {
	c := s.svc.Capabilities()
	s.False(c.Oracle)
	s.Empty(c.Enrichment)
	s.Equal(s.store.CountryCount(), c.Countries)
	s.Equal(s.store.IndustryCount(), c.Industries)
	s.Equal([]string{"UK", "AU", "BHR"}, c.RegistryOrder)
	s.Equal(12, c.ComplianceRules)
	s.Equal(15, c.Recommendations)
	s.Equal(3, c.AlertRules)
	s.Equal(5, c.MaxBatchSize)
	s.Positive(c.Registries["UK"])
}

func (s *ServiceSuite) TestEnrichmentDecoratesReport() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal([]interface{}{
			map[string]int{"page": 1},
			[]map[string]interface{}{{"indicator": map[string]string{"id": "x", "value": "x"}, "date": "2023", "value": 1.5}},
		})
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	enr := enrichment.New(enrichment.WithWorldBank(enrichment.NewWorldBankClient(srv.URL, srv.Client(), nil, time.Second), time.Hour))
	svc := s.newService(oracle.Disabled{}, WithEnricher(enr))

	rep, err := svc.Assess(context.Background(), Request{
		CompanyName:  "Brightwave Technology Services",
		CountryHint:  "United Kingdom",
		IndustryHint: "Technology Services",
	})
	s.Require().NoError(err)
	s.Require().NotNil(rep.Enrichment)
	s.Require().Len(rep.Enrichment.Countries, 1)
	s.Equal("GBR", rep.Enrichment.Countries[0].ISO3)
	s.Equal(100.0, rep.Quality.DataCompleteness)

	// Enrichment never moves the score.
	plain, err := s.svc.Assess(context.Background(), Request{
		CompanyName:  "Brightwave Technology Services",
		CountryHint:  "United Kingdom",
		IndustryHint: "Technology Services",
	})
	s.Require().NoError(err)
	s.Equal(plain.FinalScore, rep.FinalScore)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// ─────────────────────────────────────────────────────────────────────────────
// Properties
// ─────────────────────────────────────────────────────────────────────────────

var propertyCountries = []string{
	"United Kingdom", "Eritrea", "India", "Atlantis", "Brazil", "Narnia", "", "China", "Peru",
}

func TestService_Properties(t *testing.T) {
	store := testStore(t)
	matcher := testMatcher(t)
	failing := &stubFiller{err: errors.New(errors.ErrCodeOracleUnavailable, "down")}
	svc := NewService(store, matcher, failing)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	countryGen := gen.IntRange(0, len(propertyCountries)-1).Map(func(i int) string { return propertyCountries[i] })

	properties.Property("an unreachable oracle never fails an assessment", prop.ForAll(
		func(name, hq, other string) bool {
			rep, err := svc.Assess(context.Background(), Request{
				CompanyName:        "Co " + name,
				CountryHint:        hq,
				OperatingCountries: []string{other},
			})
			return err == nil &&
				rep.FinalScore >= 0 && rep.FinalScore <= 100 &&
				!rep.Coverage.AIEnhanced &&
				rep.Category == risk.Categorize(rep.FinalScore)
		},
		gen.AlphaString(),
		countryGen,
		countryGen,
	))

	properties.Property("a registry hit is scored by its own registry whatever the geography", prop.ForAll(
		func(hq string) bool {
			rep, err := svc.Assess(context.Background(), Request{CompanyName: "Wattle Mining", CountryHint: hq})
			return err == nil &&
				rep.Residual.Registry == string(registry.KindAU) &&
				rep.Residual.Score > 91.3 && rep.Residual.Score < 91.5 &&
				rep.Coverage.ResidualDataAvailable
		},
		countryGen,
	))

	properties.Property("final score never exceeds the unmitigated inherent blend", prop.ForAll(
		func(hq string) bool {
			rep, err := svc.Assess(context.Background(), Request{CompanyName: "Brightwave Technology Services", CountryHint: hq})
			if err != nil {
				return false
			}
			// Residual 100 is far past saturation.
			return rep.Residual.Saturated && rep.FinalScore <= 0.75*rep.Inherent.Score
		},
		countryGen,
	))

	properties.TestingRun(t)
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(testStore(t), nil, nil)
	rep, err := svc.Assess(context.Background(), Request{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Empty(t, rep.Recommendations)
	assert.Nil(t, rep.Enrichment)
	assert.NotEmpty(t, rep.ID)
	assert.False(t, svc.Capabilities().Oracle)
}
