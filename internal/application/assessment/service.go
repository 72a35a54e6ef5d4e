package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/reference"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/enrichment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/rules"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Report
// ─────────────────────────────────────────────────────────────────────────────

// Report is the full service response: the scored assessment plus the
// enrichment, rule output and quality summary that decorate it.
type Report struct {
	risk.Assessment
	Enrichment      *enrichment.Report     `json:"enrichment,omitempty"`
	Recommendations []rules.Recommendation `json:"recommendations"`
	Compliance      []rules.Requirement    `json:"compliance_requirements"`
	Alerts          []rules.Alert          `json:"monitoring_alerts"`
	Quality         Quality                `json:"assessment_quality"`

	// Match is the registry hit behind the residual score, if any.
	Match *registry.Match `json:"-"`
}

// CompletedEvent is published after every successful assessment.
type CompletedEvent struct {
	AssessmentID string            `json:"assessment_id"`
	CompanyName  string            `json:"company_name"`
	FinalScore   float64           `json:"final_risk_score"`
	Category     risk.Category     `json:"risk_category"`
	Inherent     float64           `json:"inherent_score"`
	Residual     float64           `json:"residual_score"`
	Coverage     risk.DataCoverage `json:"data_coverage"`
	AssessedAt   time.Time         `json:"assessed_at"`
}

// Publisher delivers completed-assessment events.
type Publisher interface {
	Publish(ctx context.Context, key string, event interface{}) error
}

// Metrics receives service-level observations.
type Metrics interface {
	RecordAssessment(category string, finalScore float64, d time.Duration)
	RecordFallback(component string)
	RecordRegistryMatch(kind, method string)
	RecordBatchItem(ok bool)
	RecordError(component, code string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAssessment(string, float64, time.Duration) {}
func (nopMetrics) RecordFallback(string)                           {}
func (nopMetrics) RecordRegistryMatch(string, string)              {}
func (nopMetrics) RecordBatchItem(bool)                            {}
func (nopMetrics) RecordError(string, string)                      {}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// Service runs assessments end to end.
type Service struct {
	store     *reference.Store
	matcher   *registry.Matcher
	filler    oracle.GapFiller
	inherent  *InherentCalculator
	residual  *ResidualCalculator
	enricher  *enrichment.Enricher
	rules     *rules.Engine
	publisher Publisher
	metrics   Metrics
	logger    logging.Logger
	cfg       config.AssessmentConfig
	oracleMax int
	now       func() time.Time
	newID     func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithEnricher(e *enrichment.Enricher) ServiceOption {
	return func(s *Service) { s.enricher = e }
}

func WithRules(r *rules.Engine) ServiceOption {
	return func(s *Service) { s.rules = r }
}

func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig applies batch, timeout and review settings.
func WithConfig(cfg config.AssessmentConfig) ServiceOption {
	return func(s *Service) { s.cfg = cfg }
}

// WithOracleConcurrency bounds concurrent oracle calls per assessment.
func WithOracleConcurrency(n int) ServiceOption {
	return func(s *Service) { s.oracleMax = n }
}

// WithClock overrides the assessment timestamp source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides assessment id generation.
func WithIDGenerator(f func() string) ServiceOption {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

// NewService assembles the engine. filler may be nil, which disables gap
// filling.
func NewService(store *reference.Store, matcher *registry.Matcher, filler oracle.GapFiller, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		matcher:   matcher,
		filler:    filler,
		metrics:   nopMetrics{},
		logger:    logging.NewNopLogger(),
		oracleMax: 4,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.filler == nil {
		s.filler = oracle.Disabled{}
	}
	if s.matcher == nil {
		s.matcher = registry.NewMatcher(nil)
	}
	if s.cfg.BatchConcurrency < 1 {
		s.cfg.BatchConcurrency = 4
	}
	if s.cfg.MaxBatchSize < 1 {
		s.cfg.MaxBatchSize = 100
	}
	s.logger = s.logger.Named("assessment")
	s.inherent = NewInherentCalculator(store, s.filler, s.oracleMax, s.logger)
	s.residual = NewResidualCalculator(s.matcher, s.filler, s.logger)
	return s
}

// Assess scores one company. It fails only when the request is invalid;
// every data-source failure degrades to defaults instead.
func (s *Service) Assess(ctx context.Context, req Request) (Report, error) {
	start := time.Now()
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		s.metrics.RecordError("assessment", string(errors.GetCode(err)))
		return Report{}, err
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var (
		wg       conc.WaitGroup
		inherent risk.InherentResult
		residual risk.ResidualResult
		match    *registry.Match
		enr      enrichment.Report
	)
	wg.Go(func() { inherent = s.inherent.Calculate(ctx, req) })
	wg.Go(func() { residual, match = s.residual.Calculate(ctx, req) })
	if s.enricher.Enabled() {
		wg.Go(func() { enr = s.enricher.Enrich(ctx, s.enrichmentTarget(req)) })
	}
	wg.Wait()

	a := risk.NewAssessment(req.CompanyName, inherent, residual,
		risk.WithID(s.newID()),
		risk.WithClock(s.now),
	)

	rep := Report{Assessment: a, Match: match}
	if enr.Enabled {
		rep.Enrichment = &enr
	}
	if s.rules != nil {
		res := s.rules.Evaluate(s.facts(a, enr))
		rep.Recommendations, rep.Compliance, rep.Alerts = res.Recommendations, res.Compliance, res.Alerts
	}
	rep.Quality = EvaluateQuality(a, enr, s.cfg.ReviewInterval)

	s.record(rep, match, time.Since(start))
	s.publish(ctx, rep)

	s.logger.Info("assessment completed",
		logging.String("assessment_id", a.ID),
		logging.String("company", a.CompanyName),
		logging.Float64("final_score", a.FinalScore),
		logging.String("category", string(a.Category)),
		logging.Bool("ai_enhanced", a.Coverage.AIEnhanced),
		logging.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

func (s *Service) record(rep Report, match *registry.Match, d time.Duration) {
	s.metrics.RecordAssessment(string(rep.Category), rep.FinalScore, d)
	for _, c := range rep.Components {
		if c.Provenance == risk.ProvenanceDefaultFallback {
			s.metrics.RecordFallback(c.Name)
		}
	}
	if match != nil {
		s.metrics.RecordRegistryMatch(string(match.Kind), match.Method)
	} else {
		s.metrics.RecordRegistryMatch("none", "none")
	}
}

func (s *Service) publish(ctx context.Context, rep Report) {
	if s.publisher == nil {
		return
	}
	ev := CompletedEvent{
		AssessmentID: rep.ID,
		CompanyName:  rep.CompanyName,
		FinalScore:   rep.FinalScore,
		Category:     rep.Category,
		Inherent:     rep.Inherent.Score,
		Residual:     rep.Residual.Score,
		Coverage:     rep.Coverage,
		AssessedAt:   rep.AssessedAt,
	}
	if err := s.publisher.Publish(ctx, rep.ID, ev); err != nil {
		s.metrics.RecordError("publisher", string(errors.GetCode(err)))
		s.logger.Warn("failed to publish assessment event",
			logging.String("assessment_id", rep.ID),
			logging.Err(err),
		)
	}
}

func (s *Service) enrichmentTarget(req Request) enrichment.Target {
	t := enrichment.Target{Company: req.CompanyName}
	for _, name := range req.Countries() {
		if c, ok := s.store.LookupCountry(name); ok {
			t.Countries = append(t.Countries, enrichment.CountryRef{Name: c.Name, ISO3: c.ISO3})
		}
	}
	return t
}

func (s *Service) facts(a risk.Assessment, enr enrichment.Report) rules.Facts {
	f := rules.Facts{
		Company:       a.CompanyName,
		Industry:      a.Industry.Matched,
		Industries:    a.Industry.Candidates,
		IndustryScore: a.Industry.Score,
		FinalScore:    a.FinalScore,
		Category:      string(a.Category),
		Inherent:      a.Inherent.Score,
		Residual:      a.Residual.Score,
		Components:    a.Inherent.Components,
		HasStatement:  a.Residual.HasStatement,
		Registry:      a.Residual.Registry,
		StatementGaps: a.Residual.Missing,
		AIEnhanced:    a.Coverage.AIEnhanced,
		Defaulted:     a.Coverage.Defaulted,
	}
	for i, g := range a.Geography {
		if i == 0 {
			f.HQ = g.Country
		}
		f.Countries = append(f.Countries, g.Country)
	}
	if enr.News != nil {
		f.ArticleCount = enr.News.ArticleCount
		if enr.News.Sentiment != nil {
			f.HasSentiment = true
			f.Sentiment = enr.News.Sentiment.Score
		}
	}
	return f
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch
// ─────────────────────────────────────────────────────────────────────────────

// BatchItem is one batch result. Exactly one of Report and Error is set.
type BatchItem struct {
	Index  int     `json:"index"`
	Report *Report `json:"report,omitempty"`
	Error  error   `json:"-"`
}

// BatchResult is the outcome of AssessBatch.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// AssessBatch scores every request with bounded parallelism. A failed item
// does not stop the others. Results keep request order.
func (s *Service) AssessBatch(ctx context.Context, reqs []Request) (BatchResult, error) {
	if len(reqs) == 0 {
		return BatchResult{}, errors.New(errors.ErrCodeAssessmentInvalid, "batch contains no requests")
	}
	if len(reqs) > s.cfg.MaxBatchSize {
		return BatchResult{}, errors.Newf(errors.ErrCodeBatchTooLarge, "batch of %d exceeds maximum %d", len(reqs), s.cfg.MaxBatchSize)
	}

	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			items[i].Index = i
			rep, err := s.Assess(gctx, req)
			s.metrics.RecordBatchItem(err == nil)
			if err != nil {
				items[i].Error = err
				return nil
			}
			items[i].Report = &rep
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Items: items}
	for _, it := range items {
		if it.Error != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	return res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Introspection
// ─────────────────────────────────────────────────────────────────────────────

// Capabilities describes what this instance can draw on.
type Capabilities struct {
	Oracle          bool           `json:"oracle_enabled"`
	Enrichment      []string       `json:"enrichment_sources"`
	Registries      map[string]int `json:"registries"`
	RegistryOrder   []string       `json:"registry_priority"`
	Countries       int            `json:"reference_countries"`
	Industries      int            `json:"reference_industries"`
	ComplianceRules int            `json:"compliance_rules"`
	Recommendations int            `json:"recommendation_rules"`
	AlertRules      int            `json:"alert_rules"`
	MaxBatchSize    int            `json:"max_batch_size"`
}

// Capabilities reports the loaded data and enabled integrations.
func (s *Service) Capabilities() Capabilities {
	c := Capabilities{
		Oracle:       !oracle.IsDisabled(s.filler),
		Enrichment:   s.enricher.Sources(),
		Registries:   make(map[string]int),
		Countries:    s.store.CountryCount(),
		Industries:   s.store.IndustryCount(),
		MaxBatchSize: s.cfg.MaxBatchSize,
	}
	for k, n := range s.matcher.Counts() {
		c.Registries[string(k)] = n
	}
	for _, k := range s.matcher.Priority() {
		c.RegistryOrder = append(c.RegistryOrder, string(k))
	}
	if s.rules != nil {
		c.ComplianceRules, c.Recommendations, c.AlertRules = s.rules.Rules()
	}
	return c
}

// Store exposes the reference tables for lookup endpoints.
func (s *Service) Store() *reference.Store { return s.store }

// Matcher exposes the registry matcher for preview endpoints.
func (s *Service) Matcher() *registry.Matcher { return s.matcher }
