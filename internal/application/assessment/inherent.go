package assessment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/reference"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
)

// ─────────────────────────────────────────────────────────────────────────────
// Point budgets
// ─────────────────────────────────────────────────────────────────────────────

// Component budgets and their fixed defaults. The budgets sum to 120; the
// inherent score is clamped to 100.
const (
	MaxTIPTier         = 40.0
	DefaultTIPTier     = 25.0
	MaxPrevalence      = 25.0
	DefaultPrevalence  = 12.0
	MaxGovResponse     = 15.0
	DefaultGovResponse = 8.0
	MaxLaborIssues     = 15.0
	DefaultLaborIssues = 4.0
	MaxIndustry        = 25.0

	// IndustryWeight scales a 0-100 industry score into the industry budget.
	IndustryWeight = MaxIndustry / 100

	hqWeight     = 0.6
	othersWeight = 0.4

	pointsPerLaborIssue = 3.0
	prevalenceCeiling   = 10.0
)

// UnknownCountry labels the slot used when a request names no country.
const UnknownCountry = "Unknown"

// TIPTierPoints maps a TIP rating onto the tip_tier budget.
func TIPTierPoints(t reference.Tier) (float64, bool) {
	switch t {
	case reference.Tier1:
		return 5, true
	case reference.Tier2:
		return 20, true
	case reference.Tier2Watchlist:
		return 30, true
	case reference.Tier3:
		return 40, true
	}
	return 0, false
}

// PrevalencePoints is min(per1000/10, 1) x 25.
func PrevalencePoints(per1000 float64) float64 {
	return math.Min(math.Max(per1000, 0)/prevalenceCeiling, 1) * MaxPrevalence
}

// GovResponsePoints is (1 - score/100) x 15; a stronger response scores lower.
func GovResponsePoints(score float64) float64 {
	return (1 - risk.Clamp(score, 0, 100)/100) * MaxGovResponse
}

// LaborIssuePoints is 3 points per documented issue, capped at 15.
func LaborIssuePoints(n int) float64 {
	return math.Min(float64(n)*pointsPerLaborIssue, MaxLaborIssues)
}

type countryComponent struct {
	name     string
	max      float64
	fallback float64
	field    oracle.Field
	measure  func(reference.Country) (float64, bool)
}

var countryComponents = []countryComponent{
	{risk.ComponentTIPTier, MaxTIPTier, DefaultTIPTier, oracle.FieldTipTierRisk, func(c reference.Country) (float64, bool) {
		return TIPTierPoints(c.TIPTier)
	}},
	{risk.ComponentPrevalence, MaxPrevalence, DefaultPrevalence, oracle.FieldPrevalenceRisk, func(c reference.Country) (float64, bool) {
		if c.PrevalencePer1000 == nil {
			return 0, false
		}
		return PrevalencePoints(*c.PrevalencePer1000), true
	}},
	{risk.ComponentGovResponse, MaxGovResponse, DefaultGovResponse, oracle.FieldGovResponseRisk, func(c reference.Country) (float64, bool) {
		if c.GovResponseScore == nil {
			return 0, false
		}
		return GovResponsePoints(*c.GovResponseScore), true
	}},
	{risk.ComponentLaborIssues, MaxLaborIssues, DefaultLaborIssues, oracle.FieldLaborIssuesRisk, func(c reference.Country) (float64, bool) {
		if !c.HasLaborIssues() {
			return 0, false
		}
		return LaborIssuePoints(len(c.LaborIssues)), true
	}},
}

// ─────────────────────────────────────────────────────────────────────────────
// Calculator
// ─────────────────────────────────────────────────────────────────────────────

// InherentCalculator scores geography and industry exposure.
type InherentCalculator struct {
	store       *reference.Store
	filler      oracle.GapFiller
	concurrency int
	logger      logging.Logger
}

// NewInherentCalculator builds a calculator. concurrency bounds the oracle
// requests in flight for one assessment.
func NewInherentCalculator(store *reference.Store, filler oracle.GapFiller, concurrency int, logger logging.Logger) *InherentCalculator {
	if filler == nil {
		filler = oracle.Disabled{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &InherentCalculator{store: store, filler: filler, concurrency: concurrency, logger: logger.Named("inherent")}
}

type slotValue struct {
	value  float64
	prov   risk.Provenance
	reason string
}

type countrySlot struct {
	input    string
	name     string
	resolved bool
	country  reference.Country
	values   map[string]slotValue
	missing  []oracle.Field
	estimate oracle.Estimate
}

// Calculate computes the inherent result. It never fails: anything it cannot
// measure or estimate falls back to the fixed defaults.
func (c *InherentCalculator) Calculate(ctx context.Context, req Request) risk.InherentResult {
	slots := c.resolveCountries(req)
	industry := c.matchIndustry(req)

	p := pool.New().WithMaxGoroutines(c.concurrency)
	for i := range slots {
		s := &slots[i]
		if len(s.missing) == 0 {
			continue
		}
		p.Go(func() {
			s.estimate = c.filler.Estimate(ctx, s.missing, oracle.Context{
				Country:     s.name,
				Industry:    firstOf(req.IndustryQueries()),
				CompanyName: req.CompanyName,
			})
		})
	}
	var industryEstimate oracle.Estimate
	if !industry.matched {
		p.Go(func() {
			industryEstimate = c.filler.Estimate(ctx, []oracle.Field{oracle.FieldIndustryRisk}, oracle.Context{
				Country:     slots[0].name,
				Industry:    industryContext(req),
				CompanyName: req.CompanyName,
			})
		})
	}
	p.Wait()

	for i := range slots {
		c.fillSlot(&slots[i])
	}

	outcomes := make([]risk.Outcome, 0, len(countryComponents)+1)
	for _, cc := range countryComponents {
		outcomes = append(outcomes, blend(cc, slots))
	}
	industryOutcome, exposure := c.industryOutcome(industry, industryEstimate)
	outcomes = append(outcomes, industryOutcome)

	total := 0.0
	for _, o := range outcomes {
		total += o.Value()
		if o.IsFallback() {
			c.logger.Warn("inherent component fell back to default",
				logging.String("company", req.CompanyName),
				logging.String("component", o.Component().Name),
				logging.String("reason", o.Reason()),
			)
		}
	}

	dataAvailable := false
	geography := make([]risk.CountryExposure, 0, len(slots))
	for i, s := range slots {
		dataAvailable = dataAvailable || s.resolved
		geography = append(geography, s.exposure(i == 0))
	}

	return risk.InherentResult{
		Score:         risk.Round2(risk.Clamp(total, 0, 100)),
		Outcomes:      outcomes,
		Geography:     geography,
		Industry:      exposure,
		DataAvailable: dataAvailable,
	}
}

// resolveCountries normalizes and looks up every country, deduplicating on
// the canonical name. The first slot is the headquarters.
func (c *InherentCalculator) resolveCountries(req Request) []countrySlot {
	var slots []countrySlot
	seen := make(map[string]bool)
	for _, in := range req.Countries() {
		country, ok := c.store.LookupCountry(in)
		name := c.store.Normalizer().Normalize(in)
		if ok {
			name = country.Name
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		slots = append(slots, newSlot(in, name, country, ok))
	}
	if len(slots) == 0 {
		slots = append(slots, newSlot("", "", reference.Country{}, false))
	}
	return slots
}

func newSlot(input, name string, country reference.Country, resolved bool) countrySlot {
	s := countrySlot{input: input, name: name, resolved: resolved, country: country, values: make(map[string]slotValue)}
	for _, cc := range countryComponents {
		if !resolved {
			s.missing = append(s.missing, cc.field)
			continue
		}
		if v, ok := cc.measure(country); ok {
			s.values[cc.name] = slotValue{value: risk.Clamp(v, 0, cc.max), prov: risk.ProvenanceMeasured}
			continue
		}
		s.missing = append(s.missing, cc.field)
	}
	return s
}

// fillSlot completes a slot from its oracle estimate, then defaults.
func (c *InherentCalculator) fillSlot(s *countrySlot) {
	label := s.name
	if label == "" {
		label = UnknownCountry
	}
	for _, cc := range countryComponents {
		if _, ok := s.values[cc.name]; ok {
			continue
		}
		if v, ok := s.estimate.Get(cc.field); ok {
			s.values[cc.name] = slotValue{value: v, prov: risk.ProvenanceOracleEstimated, reason: "estimated for " + label}
			continue
		}
		s.values[cc.name] = slotValue{
			value:  cc.fallback,
			prov:   risk.ProvenanceDefaultFallback,
			reason: fallbackReason(cc.name, label, s.resolved, s.estimate),
		}
	}
}

func fallbackReason(component, country string, resolved bool, est oracle.Estimate) string {
	var why string
	if resolved {
		why = fmt.Sprintf("no %s data for %s", component, country)
	} else {
		why = fmt.Sprintf("country %s not in reference data", country)
	}
	switch {
	case est.Err != nil:
		return why + "; oracle: " + est.Err.Error()
	case len(est.Rejected) > 0:
		return why + "; oracle value rejected"
	default:
		return why + "; oracle returned no value"
	}
}

func (s countrySlot) exposure(hq bool) risk.CountryExposure {
	name := s.name
	if name == "" {
		name = UnknownCountry
	}
	e := risk.CountryExposure{
		Input:      s.input,
		Country:    name,
		Resolved:   s.resolved,
		HQ:         hq,
		Components: make(map[string]float64, len(s.values)),
		Provenance: make(map[string]risk.Provenance, len(s.values)),
	}
	for k, v := range s.values {
		e.Components[k] = risk.Round2(v.value)
		e.Provenance[k] = v.prov
	}
	if s.resolved {
		e.Missing = s.country.MissingIndicators()
	}
	return e
}

// blend weights the headquarters at 0.6 and the mean of the other countries
// at 0.4. Provenance is the least reliable contributor's.
func blend(cc countryComponent, slots []countrySlot) risk.Outcome {
	hq := slots[0].values[cc.name]
	value := hq.value
	provs := []risk.Provenance{hq.prov}
	reasons := nonEmpty(nil, hq.reason)

	if len(slots) > 1 {
		sum := 0.0
		for _, s := range slots[1:] {
			v := s.values[cc.name]
			sum += v.value
			provs = append(provs, v.prov)
			reasons = nonEmpty(reasons, v.reason)
		}
		value = hqWeight*hq.value + othersWeight*sum/float64(len(slots)-1)
	}

	prov := risk.LeastReliable(provs...)
	comp := risk.NewComponent(cc.name, value, cc.max, prov, strings.Join(reasons, "; "))
	if prov == risk.ProvenanceDefaultFallback {
		return risk.Fallback(comp, comp.Reason)
	}
	return risk.Ok(comp)
}

// ─────────────────────────────────────────────────────────────────────────────
// Industry
// ─────────────────────────────────────────────────────────────────────────────

type industryMatch struct {
	matched    bool
	best       reference.Industry
	source     string
	queries    []string
	candidates []string
}

// matchIndustry resolves every declared industry and scans the business
// model for high-risk phrases. The highest score wins.
func (c *InherentCalculator) matchIndustry(req Request) industryMatch {
	m := industryMatch{queries: req.IndustryQueries()}
	seen := make(map[string]bool)
	consider := func(ind reference.Industry, source string) {
		if !seen[ind.Name] {
			seen[ind.Name] = true
			m.candidates = append(m.candidates, ind.Name)
		}
		if !m.matched || ind.RiskScore() > m.best.RiskScore() {
			m.matched, m.best, m.source = true, ind, source
		}
	}
	for _, q := range m.queries {
		if ind, ok := c.store.LookupIndustry(q); ok {
			consider(ind, risk.IndustrySourceReference)
		}
	}
	for _, ind := range c.store.ScanKeywords(req.BusinessModel) {
		consider(ind, risk.IndustrySourceKeyword)
	}
	return m
}

func (c *InherentCalculator) industryOutcome(m industryMatch, est oracle.Estimate) (risk.Outcome, risk.IndustryExposure) {
	exposure := risk.IndustryExposure{Queries: m.queries, Candidates: m.candidates}

	if m.matched {
		score := m.best.RiskScore()
		exposure.Matched, exposure.Score, exposure.Source, exposure.Provenance = m.best.Name, score, m.source, risk.ProvenanceMeasured
		comp := risk.NewComponent(risk.ComponentIndustry, score*IndustryWeight, MaxIndustry, risk.ProvenanceMeasured, "")
		return risk.Ok(comp), exposure
	}

	if v, ok := est.Get(oracle.FieldIndustryRisk); ok {
		exposure.Score, exposure.Source, exposure.Provenance = risk.Round1(v), risk.IndustrySourceOracle, risk.ProvenanceOracleEstimated
		comp := risk.NewComponent(risk.ComponentIndustry, v*IndustryWeight, MaxIndustry, risk.ProvenanceOracleEstimated, "industry risk estimated")
		return risk.Ok(comp), exposure
	}

	why := "no industry matched the reference table"
	if est.Err != nil {
		why += "; oracle: " + est.Err.Error()
	}
	exposure.Score, exposure.Source, exposure.Provenance = reference.NeutralIndustryScore, risk.IndustrySourceDefault, risk.ProvenanceDefaultFallback
	comp := risk.NewComponent(risk.ComponentIndustry, reference.NeutralIndustryScore*IndustryWeight, MaxIndustry, risk.ProvenanceDefaultFallback, why)
	return risk.Fallback(comp, why), exposure
}

func industryContext(req Request) string {
	if q := firstOf(req.IndustryQueries()); q != "" {
		return q
	}
	return req.BusinessModel
}

func firstOf(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func nonEmpty(acc []string, s string) []string {
	if s == "" {
		return acc
	}
	for _, x := range acc {
		if x == s {
			return acc
		}
	}
	return append(acc, s)
}
