package risk

import (
	"time"

	"github.com/google/uuid"
)

// CountryExposure is the per-country breakdown behind the geography blend.
type CountryExposure struct {
	Input      string                `json:"input"`
	Country    string                `json:"country"`
	Resolved   bool                  `json:"resolved"`
	HQ         bool                  `json:"hq"`
	Components map[string]float64    `json:"components"`
	Provenance map[string]Provenance `json:"provenance"`
	Missing    []string              `json:"missing,omitempty"`
}

// Industry exposure sources.
const (
	IndustrySourceReference = "reference"
	IndustrySourceKeyword   = "business_model"
	IndustrySourceOracle    = "oracle"
	IndustrySourceDefault   = "default"
)

// IndustryExposure reports which industry drove the industry component.
// Score is the selected industry risk score on its 0-100 scale.
type IndustryExposure struct {
	Queries    []string   `json:"queries,omitempty"`
	Matched    string     `json:"matched,omitempty"`
	Score      float64    `json:"score"`
	Source     string     `json:"source"`
	Provenance Provenance `json:"provenance"`
	Candidates []string   `json:"candidates,omitempty"`
}

// InherentResult is what the inherent calculator produces.
type InherentResult struct {
	Score         float64
	Outcomes      []Outcome
	Geography     []CountryExposure
	Industry      IndustryExposure
	DataAvailable bool
}

// AIEnhanced reports whether any component used an oracle estimate.
func (r InherentResult) AIEnhanced() bool {
	for _, o := range r.Outcomes {
		if o.Provenance() == ProvenanceOracleEstimated {
			return true
		}
	}
	return false
}

// Residual data sources used when no registry matched.
const (
	DataSourceAIEstimate  = "AI Estimate"
	DataSourceNoStatement = "No statement found"
)

// ResidualResult is what the residual calculator produces.
type ResidualResult struct {
	Outcome      Outcome
	HasStatement bool
	DataSource   string
	Registry     string
	MatchedName  string
	Satisfied    []string
	Missing      []string
}

// Score is the statement quality in [0,100].
func (r ResidualResult) Score() float64 { return r.Outcome.Value() }

// ─────────────────────────────────────────────────────────────────────────────
// Assessment
// ─────────────────────────────────────────────────────────────────────────────

// InherentRisk is the inherent block of an assessment.
type InherentRisk struct {
	Score      float64            `json:"inherent_score"`
	Components map[string]float64 `json:"components"`
}

// ResidualRisk is the residual block of an assessment.
type ResidualRisk struct {
	Score        float64    `json:"residual_score"`
	HasStatement bool       `json:"has_statement"`
	DataSource   string     `json:"data_source"`
	Registry     string     `json:"registry,omitempty"`
	MatchedName  string     `json:"matched_name,omitempty"`
	Provenance   Provenance `json:"provenance"`
	Satisfied    []string   `json:"satisfied,omitempty"`
	Missing      []string   `json:"missing,omitempty"`
	Mitigation   float64    `json:"mitigation"`
	Saturated    bool       `json:"saturated"`
}

// DataCoverage summarizes which sources contributed.
type DataCoverage struct {
	InherentDataAvailable bool `json:"inherent_data_available"`
	ResidualDataAvailable bool `json:"residual_data_available"`
	AIEnhanced            bool `json:"ai_enhanced"`
	Measured              int  `json:"measured_components"`
	Estimated             int  `json:"estimated_components"`
	Defaulted             int  `json:"defaulted_components"`
}

// Completeness is the share of components backed by measured data, 0-100.
func (d DataCoverage) Completeness() float64 {
	total := d.Measured + d.Estimated + d.Defaulted
	if total == 0 {
		return 0
	}
	return Round1(100 * float64(d.Measured) / float64(total))
}

// Assessment is the immutable result for one company. Build it with
// NewAssessment.
type Assessment struct {
	ID          string            `json:"assessment_id"`
	CompanyName string            `json:"company_name"`
	AssessedAt  time.Time         `json:"assessed_at"`
	FinalScore  float64           `json:"final_risk_score"`
	Category    Category          `json:"risk_category"`
	Inherent    InherentRisk      `json:"inherent_risk"`
	Residual    ResidualRisk      `json:"residual_risk"`
	Coverage    DataCoverage      `json:"data_coverage"`
	Components  []Component       `json:"components"`
	Geography   []CountryExposure `json:"geography,omitempty"`
	Industry    IndustryExposure  `json:"industry"`
}

// AssessmentOption customizes NewAssessment.
type AssessmentOption func(*assessmentConfig)

type assessmentConfig struct {
	id     string
	now    func() time.Time
	scorer CompositeScorer
}

// WithID fixes the assessment id.
func WithID(id string) AssessmentOption {
	return func(c *assessmentConfig) { c.id = id }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) AssessmentOption {
	return func(c *assessmentConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// NewAssessment blends the inherent and residual results into the final
// assessment.
func NewAssessment(company string, inherent InherentResult, residual ResidualResult, opts ...AssessmentOption) Assessment {
	cfg := assessmentConfig{now: time.Now, scorer: NewCompositeScorer()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}

	inherentRaw := Clamp(inherent.Score, 0, 100)
	residualRaw := Clamp(residual.Score(), 0, 100)
	final, category := cfg.scorer.Categorize(inherentRaw, residualRaw)
	inherentScore, residualScore := Round2(inherentRaw), Round2(residualRaw)

	components := make([]Component, 0, len(inherent.Outcomes)+1)
	byName := make(map[string]float64, len(inherent.Outcomes))
	var cov DataCoverage
	count := func(o Outcome) {
		switch o.Provenance() {
		case ProvenanceMeasured:
			cov.Measured++
		case ProvenanceOracleEstimated:
			cov.Estimated++
		default:
			cov.Defaulted++
		}
	}
	for _, o := range inherent.Outcomes {
		c := o.Component()
		components = append(components, c)
		byName[c.Name] = c.Value
		count(o)
	}
	components = append(components, residual.Outcome.Component())
	count(residual.Outcome)

	cov.InherentDataAvailable = inherent.DataAvailable
	cov.ResidualDataAvailable = residual.HasStatement
	cov.AIEnhanced = inherent.AIEnhanced() || residual.Outcome.Provenance() == ProvenanceOracleEstimated

	return Assessment{
		ID:          cfg.id,
		CompanyName: company,
		AssessedAt:  cfg.now().UTC(),
		FinalScore:  final,
		Category:    category,
		Inherent:    InherentRisk{Score: inherentScore, Components: byName},
		Residual: ResidualRisk{
			Score:        residualScore,
			HasStatement: residual.HasStatement,
			DataSource:   residual.DataSource,
			Registry:     residual.Registry,
			MatchedName:  residual.MatchedName,
			Provenance:   residual.Outcome.Provenance(),
			Satisfied:    residual.Satisfied,
			Missing:      residual.Missing,
			Mitigation:   Round2(cfg.scorer.Mitigation(residualRaw)),
			Saturated:    residualRaw >= SaturationResidual,
		},
		Coverage:   cov,
		Components: components,
		Geography:  inherent.Geography,
		Industry:   inherent.Industry,
	}
}
