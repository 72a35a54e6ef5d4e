// Package risk defines the wire types of the assessment HTTP API, for
// clients that do not link the engine itself.
package risk

import (
	"encoding/json"
	"time"
)

// Category bands.
const (
	CategoryVeryLow  = "Very Low"
	CategoryLow      = "Low"
	CategoryMedium   = "Medium"
	CategoryHigh     = "High"
	CategoryVeryHigh = "Very High"
)

// AssessmentRequest is the body of an assessment call.
type AssessmentRequest struct {
	CompanyName        string   `json:"company_name"`
	CountryHint        string   `json:"country_hint,omitempty"`
	IndustryHint       string   `json:"industry_hint,omitempty"`
	OperatingCountries []string `json:"operating_countries,omitempty"`
	Industries         []string `json:"industries,omitempty"`
	BusinessModel      string   `json:"business_model,omitempty"`
}

// Component is one scored term with its provenance.
type Component struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	MaxValue   float64 `json:"max_value"`
	Provenance string  `json:"provenance"`
	Reason     string  `json:"reason,omitempty"`
}

// InherentRisk is the inherent block.
type InherentRisk struct {
	Score      float64            `json:"inherent_score"`
	Components map[string]float64 `json:"components"`
}

// ResidualRisk is the residual block.
type ResidualRisk struct {
	Score        float64  `json:"residual_score"`
	HasStatement bool     `json:"has_statement"`
	DataSource   string   `json:"data_source"`
	Registry     string   `json:"registry,omitempty"`
	MatchedName  string   `json:"matched_name,omitempty"`
	Provenance   string   `json:"provenance"`
	Satisfied    []string `json:"satisfied,omitempty"`
	Missing      []string `json:"missing,omitempty"`
	Mitigation   float64  `json:"mitigation"`
	Saturated    bool     `json:"saturated"`
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

// IndustryExposure names the industry behind the industry component.
type IndustryExposure struct {
	Matched string  `json:"matched,omitempty"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

// Recommendation is a mitigation action.
type Recommendation struct {
	ID        string `json:"id"`
	Priority  string `json:"priority"`
	Timeline  string `json:"timeline"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// Requirement is an applicable reporting obligation.
type Requirement struct {
	ID           string `json:"id"`
	Jurisdiction string `json:"jurisdiction"`
	Framework    string `json:"framework"`
	Requirement  string `json:"requirement"`
	Deadline     string `json:"deadline"`
}

// Alert is a monitoring alert.
type Alert struct {
	ID      string `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Quality is the assessment quality summary.
type Quality struct {
	DataCompleteness float64   `json:"data_completeness"`
	Sections         []string  `json:"completed_sections"`
	MissingSections  []string  `json:"missing_sections,omitempty"`
	ConfidenceLevel  string    `json:"confidence_level"`
	LastUpdated      time.Time `json:"last_updated"`
	NextReviewDate   time.Time `json:"next_review_date"`
}

// Report is a complete assessment. Geography and Enrichment are passed
// through undecoded.
type Report struct {
	ID              string           `json:"assessment_id"`
	CompanyName     string           `json:"company_name"`
	AssessedAt      time.Time        `json:"assessed_at"`
	FinalScore      float64          `json:"final_risk_score"`
	Category        string           `json:"risk_category"`
	Inherent        InherentRisk     `json:"inherent_risk"`
	Residual        ResidualRisk     `json:"residual_risk"`
	Coverage        DataCoverage     `json:"data_coverage"`
	Components      []Component      `json:"components"`
	Geography       json.RawMessage  `json:"geography,omitempty"`
	Industry        IndustryExposure `json:"industry"`
	Enrichment      json.RawMessage  `json:"enrichment,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Compliance      []Requirement    `json:"compliance_requirements"`
	Alerts          []Alert          `json:"monitoring_alerts"`
	Quality         Quality          `json:"assessment_quality"`
}

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// BatchItem is one entry of a batch response.
type BatchItem struct {
	Index   int        `json:"index"`
	Success bool       `json:"success"`
	Report  *Report    `json:"report,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// BatchResult is the data of a batch response.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// AsyncAccepted acknowledges a queued assessment.
type AsyncAccepted struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// Country is a country reference row. Nil pointers are absent data.
type Country struct {
	Name                  string   `json:"name"`
	ISO3                  string   `json:"iso3"`
	GovernanceRisk        *float64 `json:"governance_risk,omitempty"`
	EconomicVulnerability *float64 `json:"economic_vulnerability,omitempty"`
	PrevalencePer1000     *float64 `json:"prevalence_per_1000,omitempty"`
	TIPTier               string   `json:"tip_tier,omitempty"`
	GovResponseScore      *float64 `json:"gov_response_score,omitempty"`
	LaborIssues           []string `json:"labor_issues,omitempty"`
}

// CountryLookup is the result of a country lookup.
type CountryLookup struct {
	Input     string   `json:"input"`
	Canonical string   `json:"canonical"`
	Country   Country  `json:"country"`
	Missing   []string `json:"missing_indicators,omitempty"`
}

// Industry is an industry reference row with its composite score.
type Industry struct {
	Name                  string   `json:"name"`
	ForcedLaborRisk       float64  `json:"forced_labor_risk"`
	ChildLaborRisk        float64  `json:"child_labor_risk"`
	SupplyChainComplexity float64  `json:"supply_chain_complexity"`
	HighRiskProcesses     []string `json:"high_risk_processes,omitempty"`
	Keywords              []string `json:"keywords,omitempty"`
	RiskScore             float64  `json:"risk_score"`
}

// IndustryLookup is the result of an industry query.
type IndustryLookup struct {
	Query   string     `json:"query"`
	Matches []Industry `json:"matches"`
}

// RegistryMatch is one registry hit. Record keeps the registry-specific
// columns undecoded.
type RegistryMatch struct {
	Kind       string          `json:"kind"`
	Record     json.RawMessage `json:"record"`
	Method     string          `json:"method"`
	Similarity float64         `json:"similarity"`
}

// RegistryPreview is the result of a registry match preview.
type RegistryPreview struct {
	Company    string          `json:"company"`
	Folded     string          `json:"folded"`
	Best       *RegistryMatch  `json:"best,omitempty"`
	Candidates []RegistryMatch `json:"candidates"`
}

// Capabilities describes a running instance.
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

// IsElevated reports whether the category is High or Very High.
func (r Report) IsElevated() bool {
	return r.Category == CategoryHigh || r.Category == CategoryVeryHigh
}

// FallbackComponents lists the components that used the fixed default.
func (r Report) FallbackComponents() []string {
	var out []string
	for _, c := range r.Components {
		if c.Provenance == "default-fallback" {
			out = append(out, c.Name)
		}
	}
	return out
}
