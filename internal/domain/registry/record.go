// Package registry models the published modern-slavery statement registries
// (UK Home Office, Australian Modern Slavery Register, Business & Human
// Rights Resource Centre). Each registry has its own schema and its own
// completeness checklist; a Matcher resolves a company name against all of
// them in priority order.
package registry

import (
	"math"
	"strings"
)

// Kind identifies a registry.
type Kind string

const (
	KindUK  Kind = "UK"
	KindAU  Kind = "AU"
	KindBHR Kind = "BHR"
)

// AllKinds is the default match priority.
var AllKinds = []Kind{KindUK, KindAU, KindBHR}

// ParseKind accepts the kind code in any case.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindUK:
		return KindUK, true
	case KindAU:
		return KindAU, true
	case KindBHR:
		return KindBHR, true
	}
	return "", false
}

// DataSource is the human-readable registry name reported on assessments.
func (k Kind) DataSource() string {
	switch k {
	case KindUK:
		return "UK Modern Slavery Statement Registry"
	case KindAU:
		return "Australian Modern Slavery Register"
	case KindBHR:
		return "Business & Human Rights Resource Centre"
	}
	return string(k)
}

// FileName is the snapshot object name for the registry.
func (k Kind) FileName() string {
	switch k {
	case KindUK:
		return "uk_statements.csv"
	case KindAU:
		return "au_statements.csv"
	case KindBHR:
		return "bhr_profiles.csv"
	}
	return strings.ToLower(string(k)) + ".csv"
}

// Record is one registry row. The concrete types are UKStatement,
// AUStatement and BHRProfile.
type Record interface {
	Kind() Kind
	// Company is the name exactly as the registry publishes it.
	Company() string
	// Quality scores the row against its registry's checklist.
	Quality() Quality
}

// Quality is a statement-quality score in [0,100] with the checklist items
// that contributed and those that did not.
type Quality struct {
	Score     float64  `json:"score"`
	Satisfied []string `json:"satisfied,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

type checklist struct {
	q Quality
}

func (c *checklist) item(name string, ok bool, points float64) {
	if ok {
		c.q.Score += points
		c.q.Satisfied = append(c.q.Satisfied, name)
		return
	}
	c.q.Missing = append(c.q.Missing, name)
}

// partial always adds points and records the item as satisfied only when
// complete.
func (c *checklist) partial(name string, complete bool, points float64) {
	c.q.Score += points
	if complete {
		c.q.Satisfied = append(c.q.Satisfied, name)
		return
	}
	c.q.Missing = append(c.q.Missing, name)
}

func (c *checklist) result() Quality {
	c.q.Score = math.Round(clamp(c.q.Score, 0, 100)*10) / 10
	return c.q
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ─────────────────────────────────────────────────────────────────────────────
// UK
// ─────────────────────────────────────────────────────────────────────────────

// UKStatement is a Home Office registry entry under section 54 of the
// Modern Slavery Act 2015.
type UKStatement struct {
	CompanyName       string `json:"company_name"`
	StatementURL      string `json:"statement_url,omitempty"`
	Year              int    `json:"year,omitempty"`
	BoardApproval     bool   `json:"board_approval"`
	DirectorSignature bool   `json:"director_signature"`
	HomepageLink      bool   `json:"homepage_link"`

	OrganisationalStructure bool `json:"organisational_structure"`
	Policies                bool `json:"policies"`
	DueDiligence            bool `json:"due_diligence"`
	RiskAssessment          bool `json:"risk_assessment"`
	KPIs                    bool `json:"kpis"`
	Training                bool `json:"training"`
}

// UK checklist points.
const (
	ukBase              = 30.0
	ukBoardApproval     = 10.0
	ukDirectorSignature = 10.0
	ukHomepageLink      = 5.0
	ukPerArea           = 7.5
)

func (s UKStatement) Kind() Kind      { return KindUK }
func (s UKStatement) Company() string { return s.CompanyName }

func (s UKStatement) Quality() Quality {
	c := &checklist{q: Quality{Score: ukBase}}
	c.item("board_approval", s.BoardApproval, ukBoardApproval)
	c.item("director_signature", s.DirectorSignature, ukDirectorSignature)
	c.item("homepage_link", s.HomepageLink, ukHomepageLink)
	c.item("organisational_structure", s.OrganisationalStructure, ukPerArea)
	c.item("policies", s.Policies, ukPerArea)
	c.item("due_diligence", s.DueDiligence, ukPerArea)
	c.item("risk_assessment", s.RiskAssessment, ukPerArea)
	c.item("kpis", s.KPIs, ukPerArea)
	c.item("training", s.Training, ukPerArea)
	return c.result()
}

// ─────────────────────────────────────────────────────────────────────────────
// AU
// ─────────────────────────────────────────────────────────────────────────────

// AUMandatoryCriteria is the number of reporting criteria in section 16 of
// the Modern Slavery Act 2018 (Cth).
const AUMandatoryCriteria = 7

// AUStatement is an Australian Modern Slavery Register entry.
type AUStatement struct {
	EntityName                 string `json:"entity_name"`
	ABN                        string `json:"abn,omitempty"`
	ReportingPeriod            string `json:"reporting_period,omitempty"`
	PrincipalBodyApproval      bool   `json:"principal_body_approval"`
	ResponsibleMemberSignature bool   `json:"responsible_member_signature"`
	MandatoryCriteriaMet       int    `json:"mandatory_criteria_met"`
}

const (
	auBase              = 20.0
	auApproval          = 10.0
	auSignature         = 10.0
	auCriteriaMaxPoints = 60.0
)

func (s AUStatement) Kind() Kind      { return KindAU }
func (s AUStatement) Company() string { return s.EntityName }

func (s AUStatement) Quality() Quality {
	c := &checklist{q: Quality{Score: auBase}}
	c.item("principal_body_approval", s.PrincipalBodyApproval, auApproval)
	c.item("responsible_member_signature", s.ResponsibleMemberSignature, auSignature)

	met := s.MandatoryCriteriaMet
	if met < 0 {
		met = 0
	}
	if met > AUMandatoryCriteria {
		met = AUMandatoryCriteria
	}
	c.partial("mandatory_criteria", met == AUMandatoryCriteria, auCriteriaMaxPoints*float64(met)/AUMandatoryCriteria)
	return c.result()
}

// ─────────────────────────────────────────────────────────────────────────────
// BHR
// ─────────────────────────────────────────────────────────────────────────────

// BHRProfile is a Business & Human Rights Resource Centre company profile.
type BHRProfile struct {
	CompanyName       string  `json:"company_name"`
	Sector            string  `json:"sector,omitempty"`
	HQCountry         string  `json:"hq_country,omitempty"`
	HumanRightsPolicy bool    `json:"human_rights_policy"`
	ResponseRate      float64 `json:"response_rate"`
	BenchmarkScore    float64 `json:"benchmark_score"`
	Allegations       int     `json:"allegations"`
}

const (
	bhrBase               = 15.0
	bhrPolicy             = 20.0
	bhrResponseWeight     = 0.35
	bhrBenchmarkWeight    = 0.30
	bhrAllegationPenalty  = 5.0
	bhrMaxAllegationTotal = 20.0
)

func (p BHRProfile) Kind() Kind      { return KindBHR }
func (p BHRProfile) Company() string { return p.CompanyName }

func (p BHRProfile) Quality() Quality {
	c := &checklist{q: Quality{Score: bhrBase}}
	c.item("human_rights_policy", p.HumanRightsPolicy, bhrPolicy)

	rate := clamp(p.ResponseRate, 0, 100)
	c.partial("responds_to_allegations", rate >= 50, bhrResponseWeight*rate)

	bench := clamp(p.BenchmarkScore, 0, 100)
	c.partial("benchmark_disclosure", bench >= 50, bhrBenchmarkWeight*bench)

	if p.Allegations > 0 {
		c.q.Score -= math.Min(bhrAllegationPenalty*float64(p.Allegations), bhrMaxAllegationTotal)
		c.q.Missing = append(c.q.Missing, "no_open_allegations")
	} else {
		c.q.Satisfied = append(c.q.Satisfied, "no_open_allegations")
	}
	return c.result()
}
