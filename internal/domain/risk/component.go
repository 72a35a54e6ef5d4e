// Package risk holds the scoring value objects: risk components with their
// provenance, the typed Ok/Fallback outcome every calculator step returns,
// the composite blend and the final immutable Assessment.
package risk

import "math"

// Provenance records where a component value came from.
type Provenance string

const (
	ProvenanceMeasured        Provenance = "measured"
	ProvenanceOracleEstimated Provenance = "oracle-estimated"
	ProvenanceDefaultFallback Provenance = "default-fallback"
)

// Reliability ranks provenance; higher is more trustworthy.
func (p Provenance) Reliability() int {
	switch p {
	case ProvenanceMeasured:
		return 2
	case ProvenanceOracleEstimated:
		return 1
	}
	return 0
}

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceMeasured, ProvenanceOracleEstimated, ProvenanceDefaultFallback:
		return true
	}
	return false
}

// LeastReliable returns the weakest provenance among ps, or
// default-fallback when ps is empty.
func LeastReliable(ps ...Provenance) Provenance {
	if len(ps) == 0 {
		return ProvenanceDefaultFallback
	}
	worst := ps[0]
	for _, p := range ps[1:] {
		if p.Reliability() < worst.Reliability() {
			worst = p
		}
	}
	return worst
}

// Component names.
const (
	ComponentTIPTier     = "tip_tier"
	ComponentPrevalence  = "prevalence"
	ComponentGovResponse = "gov_response"
	ComponentLaborIssues = "labor_issues"
	ComponentIndustry    = "industry"
	ComponentStatement   = "statement_quality"
)

// Component is one scored contribution. Value always lies in [0, MaxValue].
type Component struct {
	Name       string     `json:"name"`
	Value      float64    `json:"value"`
	MaxValue   float64    `json:"max_value"`
	Provenance Provenance `json:"provenance"`
	Reason     string     `json:"reason,omitempty"`
}

// NewComponent builds a component, clamping value into [0, max] and rounding
// it to two decimals.
func NewComponent(name string, value, max float64, prov Provenance, reason string) Component {
	if max < 0 {
		max = 0
	}
	return Component{
		Name:       name,
		Value:      Round2(Clamp(value, 0, max)),
		MaxValue:   max,
		Provenance: prov,
		Reason:     reason,
	}
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Round1 rounds to one decimal.
func Round1(v float64) float64 { return math.Round(v*10) / 10 }
