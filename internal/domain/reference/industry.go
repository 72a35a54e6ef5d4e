package reference

import "math"

// Industry is one row of the industry reference table.
type Industry struct {
	Name                  string   `json:"name"`
	ForcedLaborRisk       float64  `json:"forced_labor_risk"`
	ChildLaborRisk        float64  `json:"child_labor_risk"`
	SupplyChainComplexity float64  `json:"supply_chain_complexity"`
	HighRiskProcesses     []string `json:"high_risk_processes,omitempty"`
	// Keywords are phrases that, found in a business-model description,
	// indicate exposure to this industry.
	Keywords []string `json:"keywords,omitempty"`
}

// Industry risk score weights.
const (
	forcedLaborWeight = 0.5
	childLaborWeight  = 0.3
	complexityWeight  = 0.2
)

// NeutralIndustryScore is the midpoint used when nothing matched.
const NeutralIndustryScore = 50.0

// RiskScore blends the three indicators into a single 0-100 score rounded to
// one decimal.
func (i Industry) RiskScore() float64 {
	s := forcedLaborWeight*i.ForcedLaborRisk +
		childLaborWeight*i.ChildLaborRisk +
		complexityWeight*i.SupplyChainComplexity
	return math.Round(s*10) / 10
}

// extremity is the distance of the score from the neutral midpoint.
func (i Industry) extremity() float64 {
	return math.Abs(i.RiskScore() - NeutralIndustryScore)
}
