package risk

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInherent() InherentResult {
	return InherentResult{
		Score: 61.5,
		Outcomes: []Outcome{
			Ok(NewComponent(ComponentTIPTier, 20, 40, ProvenanceMeasured, "")),
			Ok(NewComponent(ComponentPrevalence, 12, 25, ProvenanceOracleEstimated, "")),
			Fallback(NewComponent(ComponentGovResponse, 8, 15, ProvenanceMeasured, ""), "missing"),
		},
		DataAvailable: true,
		Industry:      IndustryExposure{Matched: "Mining", Score: 76.5, Source: IndustrySourceReference, Provenance: ProvenanceMeasured},
	}
}

func TestNewAssessment(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	residual := ResidualResult{
		Outcome:    Fallback(NewComponent(ComponentStatement, 25, 100, ProvenanceMeasured, ""), "no statement"),
		DataSource: DataSourceNoStatement,
	}

	a := NewAssessment("Acme", sampleInherent(), residual, WithID("fixed-id"), WithClock(func() time.Time { return fixed }))

	assert.Equal(t, "fixed-id", a.ID)
	assert.Equal(t, fixed.UTC(), a.AssessedAt)
	assert.Equal(t, 46.1, a.FinalScore)
	assert.Equal(t, CategoryMedium, a.Category)
	assert.Len(t, a.Components, 4)
	assert.Equal(t, ComponentStatement, a.Components[3].Name)
	assert.Equal(t, 20.0, a.Inherent.Components[ComponentTIPTier])

	assert.True(t, a.Coverage.InherentDataAvailable)
	assert.False(t, a.Coverage.ResidualDataAvailable)
	assert.True(t, a.Coverage.AIEnhanced)
	assert.Equal(t, 1, a.Coverage.Measured)
	assert.Equal(t, 1, a.Coverage.Estimated)
	assert.Equal(t, 2, a.Coverage.Defaulted)
	assert.Equal(t, 25.0, a.Coverage.Completeness())

	assert.True(t, a.Residual.Saturated)
	assert.Equal(t, 0.0, a.Residual.Mitigation)
}

func TestNewAssessment_BandFromUnroundedBlend(t *testing.T) {
	residual := ResidualResult{
		Outcome:      Ok(NewComponent(ComponentStatement, 25, 100, ProvenanceMeasured, "")),
		HasStatement: true,
	}
	a := NewAssessment("Edge", InherentResult{Score: 33.28}, residual)

	assert.Equal(t, 25.0, a.FinalScore)
	assert.Equal(t, CategoryVeryLow, a.Category)
	assert.Equal(t, 33.28, a.Inherent.Score)
	assert.True(t, a.Residual.Saturated)
}

func TestNewAssessment_GeneratesID(t *testing.T) {
	res := ResidualResult{Outcome: Ok(NewComponent(ComponentStatement, 10, 100, ProvenanceMeasured, ""))}
	a := NewAssessment("A", InherentResult{}, res)
	b := NewAssessment("A", InherentResult{}, res)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Coverage.AIEnhanced)
	assert.False(t, a.Residual.Saturated)
}

func TestAssessment_JSONShape(t *testing.T) {
	res := ResidualResult{
		Outcome:      Ok(NewComponent(ComponentStatement, 100, 100, ProvenanceMeasured, "")),
		HasStatement: true,
		DataSource:   "UK Modern Slavery Statement Registry",
		Registry:     "UK",
	}
	a := NewAssessment("Acme", sampleInherent(), res, WithID("x"))
	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{"final_risk_score", "risk_category", "inherent_risk", "residual_risk", "data_coverage", "assessment_id", "components"} {
		assert.Contains(t, doc, key)
	}
	inh := doc["inherent_risk"].(map[string]any)
	assert.Contains(t, inh, "inherent_score")
	assert.Contains(t, inh, "components")

	resid := doc["residual_risk"].(map[string]any)
	assert.Equal(t, true, resid["has_statement"])
	assert.Equal(t, "UK Modern Slavery Statement Registry", resid["data_source"])

	cov := doc["data_coverage"].(map[string]any)
	for _, key := range []string{"inherent_data_available", "residual_data_available", "ai_enhanced"} {
		assert.Contains(t, cov, key)
	}
}
