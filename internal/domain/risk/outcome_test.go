package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewComponent_Clamps(t *testing.T) {
	c := NewComponent(ComponentTIPTier, 55, 40, ProvenanceOracleEstimated, "")
	assert.Equal(t, 40.0, c.Value)

	c = NewComponent(ComponentPrevalence, -3, 25, ProvenanceMeasured, "")
	assert.Equal(t, 0.0, c.Value)

	c = NewComponent(ComponentPrevalence, math.NaN(), 25, ProvenanceMeasured, "")
	assert.Equal(t, 0.0, c.Value)

	c = NewComponent(ComponentGovResponse, 4.8000001, 15, ProvenanceMeasured, "")
	assert.Equal(t, 4.8, c.Value)
}

func TestOutcome_OkAndFallback(t *testing.T) {
	ok := Ok(NewComponent(ComponentTIPTier, 40, 40, ProvenanceMeasured, "Tier 3"))
	assert.False(t, ok.IsFallback())
	assert.Empty(t, ok.Reason())
	assert.Equal(t, ProvenanceMeasured, ok.Provenance())

	fb := Fallback(NewComponent(ComponentTIPTier, 25, 40, ProvenanceMeasured, ""), "country not in reference table")
	assert.True(t, fb.IsFallback())
	assert.Equal(t, ProvenanceDefaultFallback, fb.Provenance())
	assert.Equal(t, "country not in reference table", fb.Component().Reason)
	assert.Equal(t, 25.0, fb.Value())
}

func TestLeastReliable(t *testing.T) {
	assert.Equal(t, ProvenanceDefaultFallback, LeastReliable())
	assert.Equal(t, ProvenanceMeasured, LeastReliable(ProvenanceMeasured, ProvenanceMeasured))
	assert.Equal(t, ProvenanceOracleEstimated, LeastReliable(ProvenanceMeasured, ProvenanceOracleEstimated))
	assert.Equal(t, ProvenanceDefaultFallback,
		LeastReliable(ProvenanceOracleEstimated, ProvenanceDefaultFallback, ProvenanceMeasured))
	assert.False(t, Provenance("guess").Valid())
}
