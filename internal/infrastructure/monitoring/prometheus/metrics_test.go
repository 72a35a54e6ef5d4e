package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetrics_Record(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	require.NotNil(t, m)

	m.RecordHTTPRequest("POST", "/api/v1/assessments", 200, 30*time.Millisecond)
	done := m.TrackInFlight("/api/v1/assessments")
	m.RecordAssessment("High", 66.2, 200*time.Millisecond)
	m.RecordFallback("tip_tier")
	m.RecordRegistryMatch("AU", "substring")
	m.RecordBatchItem(false)
	m.RecordOracleCall("timeout", time.Second)
	m.RecordOracleField("prevalence_risk", false)
	m.SetBreakerState("oracle", 2)
	m.RecordEnrichment("world_bank", true, 50*time.Millisecond)
	m.RecordCacheAccess("redis", true)
	m.RecordCacheAccess("redis", false)
	m.RecordMessage("msrisk.assessment.completed", true)
	m.SetReferenceSize("countries", 48)
	m.RecordError("oracle", "ORC_002")

	out := scrapeMetrics(t, c)
	for _, want := range []string{
		`test_unit_http_requests_total{method="POST",path="/api/v1/assessments",status_code="200"} 1`,
		`test_unit_http_active_requests{path="/api/v1/assessments"} 1`,
		`test_unit_assessments_total{category="High"} 1`,
		`test_unit_component_fallbacks_total{component="tip_tier"} 1`,
		`test_unit_registry_matches_total{method="substring",registry="AU"} 1`,
		`test_unit_batch_items_total{status="failure"} 1`,
		`test_unit_oracle_requests_total{outcome="timeout"} 1`,
		`test_unit_oracle_fields_total{field="prevalence_risk",result="rejected"} 1`,
		`test_unit_circuit_breaker_state{name="oracle"} 2`,
		`test_unit_enrichment_requests_total{source="world_bank",status="success"} 1`,
		`test_unit_cache_hits_total{cache="redis"} 1`,
		`test_unit_cache_misses_total{cache="redis"} 1`,
		`test_unit_messages_total{status="success",topic="msrisk.assessment.completed"} 1`,
		`test_unit_reference_table_rows{table="countries"} 48`,
		`test_unit_errors_total{code="ORC_002",component="oracle"} 1`,
	} {
		assert.Contains(t, out, want)
	}

	done()
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_http_active_requests{path="/api/v1/assessments"} 0`)
}

func TestAppMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, 0)
		m.TrackInFlight("/")()
		m.RecordAssessment("Low", 30, 0)
		m.RecordFallback("x")
		m.RecordRegistryMatch("none", "none")
		m.RecordBatchItem(true)
		m.RecordOracleCall("ok", 0)
		m.RecordOracleField("f", true)
		m.SetBreakerState("b", 0)
		m.RecordEnrichment("news", false, 0)
		m.RecordCacheAccess("memory", true)
		m.RecordMessage("t", true)
		m.SetReferenceSize("industries", 1)
		m.RecordError("c", "x")
	})
}
