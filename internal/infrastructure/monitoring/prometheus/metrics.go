package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the engine exports. All Record methods are
// safe on a nil receiver, which is how metrics are disabled.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Assessment
	AssessmentsTotal     CounterVec
	AssessmentDuration   HistogramVec
	AssessmentFinalScore HistogramVec
	ComponentFallbacks   CounterVec
	RegistryMatchesTotal CounterVec
	BatchItemsTotal      CounterVec

	// Oracle
	OracleRequestsTotal   CounterVec
	OracleRequestDuration HistogramVec
	OracleFieldsTotal     CounterVec
	BreakerState          GaugeVec

	// Enrichment
	EnrichmentRequestsTotal CounterVec
	EnrichmentDuration      HistogramVec

	// Infrastructure
	CacheHitsTotal     CounterVec
	CacheMissesTotal   CounterVec
	MessagesTotal      CounterVec
	ReferenceTableSize GaugeVec
	ErrorsTotal        CounterVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultExternalDurationBuckets = []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60}
	DefaultScoreBuckets            = []float64{10, 25, 35, 45, 52.5, 60, 67.5, 75, 90, 100}
)

// NewAppMetrics registers all metrics with collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "path")

	m.AssessmentsTotal = collector.RegisterCounter("assessments_total", "Completed assessments by risk category", "category")
	m.AssessmentDuration = collector.RegisterHistogram("assessment_duration_seconds", "End-to-end assessment duration", DefaultExternalDurationBuckets)
	m.AssessmentFinalScore = collector.RegisterHistogram("assessment_final_score", "Distribution of final risk scores", DefaultScoreBuckets)
	m.ComponentFallbacks = collector.RegisterCounter("component_fallbacks_total", "Components that used the fixed default", "component")
	m.RegistryMatchesTotal = collector.RegisterCounter("registry_matches_total", "Registry match attempts", "registry", "method")
	m.BatchItemsTotal = collector.RegisterCounter("batch_items_total", "Batch assessment items", "status")

	m.OracleRequestsTotal = collector.RegisterCounter("oracle_requests_total", "Gap-fill oracle calls by outcome", "outcome")
	m.OracleRequestDuration = collector.RegisterHistogram("oracle_request_duration_seconds", "Gap-fill oracle call duration", DefaultExternalDurationBuckets)
	m.OracleFieldsTotal = collector.RegisterCounter("oracle_fields_total", "Oracle fields accepted or rejected", "field", "result")
	m.BreakerState = collector.RegisterGauge("circuit_breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)", "name")

	m.EnrichmentRequestsTotal = collector.RegisterCounter("enrichment_requests_total", "Enrichment source calls", "source", "status")
	m.EnrichmentDuration = collector.RegisterHistogram("enrichment_request_duration_seconds", "Enrichment source call duration", DefaultExternalDurationBuckets, "source")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessagesTotal = collector.RegisterCounter("messages_total", "Kafka messages by topic and status", "topic", "status")
	m.ReferenceTableSize = collector.RegisterGauge("reference_table_rows", "Rows loaded per reference table or registry", "table")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordHTTPRequest records one served request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the decrement.
func (m *AppMetrics) TrackInFlight(path string) func() {
	if m == nil {
		return func() {}
	}
	g := m.HTTPActiveRequests.WithLabelValues(path)
	g.Inc()
	return g.Dec
}

// RecordAssessment records a completed assessment.
func (m *AppMetrics) RecordAssessment(category string, finalScore float64, d time.Duration) {
	if m == nil {
		return
	}
	m.AssessmentsTotal.WithLabelValues(category).Inc()
	m.AssessmentFinalScore.WithLabelValues().Observe(finalScore)
	m.AssessmentDuration.WithLabelValues().Observe(d.Seconds())
}

// RecordFallback counts a component that used its default.
func (m *AppMetrics) RecordFallback(component string) {
	if m == nil {
		return
	}
	m.ComponentFallbacks.WithLabelValues(component).Inc()
}

// RecordRegistryMatch counts a registry lookup; registry is "none" on a miss.
func (m *AppMetrics) RecordRegistryMatch(registry, method string) {
	if m == nil {
		return
	}
	m.RegistryMatchesTotal.WithLabelValues(registry, method).Inc()
}

// RecordBatchItem counts one batch item.
func (m *AppMetrics) RecordBatchItem(ok bool) {
	if m == nil {
		return
	}
	m.BatchItemsTotal.WithLabelValues(status(ok)).Inc()
}

// RecordOracleCall records one oracle round trip. outcome is "ok" or the
// failure class.
func (m *AppMetrics) RecordOracleCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.OracleRequestsTotal.WithLabelValues(outcome).Inc()
	m.OracleRequestDuration.WithLabelValues().Observe(d.Seconds())
}

// RecordOracleField counts a validated oracle field.
func (m *AppMetrics) RecordOracleField(field string, accepted bool) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.OracleFieldsTotal.WithLabelValues(field, result).Inc()
}

// SetBreakerState publishes a circuit breaker state.
func (m *AppMetrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordEnrichment records one enrichment source call.
func (m *AppMetrics) RecordEnrichment(source string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.EnrichmentRequestsTotal.WithLabelValues(source, status(ok)).Inc()
	m.EnrichmentDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordCacheAccess counts a cache hit or miss.
func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordMessage counts a produced or consumed Kafka message.
func (m *AppMetrics) RecordMessage(topic string, ok bool) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(topic, status(ok)).Inc()
}

// SetReferenceSize publishes the row count of a loaded table.
func (m *AppMetrics) SetReferenceSize(table string, rows int) {
	if m == nil {
		return
	}
	m.ReferenceTableSize.WithLabelValues(table).Set(float64(rows))
}

// RecordError counts an error by component and code.
func (m *AppMetrics) RecordError(component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
