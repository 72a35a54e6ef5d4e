package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	client, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return client
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}

type testLogger struct {
	mu      sync.Mutex
	lastMsg string
	count   int32
}

func (l *testLogger) Debugf(format string, args ...interface{}) { l.log(format, args...) }
func (l *testLogger) Infof(format string, args ...interface{})  { l.log(format, args...) }
func (l *testLogger) Errorf(format string, args ...interface{}) { l.log(format, args...) }

func (l *testLogger) log(format string, args ...interface{}) {
	atomic.AddInt32(&l.count, 1)
	l.mu.Lock()
	l.lastMsg = fmt.Sprintf(format, args...)
	l.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Constructor Tests
// ---------------------------------------------------------------------------

func TestNewClient_Success(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "msrisk-go-sdk/")
	assert.Empty(t, c.apiKey)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://invalid", "invalid-url", "http://[::1"} {
		_, err := NewClient(u)
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid), u)
	}
}

func TestClient_SubClients_ConcurrentAccess(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	seen := make([]*AssessmentsClient, 16)
	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = c.Assessments()
			_ = c.Reference()
		}(i)
	}
	wg.Wait()
	for _, a := range seen {
		assert.Same(t, seen[0], a)
	}
	assert.Same(t, c.Reference(), c.Reference())
}

// ---------------------------------------------------------------------------
// Transport Tests
// ---------------------------------------------------------------------------

func TestClient_Do_RequestHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("User-Agent"), "msrisk-go-sdk/")
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeData(w, http.StatusOK, map[string]string{"ok": "yes"})
	}, WithAPIKey("k1"))

	var out map[string]string
	require.NoError(t, c.post(context.Background(), "echo", map[string]string{"a": "b"}, &out))
	assert.Equal(t, "yes", out["ok"])
}

func TestClient_Do_NoAuthorizationWithoutKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		writeData(w, http.StatusOK, nil)
	})
	require.NoError(t, c.get(context.Background(), "/x", nil))
}

func TestClient_Do_4xxNoRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusBadRequest, "ASM_001", "company name is required")
	})

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ASM_001", apiErr.Code)
	assert.Equal(t, "company name is required", apiErr.Message)
	assert.True(t, apiErr.IsBadRequest())
	assert.NotEmpty(t, apiErr.RequestID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Do_5xxRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeError(w, http.StatusServiceUnavailable, "COMMON_008", "unavailable")
			return
		}
		writeData(w, http.StatusOK, map[string]int{"n": 1})
	})

	var out map[string]int
	require.NoError(t, c.get(context.Background(), "/x", &out))
	assert.Equal(t, 1, out["n"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Do_5xxRetryExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusInternalServerError, "COMMON_001", "internal server error")
	}, WithRetryMax(2))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Do_429RetryAfter(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeError(w, http.StatusTooManyRequests, "COMMON_007", "too many requests")
			return
		}
		writeData(w, http.StatusOK, nil)
	})

	require.NoError(t, c.get(context.Background(), "/x", nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Do_429WithoutRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "COMMON_007", "too many requests")
	})

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimited())
}

func TestClient_Do_NonEnvelopeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "gone")
	})

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "gone", apiErr.Message)
}

func TestClient_Do_NetworkError(t *testing.T) {
	logger := &testLogger{}
	c, err := NewClient("http://127.0.0.1:1", WithRetryMax(1), WithRetryWait(time.Millisecond, time.Millisecond), WithLogger(logger))
	require.NoError(t, err)

	err = c.get(context.Background(), "/x", nil)
	assert.Error(t, err)
	assert.Greater(t, atomic.LoadInt32(&logger.count), int32(0))
}

func TestClient_Do_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, nil)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Do_ContextTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		writeData(w, http.StatusOK, nil)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIError_Methods(t *testing.T) {
	e := &APIError{StatusCode: 503, Code: "COMMON_008", Message: "down", RequestID: "r1"}
	assert.True(t, e.IsServerError())
	assert.False(t, e.IsNotFound())
	assert.False(t, e.IsRateLimited())
	assert.Equal(t, "msrisk: COMMON_008 (HTTP 503): down [request_id=r1]", e.Error())
}

// ---------------------------------------------------------------------------
// Endpoint Tests
// ---------------------------------------------------------------------------

func TestAssessments_Create(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/assessments", r.URL.Path)
		var req risk.AssessmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Acme", req.CompanyName)
		writeData(w, http.StatusOK, map[string]interface{}{
			"company_name":     "Acme",
			"final_risk_score": 71.2,
			"risk_category":    "High",
		})
	})

	rep, err := c.Assessments().Create(context.Background(), risk.AssessmentRequest{CompanyName: "Acme", CountryHint: "Ghana"})
	require.NoError(t, err)
	assert.Equal(t, 71.2, rep.FinalScore)
	assert.True(t, rep.IsElevated())
}

func TestAssessments_RejectsEmptyCompanyLocally(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)

	_, err = c.Assessments().Create(context.Background(), risk.AssessmentRequest{CompanyName: "  "})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
	_, err = c.Assessments().Batch(context.Background(), nil)
	assert.Error(t, err)
}

func TestAssessments_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/assess", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Acme Foods", q.Get("company"))
		assert.Equal(t, "Ghana,Ivory Coast", q.Get("countries"))
		assert.Equal(t, "cocoa farms", q.Get("business_model"))
		writeData(w, http.StatusOK, map[string]interface{}{"company_name": "Acme Foods", "risk_category": "Medium"})
	})

	rep, err := c.Assessments().Query(context.Background(), risk.AssessmentRequest{
		CompanyName:        "Acme Foods",
		OperatingCountries: []string{"Ghana", "Ivory Coast"},
		BusinessModel:      "cocoa farms",
	})
	require.NoError(t, err)
	assert.Equal(t, risk.CategoryMedium, rep.Category)
}

func TestAssessments_Batch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/assessments/batch", r.URL.Path)
		var body struct {
			Items []risk.AssessmentRequest `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Items, 2)
		writeData(w, http.StatusOK, map[string]interface{}{
			"items": []map[string]interface{}{
				{"index": 0, "success": true, "report": map[string]interface{}{"company_name": "A"}},
				{"index": 1, "success": false, "error": map[string]string{"code": "ASM_001", "message": "bad"}},
			},
			"succeeded": 1,
			"failed":    1,
		})
	})

	res, err := c.Assessments().Batch(context.Background(), []risk.AssessmentRequest{{CompanyName: "A"}, {CompanyName: ""}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "A", res.Items[0].Report.CompanyName)
	assert.Equal(t, "ASM_001", res.Items[1].Error.Code)
}

func TestAssessments_Submit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/assessments/async", r.URL.Path)
		writeData(w, http.StatusAccepted, map[string]string{"request_id": "req-9", "status": "queued"})
	})

	acc, err := c.Assessments().Submit(context.Background(), risk.AssessmentRequest{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "req-9", acc.RequestID)
	assert.Equal(t, "queued", acc.Status)
}

func TestReference_Endpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/reference/countries":
			writeData(w, http.StatusOK, map[string][]string{"countries": {"Ghana", "United Kingdom"}})
		case "/api/v1/reference/countries/Côte d'Ivoire":
			writeData(w, http.StatusOK, map[string]interface{}{
				"input":     "Côte d'Ivoire",
				"canonical": "Ivory Coast",
				"country":   map[string]interface{}{"name": "Ivory Coast", "iso3": "CIV", "tip_tier": "2"},
			})
		case "/api/v1/reference/industries":
			if q := r.URL.Query().Get("q"); q != "" {
				writeData(w, http.StatusOK, map[string]interface{}{
					"query":   q,
					"matches": []map[string]interface{}{{"name": "Mining", "risk_score": 76.5}},
				})
				return
			}
			writeData(w, http.StatusOK, map[string][]string{"industries": {"Mining"}})
		case "/api/v1/registries/match":
			writeData(w, http.StatusOK, map[string]interface{}{
				"company":    r.URL.Query().Get("company"),
				"folded":     "wattle mining",
				"best":       map[string]interface{}{"kind": "au", "method": "substring", "similarity": 1, "record": map[string]string{"name": "Wattle Mining Pty Ltd"}},
				"candidates": []interface{}{},
			})
		default:
			writeError(w, http.StatusNotFound, "COMMON_005", "not found")
		}
	})
	ctx := context.Background()
	ref := c.Reference()

	countries, err := ref.Countries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ghana", "United Kingdom"}, countries)

	civ, err := ref.Country(ctx, "Côte d'Ivoire")
	require.NoError(t, err)
	assert.Equal(t, "CIV", civ.Country.ISO3)
	assert.Equal(t, "Ivory Coast", civ.Canonical)

	inds, err := ref.Industries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mining"}, inds)

	m, err := ref.MatchIndustry(ctx, "gold mine")
	require.NoError(t, err)
	require.Len(t, m.Matches, 1)
	assert.Equal(t, 76.5, m.Matches[0].RiskScore)

	p, err := ref.MatchRegistry(ctx, "Wattle Mining")
	require.NoError(t, err)
	require.NotNil(t, p.Best)
	assert.Equal(t, "au", p.Best.Kind)
	assert.JSONEq(t, `{"name":"Wattle Mining Pty Ltd"}`, string(p.Best.Record))

	_, err = ref.Country(ctx, "Atlantis")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}

func TestClient_HealthAndCapabilities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive", "version": "1.2.3", "uptime": "5s"})
		case "/capabilities":
			writeData(w, http.StatusOK, map[string]interface{}{
				"version":      "1.2.3",
				"capabilities": map[string]interface{}{"oracle_enabled": false, "reference_countries": 40, "max_batch_size": 100},
			})
		}
	})

	live, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alive", live.Status)

	info, err := c.Capabilities(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info.Capabilities)
	assert.Equal(t, 40, info.Capabilities.Countries)
	assert.Equal(t, 100, info.Capabilities.MaxBatchSize)
}
