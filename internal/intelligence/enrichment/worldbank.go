package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// World Bank indicator codes.
const (
	IndicatorGDPPerCapita      = "NY.GDP.PCAP.CD"
	IndicatorUnemployment      = "SL.UEM.TOTL.ZS"
	IndicatorGini              = "SI.POV.GINI"
	IndicatorControlCorruption = "CC.EST"
	IndicatorRuleOfLaw         = "RL.EST"
	IndicatorGovEffectiveness  = "GE.EST"
)

// Indicators is the fixed indicator set, in report order.
var Indicators = []string{
	IndicatorGDPPerCapita,
	IndicatorUnemployment,
	IndicatorGini,
	IndicatorControlCorruption,
	IndicatorRuleOfLaw,
	IndicatorGovEffectiveness,
}

// IndicatorDateRange bounds the years queried.
const IndicatorDateRange = "2020:2023"

// IndicatorValue is the latest non-null observation of one indicator.
type IndicatorValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Year  string  `json:"year"`
}

// CountryIndicators is the World Bank block for one country. Indicators
// with no observation in range are omitted.
type CountryIndicators struct {
	Country    string                    `json:"country"`
	ISO3       string                    `json:"iso3"`
	Indicators map[string]IndicatorValue `json:"indicators"`
}

// WorldBankClient reads indicators from the World Bank v2 API.
type WorldBankClient struct {
	src *httpSource
}

// NewWorldBankClient builds a client. httpClient may be nil.
func NewWorldBankClient(baseURL string, httpClient *http.Client, limiter resilience.Limiter, timeout time.Duration) *WorldBankClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &WorldBankClient{src: &httpSource{
		name:    SourceWorldBank,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: limiter,
		timeout: timeout,
	}}
}

type wbObservation struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Fetch queries every indicator for iso3 concurrently. A failed indicator
// is omitted; an error is returned only when every indicator failed.
func (c *WorldBankClient) Fetch(ctx context.Context, country, iso3 string) (CountryIndicators, error) {
	out := CountryIndicators{Country: country, ISO3: iso3, Indicators: make(map[string]IndicatorValue)}
	if iso3 == "" {
		return out, errors.New(errors.ErrCodeEnrichmentUnavailable, "world_bank: country has no ISO3 code").WithDetail(country)
	}

	var (
		mu       sync.Mutex
		failures int
		lastErr  error
	)
	p := pool.New().WithMaxGoroutines(len(Indicators))
	for _, code := range Indicators {
		code := code
		p.Go(func() {
			v, ok, err := c.indicator(ctx, iso3, code)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = err
				return
			}
			if ok {
				out.Indicators[code] = v
			}
		})
	}
	p.Wait()

	if failures == len(Indicators) {
		return out, lastErr
	}
	return out, nil
}

func (c *WorldBankClient) indicator(ctx context.Context, iso3, code string) (IndicatorValue, bool, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("date", IndicatorDateRange)
	q.Set("per_page", "4")

	var raw []json.RawMessage
	path := "/country/" + url.PathEscape(strings.ToLower(iso3)) + "/indicator/" + url.PathEscape(code)
	if err := c.src.getJSON(ctx, path, q, &raw); err != nil {
		return IndicatorValue{}, false, err
	}
	// An error payload is a single-element array carrying "message".
	if len(raw) < 2 {
		return IndicatorValue{}, false, errors.New(errors.ErrCodeEnrichmentMalformed, "world_bank: unexpected payload").WithDetail(code)
	}
	if bytes.Equal(bytes.TrimSpace(raw[1]), []byte("null")) {
		return IndicatorValue{}, false, nil
	}
	var obs []wbObservation
	if err := json.Unmarshal(raw[1], &obs); err != nil {
		return IndicatorValue{}, false, errors.Wrap(err, errors.ErrCodeEnrichmentMalformed, "world_bank: decode observations")
	}
	// Observations arrive newest first.
	for _, o := range obs {
		if o.Value != nil {
			return IndicatorValue{Name: o.Indicator.Value, Value: *o.Value, Year: o.Date}, true, nil
		}
	}
	return IndicatorValue{}, false, nil
}
