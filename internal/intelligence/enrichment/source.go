// Package enrichment gathers supplementary context for a report: World Bank
// governance and economic indicators per country, recent news coverage and
// a model-estimated sentiment score. Enrichment decorates the report only;
// it never feeds the risk score.
package enrichment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/resilience"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Source names used in logs and metrics.
const (
	SourceWorldBank = "world_bank"
	SourceNews      = "news"
	SourceSentiment = "sentiment"
)

const maxResponseBytes = 4 << 20

// httpSource is the shared GET-and-decode path of the HTTP sources.
type httpSource struct {
	name    string
	baseURL string
	http    *http.Client
	limiter resilience.Limiter
	timeout time.Duration
	header  http.Header
}

func (s *httpSource) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeEnrichmentUnavailable, s.name+": rate limit wait aborted")
		}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEnrichmentUnavailable, s.name+": create request")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.Wrap(err, errors.ErrCodeTimeout, s.name+": request timed out")
		}
		return errors.Wrap(err, errors.ErrCodeEnrichmentUnavailable, s.name+": request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		return errors.New(errors.ErrCodeEnrichmentUnavailable, s.name+": unexpected status").
			WithDetail(strconv.Itoa(resp.StatusCode))
	}
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeEnrichmentMalformed, s.name+": decode response")
	}
	return nil
}
