package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// AssessmentsClient calls the assessment endpoints.
type AssessmentsClient struct {
	client *Client
}

// Create runs one assessment synchronously.
func (a *AssessmentsClient) Create(ctx context.Context, req risk.AssessmentRequest) (*risk.Report, error) {
	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, errors.InvalidParam("company_name is required")
	}
	var out risk.Report
	if err := a.client.post(ctx, "/api/v1/assessments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query runs one assessment through the GET form of the endpoint.
func (a *AssessmentsClient) Query(ctx context.Context, req risk.AssessmentRequest) (*risk.Report, error) {
	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, errors.InvalidParam("company_name is required")
	}
	q := url.Values{}
	q.Set("company", req.CompanyName)
	if req.CountryHint != "" {
		q.Set("country", req.CountryHint)
	}
	if req.IndustryHint != "" {
		q.Set("industry", req.IndustryHint)
	}
	if len(req.OperatingCountries) > 0 {
		q.Set("countries", strings.Join(req.OperatingCountries, ","))
	}
	if len(req.Industries) > 0 {
		q.Set("industries", strings.Join(req.Industries, ","))
	}
	if req.BusinessModel != "" {
		q.Set("business_model", req.BusinessModel)
	}
	var out risk.Report
	if err := a.client.get(ctx, "/api/v1/assess?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Batch assesses several companies. Per-item failures are reported in the
// result; the error is only set when the whole call failed.
func (a *AssessmentsClient) Batch(ctx context.Context, reqs []risk.AssessmentRequest) (*risk.BatchResult, error) {
	if len(reqs) == 0 {
		return nil, errors.InvalidParam("at least one request is required")
	}
	body := struct {
		Items []risk.AssessmentRequest `json:"items"`
	}{Items: reqs}
	var out risk.BatchResult
	if err := a.client.post(ctx, "/api/v1/assessments/batch", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit queues an assessment for the worker and returns its request id.
func (a *AssessmentsClient) Submit(ctx context.Context, req risk.AssessmentRequest) (*risk.AsyncAccepted, error) {
	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, errors.InvalidParam("company_name is required")
	}
	var out risk.AsyncAccepted
	if err := a.client.post(ctx, "/api/v1/assessments/async", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
