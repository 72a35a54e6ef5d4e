package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// ReferenceClient calls the reference data and registry endpoints.
type ReferenceClient struct {
	client *Client
}

// Countries lists the canonical country names.
func (r *ReferenceClient) Countries(ctx context.Context) ([]string, error) {
	var out struct {
		Countries []string `json:"countries"`
	}
	if err := r.client.get(ctx, "/api/v1/reference/countries", &out); err != nil {
		return nil, err
	}
	return out.Countries, nil
}

// Country resolves a country name or alias.
func (r *ReferenceClient) Country(ctx context.Context, name string) (*risk.CountryLookup, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.InvalidParam("country name is required")
	}
	var out risk.CountryLookup
	if err := r.client.get(ctx, "/api/v1/reference/countries/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Industries lists the industry names.
func (r *ReferenceClient) Industries(ctx context.Context) ([]string, error) {
	var out struct {
		Industries []string `json:"industries"`
	}
	if err := r.client.get(ctx, "/api/v1/reference/industries", &out); err != nil {
		return nil, err
	}
	return out.Industries, nil
}

// MatchIndustry returns every industry matching q, the selected one first.
func (r *ReferenceClient) MatchIndustry(ctx context.Context, q string) (*risk.IndustryLookup, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.InvalidParam("industry query is required")
	}
	var out risk.IndustryLookup
	if err := r.client.get(ctx, "/api/v1/reference/industries?q="+url.QueryEscape(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MatchRegistry previews how company resolves against the statement
// registries.
func (r *ReferenceClient) MatchRegistry(ctx context.Context, company string) (*risk.RegistryPreview, error) {
	if strings.TrimSpace(company) == "" {
		return nil, errors.InvalidParam("company is required")
	}
	var out risk.RegistryPreview
	if err := r.client.get(ctx, "/api/v1/registries/match?company="+url.QueryEscape(company), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
