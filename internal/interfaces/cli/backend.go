package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/bootstrap"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/client"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// Backend is what the commands run against: a local engine, or a remote
// apiserver when --server is set. Both speak the wire types.
type Backend interface {
	Assess(ctx context.Context, req risk.AssessmentRequest) (*risk.Report, error)
	AssessBatch(ctx context.Context, reqs []risk.AssessmentRequest) (*risk.BatchResult, error)
	Country(ctx context.Context, name string) (*risk.CountryLookup, error)
	MatchIndustry(ctx context.Context, q string) (*risk.IndustryLookup, error)
	MatchRegistry(ctx context.Context, company string) (*risk.RegistryPreview, error)
	Capabilities(ctx context.Context) (*risk.Capabilities, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Remote
// ─────────────────────────────────────────────────────────────────────────────

type remoteBackend struct {
	c *client.Client
}

// NewRemoteBackend runs commands against an apiserver.
func NewRemoteBackend(c *client.Client) Backend {
	return &remoteBackend{c: c}
}

func (b *remoteBackend) Assess(ctx context.Context, req risk.AssessmentRequest) (*risk.Report, error) {
	return b.c.Assessments().Create(ctx, req)
}

func (b *remoteBackend) AssessBatch(ctx context.Context, reqs []risk.AssessmentRequest) (*risk.BatchResult, error) {
	return b.c.Assessments().Batch(ctx, reqs)
}

func (b *remoteBackend) Country(ctx context.Context, name string) (*risk.CountryLookup, error) {
	return b.c.Reference().Country(ctx, name)
}

func (b *remoteBackend) MatchIndustry(ctx context.Context, q string) (*risk.IndustryLookup, error) {
	return b.c.Reference().MatchIndustry(ctx, q)
}

func (b *remoteBackend) MatchRegistry(ctx context.Context, company string) (*risk.RegistryPreview, error) {
	return b.c.Reference().MatchRegistry(ctx, company)
}

func (b *remoteBackend) Capabilities(ctx context.Context) (*risk.Capabilities, error) {
	info, err := b.c.Capabilities(ctx)
	if err != nil {
		return nil, err
	}
	if info.Capabilities == nil {
		return &risk.Capabilities{}, nil
	}
	return info.Capabilities, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Local
// ─────────────────────────────────────────────────────────────────────────────

type localBackend struct {
	app *bootstrap.App
}

// NewLocalBackend runs commands in process against app.
func NewLocalBackend(app *bootstrap.App) Backend {
	return &localBackend{app: app}
}

// convert re-reads an engine value through its JSON form so local and
// remote output are identical.
func convert(in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cli: encode result")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cli: decode result")
	}
	return nil
}

func errorBody(err error) *risk.ErrorBody {
	body := &risk.ErrorBody{Code: string(errors.GetCode(err)), Message: err.Error()}
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		body.Message = ae.Message
		body.Detail = ae.Detail
	}
	return body
}

func toRequest(r risk.AssessmentRequest) assessment.Request {
	return assessment.Request{
		CompanyName:        r.CompanyName,
		CountryHint:        r.CountryHint,
		IndustryHint:       r.IndustryHint,
		OperatingCountries: r.OperatingCountries,
		Industries:         r.Industries,
		BusinessModel:      r.BusinessModel,
	}
}

func (b *localBackend) Assess(ctx context.Context, req risk.AssessmentRequest) (*risk.Report, error) {
	rep, err := b.app.Service.Assess(ctx, toRequest(req))
	if err != nil {
		return nil, err
	}
	var out risk.Report
	if err := convert(rep, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *localBackend) AssessBatch(ctx context.Context, reqs []risk.AssessmentRequest) (*risk.BatchResult, error) {
	in := make([]assessment.Request, len(reqs))
	for i, r := range reqs {
		in[i] = toRequest(r)
	}
	res, err := b.app.Service.AssessBatch(ctx, in)
	if err != nil {
		return nil, err
	}

	out := &risk.BatchResult{Items: make([]risk.BatchItem, len(res.Items))}
	for i, item := range res.Items {
		bi := risk.BatchItem{Index: i}
		if item.Error != nil {
			bi.Error = errorBody(item.Error)
			out.Failed++
		} else {
			var rep risk.Report
			if err := convert(item.Report, &rep); err != nil {
				return nil, err
			}
			bi.Success = true
			bi.Report = &rep
			out.Succeeded++
		}
		out.Items[i] = bi
	}
	return out, nil
}

func (b *localBackend) Country(_ context.Context, name string) (*risk.CountryLookup, error) {
	store := b.app.Store
	c, ok := store.LookupCountry(name)
	if !ok {
		return nil, errors.New(errors.ErrCodeCountryNotFound, "country not found in reference data").WithDetail(name)
	}
	out := &risk.CountryLookup{
		Input:     name,
		Canonical: store.Normalizer().Normalize(name),
		Missing:   c.MissingIndicators(),
	}
	if err := convert(c, &out.Country); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *localBackend) MatchIndustry(_ context.Context, q string) (*risk.IndustryLookup, error) {
	matches := b.app.Store.IndustryMatches(q)
	if len(matches) == 0 {
		return nil, errors.New(errors.ErrCodeIndustryNotFound, "no industry matches the query").WithDetail(q)
	}
	out := &risk.IndustryLookup{Query: q, Matches: make([]risk.Industry, len(matches))}
	for i, ind := range matches {
		if err := convert(ind, &out.Matches[i]); err != nil {
			return nil, err
		}
		out.Matches[i].RiskScore = ind.RiskScore()
	}
	return out, nil
}

func (b *localBackend) MatchRegistry(_ context.Context, company string) (*risk.RegistryPreview, error) {
	m := b.app.Matcher
	preview := struct {
		Company    string      `json:"company"`
		Folded     string      `json:"folded"`
		Best       interface{} `json:"best,omitempty"`
		Candidates interface{} `json:"candidates"`
	}{Company: company, Candidates: m.MatchAll(company)}
	preview.Folded = registry.FoldName(company)
	if best, ok := m.Match(company); ok {
		preview.Best = best
	}
	var out risk.RegistryPreview
	if err := convert(preview, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *localBackend) Capabilities(context.Context) (*risk.Capabilities, error) {
	var out risk.Capabilities
	if err := convert(b.app.Service.Capabilities(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
