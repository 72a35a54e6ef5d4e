// Package oracle is the gap-filling adapter: it asks a generative model for
// risk values that structured data could not supply, validates each returned
// value on its own and hands back only the ones that pass.
package oracle

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Field names a value the oracle may be asked to estimate.
type Field string

const (
	FieldTipTierRisk      Field = "tip_tier_risk"
	FieldPrevalenceRisk   Field = "prevalence_risk"
	FieldGovResponseRisk  Field = "gov_response_risk"
	FieldLaborIssuesRisk  Field = "labor_issues_risk"
	FieldIndustryRisk     Field = "industry_risk"
	FieldStatementQuality Field = "statement_quality"
	FieldSentimentScore   Field = "sentiment_score"
)

// Bounds is the inclusive range a field must fall in.
type Bounds struct {
	Min float64
	Max float64
}

type fieldSpec struct {
	bounds      Bounds
	description string
}

var fieldSpecs = map[Field]fieldSpec{
	FieldTipTierRisk:      {Bounds{0, 40}, "trafficking-in-persons tier risk points; 5 for Tier 1 up to 40 for Tier 3"},
	FieldPrevalenceRisk:   {Bounds{0, 25}, "modern slavery prevalence risk points; 25 means 10 or more victims per 1000 people"},
	FieldGovResponseRisk:  {Bounds{0, 15}, "weakness of the government response; 0 is a strong response"},
	FieldLaborIssuesRisk:  {Bounds{0, 15}, "documented labour rights issues; 3 points per issue"},
	FieldIndustryRisk:     {Bounds{0, 100}, "inherent forced and child labour risk of the industry"},
	FieldStatementQuality: {Bounds{0, 100}, "quality of the company's published modern slavery statement"},
	FieldSentimentScore:   {Bounds{0, 100}, "media sentiment; 0 is very negative and 100 very positive"},
}

// Fields lists every known field in a stable order.
func Fields() []Field {
	return []Field{
		FieldTipTierRisk,
		FieldPrevalenceRisk,
		FieldGovResponseRisk,
		FieldLaborIssuesRisk,
		FieldIndustryRisk,
		FieldStatementQuality,
		FieldSentimentScore,
	}
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	_, ok := fieldSpecs[f]
	return ok
}

// Bounds returns the accepted range of f.
func (f Field) Bounds() (Bounds, bool) {
	s, ok := fieldSpecs[f]
	return s.bounds, ok
}

func (f Field) description() string { return fieldSpecs[f].description }

// schemaJSON is the per-field JSON Schema every returned value is checked
// against.
func (f Field) schemaJSON() string {
	b := fieldSpecs[f].bounds
	return fmt.Sprintf(`{"type":"number","minimum":%g,"maximum":%g}`, b.Min, b.Max)
}

// compileSchemas builds one validator per known field.
func compileSchemas() (map[Field]*jsonschema.Schema, error) {
	out := make(map[Field]*jsonschema.Schema, len(fieldSpecs))
	for _, f := range Fields() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://msrisk.schemas.local/oracle/%s.schema.json", f)
		if err := c.AddResource(url, strings.NewReader(f.schemaJSON())); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "oracle schema load failed").WithDetail(string(f))
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "oracle schema compile failed").WithDetail(string(f))
		}
		out[f] = s
	}
	return out, nil
}

// normalizeFields drops unknown and duplicate fields, keeping request order.
func normalizeFields(fields []Field) (keep, unknown []Field) {
	seen := make(map[Field]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		if !f.Valid() {
			unknown = append(unknown, f)
			continue
		}
		keep = append(keep, f)
	}
	return keep, unknown
}
