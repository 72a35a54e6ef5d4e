// Package assessment orchestrates one company assessment: it normalizes the
// request, computes inherent and residual risk with the gap-filling oracle
// behind them, blends the two and decorates the result with enrichment,
// rules and a quality summary.
package assessment

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Request is the inbound assessment request.
type Request struct {
	CompanyName        string   `json:"company_name" validate:"required"`
	CountryHint        string   `json:"country_hint,omitempty" validate:"max=128"`
	IndustryHint       string   `json:"industry_hint,omitempty" validate:"max=128"`
	OperatingCountries []string `json:"operating_countries,omitempty" validate:"max=50,dive,max=128"`
	Industries         []string `json:"industries,omitempty" validate:"max=20,dive,max=128"`
	BusinessModel      string   `json:"business_model,omitempty" validate:"max=4000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalized returns a copy with every string trimmed and blank list entries
// dropped.
func (r Request) Normalized() Request {
	return Request{
		CompanyName:        strings.TrimSpace(r.CompanyName),
		CountryHint:        strings.TrimSpace(r.CountryHint),
		IndustryHint:       strings.TrimSpace(r.IndustryHint),
		OperatingCountries: compact(r.OperatingCountries),
		Industries:         compact(r.Industries),
		BusinessModel:      strings.TrimSpace(r.BusinessModel),
	}
}

// Validate checks the normalized request. The company name has no length
// bound; only the optional hints and lists are size-limited.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(err, errors.ErrCodeAssessmentInvalid, "invalid assessment request")
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, describe(fe))
	}
	return errors.New(errors.ErrCodeAssessmentInvalid, "invalid assessment request").
		WithDetail(strings.Join(details, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s exceeds maximum %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Countries returns the operating countries with the hint first, without
// duplicates. The first entry is the headquarters.
func (r Request) Countries() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(c string) {
		k := strings.ToLower(c)
		if c == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, c)
	}
	add(r.CountryHint)
	for _, c := range r.OperatingCountries {
		add(c)
	}
	return out
}

// IndustryQueries returns the hint followed by the declared industries,
// without duplicates.
func (r Request) IndustryQueries() []string {
	var out []string
	seen := make(map[string]bool)
	for _, q := range append([]string{r.IndustryHint}, r.Industries...) {
		k := strings.ToLower(q)
		if q == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, q)
	}
	return out
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
