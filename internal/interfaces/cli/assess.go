package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

type assessOptions struct {
	company       string
	country       string
	industry      string
	countries     []string
	industries    []string
	businessModel string
}

// NewAssessCmd scores a single company.
func NewAssessCmd() *cobra.Command {
	opts := &assessOptions{}

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess one company",
		Example: `  msrisk assess --company "Acme Ltd" --country UK --industry Manufacturing
  msrisk assess --company "Wattle Mining" --country Australia --countries "Brazil,Peru" -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.company, "company", "", "company name (required)")
	f.StringVar(&opts.country, "country", "", "headquarters country")
	f.StringVar(&opts.industry, "industry", "", "primary industry")
	f.StringSliceVar(&opts.countries, "countries", nil, "additional operating countries")
	f.StringSliceVar(&opts.industries, "industries", nil, "additional industries")
	f.StringVar(&opts.businessModel, "business-model", "", "free-text business description")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}

func (o *assessOptions) request() (risk.AssessmentRequest, error) {
	company := strings.TrimSpace(o.company)
	if company == "" {
		return risk.AssessmentRequest{}, errors.InvalidParam("company name is required")
	}
	return risk.AssessmentRequest{
		CompanyName:        company,
		CountryHint:        strings.TrimSpace(o.country),
		IndustryHint:       strings.TrimSpace(o.industry),
		OperatingCountries: trimAll(o.countries),
		Industries:         trimAll(o.industries),
		BusinessModel:      strings.TrimSpace(o.businessModel),
	}, nil
}

func runAssess(cmd *cobra.Command, opts *assessOptions) error {
	req, err := opts.request()
	if err != nil {
		return err
	}

	ctx, cancel, cliCtx, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	backend, err := cliCtx.Backend(ctx)
	if err != nil {
		return err
	}
	report, err := backend.Assess(ctx, req)
	if err != nil {
		return err
	}
	return PrintResult(cmd, reportView{report})
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

type reportView struct {
	r *risk.Report
}

func (v reportView) JSONValue() interface{} { return v.r }

func (v reportView) TableHeaders() []string {
	return []string{"COMPONENT", "VALUE", "MAX", "PROVENANCE"}
}

func (v reportView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.r.Components)+3)
	for _, c := range v.r.Components {
		rows = append(rows, []string{c.Name, score(c.Value), score(c.MaxValue), c.Provenance})
	}
	rows = append(rows,
		[]string{"inherent", score(v.r.Inherent.Score), "100", ""},
		[]string{"residual", score(v.r.Residual.Score), "100", v.r.Residual.Provenance},
		[]string{"final", score(v.r.FinalScore), "100", v.r.Category},
	)
	return rows
}

func (v reportView) String() string {
	r := v.r
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", r.CompanyName)
	fmt.Fprintf(&sb, "  Final risk:   %s (%s)\n", score(r.FinalScore), r.Category)
	fmt.Fprintf(&sb, "  Inherent:     %s\n", score(r.Inherent.Score))
	fmt.Fprintf(&sb, "  Residual:     %s", score(r.Residual.Score))
	if r.Residual.Registry != "" {
		fmt.Fprintf(&sb, " [%s: %s]", r.Residual.Registry, r.Residual.MatchedName)
	} else {
		fmt.Fprintf(&sb, " [%s]", r.Residual.DataSource)
	}
	sb.WriteString("\n")
	if r.Industry.Matched != "" {
		fmt.Fprintf(&sb, "  Industry:     %s (%s)\n", r.Industry.Matched, r.Industry.Source)
	}
	fmt.Fprintf(&sb, "  Completeness: %.1f%% (%s confidence)\n", r.Quality.DataCompleteness, r.Quality.ConfidenceLevel)
	if fb := r.FallbackComponents(); len(fb) > 0 {
		fmt.Fprintf(&sb, "  Defaulted:    %s\n", strings.Join(fb, ", "))
	}

	if len(r.Recommendations) > 0 {
		sb.WriteString("\nRecommendations\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&sb, "  [%s] %s (%s)\n", rec.Priority, rec.Action, rec.Timeline)
		}
	}
	if len(r.Compliance) > 0 {
		sb.WriteString("\nCompliance\n")
		for _, c := range r.Compliance {
			fmt.Fprintf(&sb, "  %s %s: %s\n", c.Jurisdiction, c.Framework, c.Requirement)
		}
	}
	if len(r.Alerts) > 0 {
		sb.WriteString("\nAlerts\n")
		for _, a := range r.Alerts {
			fmt.Fprintf(&sb, "  [%s] %s\n", a.Level, a.Message)
		}
	}
	return sb.String()
}

func score(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
