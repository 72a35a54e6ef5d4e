package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// NewLookupCmd groups reference-table lookups.
func NewLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up reference data",
	}
	cmd.AddCommand(newLookupCountryCmd(), newLookupIndustryCmd())
	return cmd
}

func newLookupCountryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "country NAME",
		Short:   "Show the reference row for a country or alias",
		Example: `  msrisk lookup country "Côte d'Ivoire"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cliCtx, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			res, err := backend.Country(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return PrintResult(cmd, countryView{res})
		},
	}
}

func newLookupIndustryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "industry QUERY",
		Short:   "Match an industry name or description against the reference table",
		Example: `  msrisk lookup industry "cocoa farming"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cliCtx, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			res, err := backend.MatchIndustry(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return PrintResult(cmd, industryView{res})
		},
	}
}

type countryView struct {
	c *risk.CountryLookup
}

func (v countryView) JSONValue() interface{} { return v.c }

func (v countryView) indicators() [][]string {
	c := v.c.Country
	opt := func(p *float64) string {
		if p == nil {
			return "n/a"
		}
		return score(*p)
	}
	tier := c.TIPTier
	if tier == "" {
		tier = "n/a"
	}
	return [][]string{
		{"governance_risk", opt(c.GovernanceRisk)},
		{"economic_vulnerability", opt(c.EconomicVulnerability)},
		{"prevalence_per_1000", opt(c.PrevalencePer1000)},
		{"tip_tier", tier},
		{"gov_response_score", opt(c.GovResponseScore)},
	}
}

func (v countryView) TableHeaders() []string { return []string{"INDICATOR", "VALUE"} }

func (v countryView) TableRows() [][]string { return v.indicators() }

func (v countryView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", v.c.Country.Name, v.c.Country.ISO3)
	if v.c.Canonical != "" && !strings.EqualFold(v.c.Input, v.c.Canonical) {
		fmt.Fprintf(&sb, "  resolved from %q\n", v.c.Input)
	}
	for _, row := range v.indicators() {
		fmt.Fprintf(&sb, "  %-24s %s\n", row[0], row[1])
	}
	if len(v.c.Country.LaborIssues) > 0 {
		fmt.Fprintf(&sb, "  labor issues: %s\n", strings.Join(v.c.Country.LaborIssues, "; "))
	}
	return sb.String()
}

type industryView struct {
	l *risk.IndustryLookup
}

func (v industryView) JSONValue() interface{} { return v.l }

func (v industryView) TableHeaders() []string {
	return []string{"INDUSTRY", "FORCED", "CHILD", "COMPLEXITY", "SCORE"}
}

func (v industryView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.l.Matches))
	for _, m := range v.l.Matches {
		rows = append(rows, []string{m.Name, score(m.ForcedLaborRisk), score(m.ChildLaborRisk), score(m.SupplyChainComplexity), score(m.RiskScore)})
	}
	return rows
}

func (v industryView) String() string {
	if len(v.l.Matches) == 0 {
		return fmt.Sprintf("no industry matches %q\n", v.l.Query)
	}
	var sb strings.Builder
	for _, m := range v.l.Matches {
		fmt.Fprintf(&sb, "%-40s %6s\n", m.Name, score(m.RiskScore))
	}
	return sb.String()
}
