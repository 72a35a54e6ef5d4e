package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// NewRegistryCmd groups statement registry commands.
func NewRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Query the modern slavery statement registries",
	}
	cmd.AddCommand(newRegistryMatchCmd())
	return cmd
}

func newRegistryMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "match NAME",
		Short:   "Show which registry records a company name matches",
		Example: `  msrisk registry match "Wattle Mining Pty Ltd"`,
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
			res, err := backend.MatchRegistry(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return PrintResult(cmd, registryView{res})
		},
	}
}

type registryView struct {
	p *risk.RegistryPreview
}

func (v registryView) JSONValue() interface{} { return v.p }

func (v registryView) TableHeaders() []string {
	return []string{"REGISTRY", "METHOD", "SIMILARITY", "BEST"}
}

func (v registryView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.p.Candidates))
	for _, c := range v.p.Candidates {
		best := ""
		if v.p.Best != nil && v.p.Best.Kind == c.Kind {
			best = "*"
		}
		rows = append(rows, []string{c.Kind, c.Method, fmt.Sprintf("%.3f", c.Similarity), best})
	}
	return rows
}

func (v registryView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (folded: %q)\n", v.p.Company, v.p.Folded)
	if v.p.Best == nil {
		sb.WriteString("  no registry match\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "  best: %s via %s (%.3f)\n", v.p.Best.Kind, v.p.Best.Method, v.p.Best.Similarity)
	for _, c := range v.p.Candidates {
		fmt.Fprintf(&sb, "  %-4s %-8s %.3f\n", c.Kind, c.Method, c.Similarity)
	}
	return sb.String()
}
