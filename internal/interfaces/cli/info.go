package cli

import (
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// NewCapabilitiesCmd reports what the engine has loaded.
func NewCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show loaded reference data, registries and enabled integrations",
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
			caps, err := backend.Capabilities(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, capabilitiesView{caps})
		},
	}
}

type capabilitiesView struct {
	c *risk.Capabilities
}

func (v capabilitiesView) JSONValue() interface{} { return v.c }

func (v capabilitiesView) rows() [][]string {
	c := v.c
	enrichment := "none"
	if len(c.Enrichment) > 0 {
		enrichment = strings.Join(c.Enrichment, ", ")
	}
	rows := [][]string{
		{"oracle", strconv.FormatBool(c.Oracle)},
		{"enrichment", enrichment},
		{"countries", strconv.Itoa(c.Countries)},
		{"industries", strconv.Itoa(c.Industries)},
		{"registry priority", strings.Join(c.RegistryOrder, " > ")},
	}
	kinds := make([]string, 0, len(c.Registries))
	for k := range c.Registries {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		rows = append(rows, []string{"registry " + k, strconv.Itoa(c.Registries[k])})
	}
	return append(rows,
		[]string{"compliance rules", strconv.Itoa(c.ComplianceRules)},
		[]string{"recommendation rules", strconv.Itoa(c.Recommendations)},
		[]string{"alert rules", strconv.Itoa(c.AlertRules)},
		[]string{"max batch size", strconv.Itoa(c.MaxBatchSize)},
	)
}

func (v capabilitiesView) TableHeaders() []string { return []string{"CAPABILITY", "VALUE"} }

func (v capabilitiesView) TableRows() [][]string { return v.rows() }

func (v capabilitiesView) String() string {
	var sb strings.Builder
	for _, r := range v.rows() {
		fmt.Fprintf(&sb, "%-22s %s\n", r[0], r[1])
	}
	return sb.String()
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			return PrintResult(cmd, info)
		},
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (v versionInfo) String() string {
	return fmt.Sprintf("msrisk %s (commit %s, built %s, %s %s)\n", v.Version, v.GitCommit, v.BuildDate, v.GoVersion, v.Platform)
}
