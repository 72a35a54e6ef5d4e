package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// batchEntry is one company in a batch file. JSON files parse too since
// YAML is a superset.
type batchEntry struct {
	Company       string   `yaml:"company"`
	Country       string   `yaml:"country"`
	Industry      string   `yaml:"industry"`
	Countries     []string `yaml:"countries"`
	Industries    []string `yaml:"industries"`
	BusinessModel string   `yaml:"business_model"`
}

// NewBatchCmd scores every company in a file.
func NewBatchCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Assess every company listed in a YAML or JSON file",
		Example: `  msrisk batch --file companies.yaml
  msrisk batch --file companies.json -o table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "input file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readBatchFile(path string) ([]risk.AssessmentRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "read batch file")
	}
	var entries []batchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "parse batch file")
	}
	if len(entries) == 0 {
		return nil, errors.InvalidParam("batch file lists no companies")
	}

	reqs := make([]risk.AssessmentRequest, len(entries))
	for i, e := range entries {
		reqs[i] = risk.AssessmentRequest{
			CompanyName:        strings.TrimSpace(e.Company),
			CountryHint:        strings.TrimSpace(e.Country),
			IndustryHint:       strings.TrimSpace(e.Industry),
			OperatingCountries: trimAll(e.Countries),
			Industries:         trimAll(e.Industries),
			BusinessModel:      strings.TrimSpace(e.BusinessModel),
		}
	}
	return reqs, nil
}

func runBatch(cmd *cobra.Command, file string) error {
	reqs, err := readBatchFile(file)
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
	res, err := backend.AssessBatch(ctx, reqs)
	if err != nil {
		return err
	}
	return PrintResult(cmd, batchView{reqs: reqs, res: res})
}

type batchView struct {
	reqs []risk.AssessmentRequest
	res  *risk.BatchResult
}

func (v batchView) JSONValue() interface{} { return v.res }

func (v batchView) company(i int) string {
	if i >= 0 && i < len(v.reqs) {
		return v.reqs[i].CompanyName
	}
	return ""
}

func (v batchView) TableHeaders() []string {
	return []string{"#", "COMPANY", "FINAL", "CATEGORY", "INHERENT", "RESIDUAL", "ERROR"}
}

func (v batchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.res.Items))
	for _, it := range v.res.Items {
		row := []string{strconv.Itoa(it.Index + 1), v.company(it.Index), "", "", "", "", ""}
		switch {
		case it.Report != nil:
			row[2] = score(it.Report.FinalScore)
			row[3] = it.Report.Category
			row[4] = score(it.Report.Inherent.Score)
			row[5] = score(it.Report.Residual.Score)
		case it.Error != nil:
			row[6] = it.Error.Message
		}
		rows = append(rows, row)
	}
	return rows
}

func (v batchView) String() string {
	var sb strings.Builder
	for _, it := range v.res.Items {
		if it.Report != nil {
			fmt.Fprintf(&sb, "%3d. %-40s %6s  %s\n", it.Index+1, it.Report.CompanyName, score(it.Report.FinalScore), it.Report.Category)
			continue
		}
		msg := "failed"
		if it.Error != nil {
			msg = it.Error.Message
		}
		fmt.Fprintf(&sb, "%3d. %-40s ERROR  %s\n", it.Index+1, v.company(it.Index), msg)
	}
	fmt.Fprintf(&sb, "\n%d succeeded, %d failed\n", v.res.Succeeded, v.res.Failed)
	return sb.String()
}
