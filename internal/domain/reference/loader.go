package reference

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	embeddedCountries  = "data/countries.yaml"
	embeddedIndustries = "data/industries.yaml"
)

type countryRow struct {
	Name                  string   `yaml:"name"`
	ISO3                  string   `yaml:"iso3"`
	GovernanceRisk        *float64 `yaml:"governance_risk"`
	EconomicVulnerability *float64 `yaml:"economic_vulnerability"`
	PrevalencePer1000     *float64 `yaml:"prevalence_per_1000"`
	TIPTier               string   `yaml:"tip_tier"`
	GovResponseScore      *float64 `yaml:"gov_response_score"`
	LaborIssues           []string `yaml:"labor_issues"`
}

type countryFile struct {
	Countries []countryRow `yaml:"countries"`
}

type industryFile struct {
	Industries []struct {
		Name                  string   `yaml:"name"`
		ForcedLaborRisk       float64  `yaml:"forced_labor_risk"`
		ChildLaborRisk        float64  `yaml:"child_labor_risk"`
		SupplyChainComplexity float64  `yaml:"supply_chain_complexity"`
		HighRiskProcesses     []string `yaml:"high_risk_processes"`
		Keywords              []string `yaml:"keywords"`
	} `yaml:"industries"`
}

// ParseCountries decodes and validates a country table. Tier spellings are
// canonicalized; an unrecognized tier is treated as absent. Names must be
// unique and percentage fields must lie in [0,100].
func ParseCountries(data []byte) ([]Country, error) {
	var f countryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReferenceDataInvalid, "reference: malformed country table")
	}
	if len(f.Countries) == 0 {
		return nil, errors.New(errors.ErrCodeReferenceDataInvalid, "reference: country table is empty")
	}

	seen := make(map[string]bool, len(f.Countries))
	out := make([]Country, 0, len(f.Countries))
	for i, row := range f.Countries {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			return nil, invalidRow("country", i, "name is required")
		}
		if seen[name] {
			return nil, invalidRow("country", i, "duplicate name "+name)
		}
		seen[name] = true

		for field, v := range map[string]*float64{
			"governance_risk":        row.GovernanceRisk,
			"economic_vulnerability": row.EconomicVulnerability,
			"gov_response_score":     row.GovResponseScore,
		} {
			if v != nil && (*v < 0 || *v > 100) {
				return nil, invalidRow("country", i, fmt.Sprintf("%s %.1f outside [0,100]", field, *v))
			}
		}
		if row.PrevalencePer1000 != nil && *row.PrevalencePer1000 < 0 {
			return nil, invalidRow("country", i, "prevalence_per_1000 is negative")
		}

		tier, _ := ParseTier(row.TIPTier)
		out = append(out, Country{
			Name:                  name,
			ISO3:                  strings.ToUpper(strings.TrimSpace(row.ISO3)),
			GovernanceRisk:        row.GovernanceRisk,
			EconomicVulnerability: row.EconomicVulnerability,
			PrevalencePer1000:     row.PrevalencePer1000,
			TIPTier:               tier,
			GovResponseScore:      row.GovResponseScore,
			LaborIssues:           row.LaborIssues,
		})
	}
	return out, nil
}

// ParseIndustries decodes and validates an industry table.
func ParseIndustries(data []byte) ([]Industry, error) {
	var f industryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReferenceDataInvalid, "reference: malformed industry table")
	}
	if len(f.Industries) == 0 {
		return nil, errors.New(errors.ErrCodeReferenceDataInvalid, "reference: industry table is empty")
	}

	seen := make(map[string]bool, len(f.Industries))
	out := make([]Industry, 0, len(f.Industries))
	for i, row := range f.Industries {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			return nil, invalidRow("industry", i, "name is required")
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, invalidRow("industry", i, "duplicate name "+name)
		}
		seen[key] = true

		for field, v := range map[string]float64{
			"forced_labor_risk":       row.ForcedLaborRisk,
			"child_labor_risk":        row.ChildLaborRisk,
			"supply_chain_complexity": row.SupplyChainComplexity,
		} {
			if v < 0 || v > 100 {
				return nil, invalidRow("industry", i, fmt.Sprintf("%s %.1f outside [0,100]", field, v))
			}
		}
		out = append(out, Industry{
			Name:                  name,
			ForcedLaborRisk:       row.ForcedLaborRisk,
			ChildLaborRisk:        row.ChildLaborRisk,
			SupplyChainComplexity: row.SupplyChainComplexity,
			HighRiskProcesses:     row.HighRiskProcesses,
			Keywords:              row.Keywords,
		})
	}
	return out, nil
}

func invalidRow(table string, idx int, msg string) error {
	return errors.Newf(errors.ErrCodeReferenceDataInvalid, "reference: %s row %d: %s", table, idx, msg)
}

// Load builds a Store from raw country and industry YAML.
func Load(countriesYAML, industriesYAML []byte, normalizer *Normalizer) (*Store, error) {
	countries, err := ParseCountries(countriesYAML)
	if err != nil {
		return nil, err
	}
	industries, err := ParseIndustries(industriesYAML)
	if err != nil {
		return nil, err
	}
	return NewStore(normalizer, countries, industries), nil
}

// LoadEmbedded builds a Store from the tables compiled into the binary.
func LoadEmbedded(normalizer *Normalizer) (*Store, error) {
	c, err := embedded.ReadFile(embeddedCountries)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReferenceLoadFailed, "reference: embedded countries missing")
	}
	i, err := embedded.ReadFile(embeddedIndustries)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReferenceLoadFailed, "reference: embedded industries missing")
	}
	return Load(c, i, normalizer)
}

// LoadFiles builds a Store from YAML files on disk. An empty path falls back
// to the embedded copy of that table.
func LoadFiles(countriesPath, industriesPath string, normalizer *Normalizer) (*Store, error) {
	c, err := readOrEmbedded(countriesPath, embeddedCountries)
	if err != nil {
		return nil, err
	}
	i, err := readOrEmbedded(industriesPath, embeddedIndustries)
	if err != nil {
		return nil, err
	}
	return Load(c, i, normalizer)
}

// EmbeddedTables returns the compiled-in country and industry YAML.
func EmbeddedTables() (countries, industries []byte) {
	countries, _ = embedded.ReadFile(embeddedCountries)
	industries, _ = embedded.ReadFile(embeddedIndustries)
	return countries, industries
}

func readOrEmbedded(path, fallback string) ([]byte, error) {
	if path == "" {
		b, err := embedded.ReadFile(fallback)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeReferenceLoadFailed, "reference: embedded table missing")
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReferenceLoadFailed, "reference: cannot read table").WithDetail(path)
	}
	return b, nil
}
