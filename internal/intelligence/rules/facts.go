// Package rules derives compliance obligations, mitigation recommendations
// and monitoring alerts from a finished assessment. Rules are expr-lang
// boolean expressions over Facts, loaded from YAML.
package rules

import "strings"

// Facts is the environment every rule expression is evaluated against.
type Facts struct {
	Company       string
	HQ            string
	Countries     []string
	Industry      string
	Industries    []string
	IndustryScore float64
	FinalScore    float64
	Category      string
	Inherent      float64
	Residual      float64
	Components    map[string]float64
	HasStatement  bool
	Registry      string
	StatementGaps []string
	AIEnhanced    bool
	Defaulted     int
	HasSentiment  bool
	Sentiment     float64
	ArticleCount  int
}

var euMembers = map[string]bool{
	"Austria": true, "Belgium": true, "Bulgaria": true, "Croatia": true, "Cyprus": true,
	"Czech Republic": true, "Denmark": true, "Estonia": true, "Finland": true, "France": true,
	"Germany": true, "Greece": true, "Hungary": true, "Ireland": true, "Italy": true,
	"Latvia": true, "Lithuania": true, "Luxembourg": true, "Malta": true, "Netherlands": true,
	"Poland": true, "Portugal": true, "Romania": true, "Slovakia": true, "Slovenia": true,
	"Spain": true, "Sweden": true,
}

// InEU reports whether country is an EU member state.
func (Facts) InEU(country string) bool { return euMembers[country] }

// OperatesIn reports whether any of the countries appears in Countries.
func (f Facts) OperatesIn(countries ...string) bool {
	for _, c := range f.Countries {
		for _, want := range countries {
			if strings.EqualFold(c, want) {
				return true
			}
		}
	}
	return false
}

// InIndustry reports whether any matched industry is one of names.
func (f Facts) InIndustry(names ...string) bool {
	for _, i := range f.Industries {
		for _, n := range names {
			if strings.EqualFold(i, n) {
				return true
			}
		}
	}
	return false
}

// Component returns a named component value, zero when absent.
func (f Facts) Component(name string) float64 { return f.Components[name] }

// Gap reports whether the matched statement is missing a checklist item.
func (f Facts) Gap(item string) bool {
	for _, g := range f.StatementGaps {
		if g == item {
			return true
		}
	}
	return false
}

func (f Facts) expand(s string) string {
	industry := f.Industry
	if industry == "" {
		industry = "the company's industry"
	}
	return strings.NewReplacer("{company}", f.Company, "{industry}", industry, "{hq}", f.HQ).Replace(s)
}
