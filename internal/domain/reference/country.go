// Package reference holds the immutable country and industry tables the
// inherent-risk calculation reads from, together with the country-name
// normalizer that puts every caller-supplied name into one key space.
package reference

import (
	"strings"
)

// Tier is a US State Department Trafficking in Persons rating.
type Tier string

const (
	Tier1          Tier = "1"
	Tier2          Tier = "2"
	Tier2Watchlist Tier = "2-watchlist"
	Tier3          Tier = "3"
)

// ParseTier accepts the canonical spellings plus common variants such as
// "Tier 2 Watch List". It reports false for anything else, including
// "special case".
func ParseTier(s string) (Tier, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.TrimPrefix(k, "tier")
	k = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
	switch k {
	case "1":
		return Tier1, true
	case "2":
		return Tier2, true
	case "2watchlist", "2wl", "2watch":
		return Tier2Watchlist, true
	case "3":
		return Tier3, true
	}
	return "", false
}

// Valid reports whether t is one of the four ratings.
func (t Tier) Valid() bool {
	switch t {
	case Tier1, Tier2, Tier2Watchlist, Tier3:
		return true
	}
	return false
}

// Country is one row of the country reference table. Pointer and nil-slice
// fields are absent data, which is different from a measured zero.
type Country struct {
	Name                  string   `json:"name"`
	ISO3                  string   `json:"iso3"`
	GovernanceRisk        *float64 `json:"governance_risk,omitempty"`
	EconomicVulnerability *float64 `json:"economic_vulnerability,omitempty"`
	PrevalencePer1000     *float64 `json:"prevalence_per_1000,omitempty"`
	TIPTier               Tier     `json:"tip_tier,omitempty"`
	GovResponseScore      *float64 `json:"gov_response_score,omitempty"`
	LaborIssues           []string `json:"labor_issues,omitempty"`
}

// HasTier reports whether the country carries a TIP rating.
func (c Country) HasTier() bool { return c.TIPTier.Valid() }

// HasLaborIssues reports whether the labor-issue list was recorded, even if empty.
func (c Country) HasLaborIssues() bool { return c.LaborIssues != nil }

// MissingIndicators lists the indicator keys absent for this country, in a
// fixed order.
func (c Country) MissingIndicators() []string {
	var missing []string
	if !c.HasTier() {
		missing = append(missing, "tip_tier")
	}
	if c.PrevalencePer1000 == nil {
		missing = append(missing, "prevalence_per_1000")
	}
	if c.GovResponseScore == nil {
		missing = append(missing, "gov_response_score")
	}
	if !c.HasLaborIssues() {
		missing = append(missing, "labor_issues")
	}
	return missing
}
