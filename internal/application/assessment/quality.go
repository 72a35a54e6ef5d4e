package assessment

import (
	"time"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/enrichment"
)

// Confidence levels.
const (
	ConfidenceLow    = "Low"
	ConfidenceMedium = "Medium"
	ConfidenceHigh   = "High"
)

// DefaultReviewInterval schedules the next review.
const DefaultReviewInterval = 90 * 24 * time.Hour

// Completeness sections.
const (
	SectionIndustry   = "industry"
	SectionGeography  = "geography"
	SectionIndicators = "country_indicators"
	SectionStatement  = "statement"
	SectionEnrichment = "enrichment"
)

var sections = []string{SectionIndustry, SectionGeography, SectionIndicators, SectionStatement, SectionEnrichment}

// Quality summarizes how much evidence stands behind an assessment.
type Quality struct {
	DataCompleteness float64   `json:"data_completeness"`
	Sections         []string  `json:"completed_sections"`
	MissingSections  []string  `json:"missing_sections,omitempty"`
	ConfidenceLevel  string    `json:"confidence_level"`
	LastUpdated      time.Time `json:"last_updated"`
	NextReviewDate   time.Time `json:"next_review_date"`
}

// EvaluateQuality scores five evidence sections, each worth 20%:
//   - industry: the industry component was not defaulted
//   - geography: at least one country resolved in the reference table
//   - country_indicators: no country component was defaulted
//   - statement: a registry statement was matched
//   - enrichment: an enrichment source returned data
//
// Confidence is Low when neither inherent nor residual data was measured,
// High at 80% completeness or more, and Medium otherwise.
func EvaluateQuality(a risk.Assessment, enr enrichment.Report, reviewInterval time.Duration) Quality {
	if reviewInterval <= 0 {
		reviewInterval = DefaultReviewInterval
	}
	done := map[string]bool{
		SectionIndustry:   a.Industry.Provenance != risk.ProvenanceDefaultFallback,
		SectionGeography:  a.Coverage.InherentDataAvailable,
		SectionIndicators: countryComponentsKnown(a.Components),
		SectionStatement:  a.Residual.HasStatement,
		SectionEnrichment: len(enr.Countries) > 0 || enr.News != nil,
	}

	q := Quality{LastUpdated: a.AssessedAt, NextReviewDate: a.AssessedAt.Add(reviewInterval)}
	for _, s := range sections {
		if done[s] {
			q.Sections = append(q.Sections, s)
		} else {
			q.MissingSections = append(q.MissingSections, s)
		}
	}
	q.DataCompleteness = risk.Round1(100 * float64(len(q.Sections)) / float64(len(sections)))

	switch {
	case !a.Coverage.InherentDataAvailable && !a.Coverage.ResidualDataAvailable:
		q.ConfidenceLevel = ConfidenceLow
	case q.DataCompleteness >= 80:
		q.ConfidenceLevel = ConfidenceHigh
	default:
		q.ConfidenceLevel = ConfidenceMedium
	}
	return q
}

func countryComponentsKnown(cs []risk.Component) bool {
	for _, c := range cs {
		switch c.Name {
		case risk.ComponentTIPTier, risk.ComponentPrevalence, risk.ComponentGovResponse, risk.ComponentLaborIssues:
			if c.Provenance == risk.ProvenanceDefaultFallback {
				return false
			}
		}
	}
	return true
}
