package enrichment

import (
	"context"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
)

// Sentiment labels.
const (
	SentimentNegative = "negative"
	SentimentMixed    = "mixed"
	SentimentPositive = "positive"
)

// Sentiment is the oracle's reading of recent coverage, 0 very negative to
// 100 very positive.
type Sentiment struct {
	Score     float64 `json:"score"`
	Label     string  `json:"label"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// LabelFor bands a sentiment score.
func LabelFor(score float64) string {
	switch {
	case score < 30:
		return SentimentNegative
	case score < 50:
		return SentimentMixed
	default:
		return SentimentPositive
	}
}

// Analyzer scores headlines with the gap-filling oracle.
type Analyzer struct {
	filler oracle.GapFiller
}

// NewAnalyzer wraps filler.
func NewAnalyzer(filler oracle.GapFiller) *Analyzer {
	if filler == nil {
		filler = oracle.Disabled{}
	}
	return &Analyzer{filler: filler}
}

// Analyze returns nil when there is nothing to score or the oracle
// recovered no value.
func (a *Analyzer) Analyze(ctx context.Context, company string, articles []Article) (*Sentiment, error) {
	if len(articles) == 0 || oracle.IsDisabled(a.filler) {
		return nil, nil
	}
	headlines := make([]string, 0, len(articles))
	for _, art := range articles {
		headlines = append(headlines, art.Title)
	}
	est := a.filler.Estimate(ctx, []oracle.Field{oracle.FieldSentimentScore}, oracle.Context{
		CompanyName: company,
		Headlines:   headlines,
	})
	v, ok := est.Get(oracle.FieldSentimentScore)
	if !ok {
		return nil, est.Err
	}
	return &Sentiment{Score: v, Label: LabelFor(v), Reasoning: est.Reasoning}, nil
}
