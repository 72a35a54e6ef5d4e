package assessment

import (
	"context"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
)

// DefaultStatementQuality is used when no registry matched and the oracle
// recovered nothing.
const DefaultStatementQuality = 25.0

// MaxStatementQuality is the residual budget.
const MaxStatementQuality = 100.0

// ResidualCalculator scores the company's published mitigation.
type ResidualCalculator struct {
	matcher *registry.Matcher
	filler  oracle.GapFiller
	logger  logging.Logger
}

// NewResidualCalculator builds a calculator.
func NewResidualCalculator(matcher *registry.Matcher, filler oracle.GapFiller, logger logging.Logger) *ResidualCalculator {
	if matcher == nil {
		matcher = registry.NewMatcher(nil)
	}
	if filler == nil {
		filler = oracle.Disabled{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResidualCalculator{matcher: matcher, filler: filler, logger: logger.Named("residual")}
}

// Calculate matches the company against the registries in priority order.
// A hit is scored by that registry's checklist; otherwise the oracle is
// asked for statement_quality, and failing that the default applies.
func (c *ResidualCalculator) Calculate(ctx context.Context, req Request) (risk.ResidualResult, *registry.Match) {
	if m, ok := c.matcher.Match(req.CompanyName); ok {
		q := m.Record.Quality()
		comp := risk.NewComponent(risk.ComponentStatement, q.Score, MaxStatementQuality, risk.ProvenanceMeasured, "")
		return risk.ResidualResult{
			Outcome:      risk.Ok(comp),
			HasStatement: true,
			DataSource:   m.DataSource(),
			Registry:     string(m.Kind),
			MatchedName:  m.Record.Company(),
			Satisfied:    q.Satisfied,
			Missing:      q.Missing,
		}, &m
	}

	est := c.filler.Estimate(ctx, []oracle.Field{oracle.FieldStatementQuality}, oracle.Context{
		Country:     req.CountryHint,
		Industry:    firstOf(req.IndustryQueries()),
		CompanyName: req.CompanyName,
	})
	if v, ok := est.Get(oracle.FieldStatementQuality); ok {
		comp := risk.NewComponent(risk.ComponentStatement, v, MaxStatementQuality, risk.ProvenanceOracleEstimated, "no registry statement; quality estimated")
		return risk.ResidualResult{
			Outcome:    risk.Ok(comp),
			DataSource: risk.DataSourceAIEstimate,
		}, nil
	}

	why := "no registry statement found"
	if est.Err != nil {
		why += "; oracle: " + est.Err.Error()
	}
	c.logger.Warn("statement quality fell back to default",
		logging.String("company", req.CompanyName),
		logging.String("reason", why),
	)
	comp := risk.NewComponent(risk.ComponentStatement, DefaultStatementQuality, MaxStatementQuality, risk.ProvenanceDefaultFallback, why)
	return risk.ResidualResult{
		Outcome:    risk.Fallback(comp, why),
		DataSource: risk.DataSourceNoStatement,
	}, nil
}
