package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/bootstrap"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

func localBackendForTest(t *testing.T) Backend {
	t.Helper()
	cfg := config.Default()
	cfg.Enrichment.Enabled = false
	cfg.Oracle.Enabled = false
	cfg.Kafka.Enabled = false

	app, err := bootstrap.Build(context.Background(), cfg, logging.NewNopLogger(), bootstrap.WithoutKafka())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return NewLocalBackend(app)
}

func TestLocalBackend_Assess(t *testing.T) {
	b := localBackendForTest(t)

	rep, err := b.Assess(context.Background(), risk.AssessmentRequest{CompanyName: "Wattle Mining", CountryHint: "Australia"})
	require.NoError(t, err)
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, "Wattle Mining", rep.CompanyName)
	assert.Equal(t, "AU", rep.Residual.Registry)
	assert.True(t, rep.Residual.HasStatement)
	assert.NotEmpty(t, rep.Components)
	assert.NotEmpty(t, rep.Geography)
	assert.GreaterOrEqual(t, rep.FinalScore, 0.0)
	assert.LessOrEqual(t, rep.FinalScore, 100.0)
}

func TestLocalBackend_AssessBatch(t *testing.T) {
	b := localBackendForTest(t)

	res, err := b.AssessBatch(context.Background(), []risk.AssessmentRequest{
		{CompanyName: "Wattle Mining", CountryHint: "Australia"},
		{CompanyName: ""},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	assert.True(t, res.Items[0].Success)
	require.NotNil(t, res.Items[0].Report)
	assert.False(t, res.Items[1].Success)
	require.NotNil(t, res.Items[1].Error)
	assert.NotEmpty(t, res.Items[1].Error.Code)
	assert.NotEmpty(t, res.Items[1].Error.Message)
}

func TestLocalBackend_EmptyBatch(t *testing.T) {
	b := localBackendForTest(t)
	_, err := b.AssessBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestLocalBackend_Reference(t *testing.T) {
	b := localBackendForTest(t)
	ctx := context.Background()

	c, err := b.Country(ctx, "australia")
	require.NoError(t, err)
	assert.Equal(t, "Australia", c.Country.Name)
	assert.Equal(t, "australia", c.Input)

	_, err = b.Country(ctx, "Atlantis")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCountryNotFound))

	ind, err := b.MatchIndustry(ctx, "mining")
	require.NoError(t, err)
	require.NotEmpty(t, ind.Matches)
	var mining *risk.Industry
	for i := range ind.Matches {
		if ind.Matches[i].Name == "Mining" {
			mining = &ind.Matches[i]
		}
	}
	require.NotNil(t, mining)
	assert.Greater(t, mining.RiskScore, 0.0)

	_, err = b.MatchIndustry(ctx, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeIndustryNotFound))
}

func TestLocalBackend_RegistryAndCapabilities(t *testing.T) {
	b := localBackendForTest(t)
	ctx := context.Background()

	p, err := b.MatchRegistry(ctx, "Wattle Mining")
	require.NoError(t, err)
	assert.Equal(t, "Wattle Mining", p.Company)
	assert.NotEmpty(t, p.Folded)
	require.NotNil(t, p.Best)
	assert.Equal(t, "AU", p.Best.Kind)
	assert.NotEmpty(t, p.Candidates)

	caps, err := b.Capabilities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"UK", "AU", "BHR"}, caps.RegistryOrder)
	assert.Greater(t, caps.Countries, 0)
	assert.False(t, caps.Oracle)
}

func TestErrorBody(t *testing.T) {
	body := errorBody(errors.InvalidParam("company name is required").WithDetail("index 1"))
	assert.Equal(t, string(errors.ErrCodeBadRequest), body.Code)
	assert.Equal(t, "company name is required", body.Message)
	assert.Equal(t, "index 1", body.Detail)
}
