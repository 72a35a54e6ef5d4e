package bootstrap

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/config"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.Enrichment.Enabled = false
	cfg.Oracle.Enabled = false
	cfg.Kafka.Enabled = false
	return cfg
}

func TestBuild_EmbeddedDefaults(t *testing.T) {
	app, err := Build(context.Background(), offlineConfig(), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.NotNil(t, app.Service)
	assert.NotNil(t, app.Rules)
	assert.NotNil(t, app.Metrics)
	assert.Nil(t, app.Redis)
	assert.Nil(t, app.MinIO)
	assert.Nil(t, app.Producer)
	assert.Nil(t, app.Submitter)
	assert.Empty(t, app.HealthChecks())

	caps := app.Service.Capabilities()
	assert.False(t, caps.Oracle)
	assert.Empty(t, caps.Enrichment)
	assert.Equal(t, []string{"UK", "AU", "BHR"}, caps.RegistryOrder)
	assert.Greater(t, caps.Countries, 0)
	assert.Greater(t, caps.ComplianceRules, 0)

	rep, err := app.Service.Assess(context.Background(), assessment.Request{CompanyName: "Wattle Mining", CountryHint: "Australia"})
	require.NoError(t, err)
	assert.True(t, rep.Residual.HasStatement)
	assert.Equal(t, "AU", rep.Residual.Registry)
}

func TestBuild_ExportsReferenceSizes(t *testing.T) {
	app, err := Build(context.Background(), offlineConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	families, err := app.Collector.Gatherer().Gather()
	require.NoError(t, err)
	rows := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "msrisk_reference_table_rows" {
			continue
		}
		for _, m := range f.GetMetric() {
			rows[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(app.Store.CountryCount()), rows["countries"])
	assert.Contains(t, rows, "registry_UK")
}

func TestBuild_MetricsDisabled(t *testing.T) {
	cfg := offlineConfig()
	cfg.Metrics.Enabled = false

	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Nil(t, app.Collector)
	assert.Nil(t, app.Metrics)
	_, err = app.Service.Assess(context.Background(), assessment.Request{CompanyName: "Acme Textiles", CountryHint: "Bangladesh"})
	assert.NoError(t, err)
}

func TestBuild_RegistryPriorityOrder(t *testing.T) {
	cfg := offlineConfig()
	cfg.Reference.RegistryPriority = []string{"bhr", "uk"}

	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Equal(t, []registry.Kind{registry.KindBHR, registry.KindUK}, app.Matcher.Priority())
	_, hasAU := app.Matcher.Counts()[registry.KindAU]
	assert.False(t, hasAU)
}

func TestBuild_Failures(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := Build(context.Background(), nil, nil)
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
	})

	t.Run("unknown registry", func(t *testing.T) {
		cfg := offlineConfig()
		cfg.Reference.RegistryPriority = []string{"FR"}
		_, err := Build(context.Background(), cfg, nil)
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
	})

	t.Run("registry fetch fails", func(t *testing.T) {
		boom := stderrors.New("bucket offline")
		fetcher := registry.FetcherFunc(func(context.Context, string) ([]byte, error) { return nil, boom })
		_, err := Build(context.Background(), offlineConfig(), nil, WithRegistryFetcher(fetcher))
		assert.ErrorIs(t, err, boom)
	})
}

func TestApp_CloseRunsInReverse(t *testing.T) {
	var order []int
	app := &App{Logger: logging.NewNopLogger()}
	app.closers = []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return stderrors.New("ignored") },
	}
	app.Close()
	app.Close()
	assert.Equal(t, []int{2, 1}, order)
}

func TestHealthCheck_Adapter(t *testing.T) {
	hc := HealthCheck{Label: "redis", Fn: func(context.Context) error { return nil }}
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Check(context.Background()))
}
