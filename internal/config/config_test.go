package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0.01, cfg.Signals.R1Threshold)
	assert.Equal(t, 0.0025, cfg.Signals.Gap2MinAbs)
	assert.Equal(t, "base", cfg.Costs.Scenario)
	assert.Equal(t, 0.0001, cfg.QA.AssertTolerance)
	assert.Equal(t, "FMP_API_KEY", cfg.Ingest.APIKeyEnv)

	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 11.0, cfg.CostScenario().RoundTripBps(), 1e-9)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Signals, cfg.Signals)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earnrev.yaml")
	yaml := `
signals:
  r1_threshold: 0.02
costs:
  scenario: stressed
export:
  dir: /tmp/out
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Signals.R1Threshold)
	assert.Equal(t, 0.0025, cfg.Signals.Gap2MinAbs, "unset fields keep defaults")
	assert.Equal(t, "stressed", cfg.Costs.Scenario)
	assert.InDelta(t, 26.0, cfg.CostScenario().RoundTripBps(), 1e-9)
	assert.Equal(t, "/tmp/out", cfg.Export.Dir)
}

func TestLoadCustomScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earnrev.yaml")
	yaml := `
costs:
  scenario: retail
  scenarios:
    retail:
      spread_bps_each_side: 1.0
      slippage_bps_each_side: 1.0
      commission_bps_each_side: 0.0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, cfg.CostScenario().RoundTripBps(), 1e-9)
}

func TestLoadRejectsUnknownScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earnrev.yaml")
	require.NoError(t, os.WriteFile(path, []byte("costs:\n  scenario: bogus\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cost scenario")
	assert.Contains(t, err.Error(), "base")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earnrev.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signals:\n  r1_threshold: -0.5\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestAPIKeyFromEnv(t *testing.T) {
	cfg := Default()
	cfg.Ingest.APIKeyEnv = "EARNREV_TEST_KEY"
	t.Setenv("EARNREV_TEST_KEY", "secret")
	assert.Equal(t, "secret", cfg.APIKey())
}
