// Package config loads the pipeline configuration: signal thresholds,
// named cost scenarios, QA tolerances, and ingestion settings.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"earnrev/internal/domain"
)

type SignalsConfig struct {
	R1Threshold float64 `yaml:"r1_threshold" default:"0.01" validate:"gt=0"`
	Gap2MinAbs  float64 `yaml:"gap2_min_abs" default:"0.0025" validate:"gte=0"`
}

type CostsConfig struct {
	Scenario  string                         `yaml:"scenario" default:"base"`
	Scenarios map[string]domain.CostScenario `yaml:"scenarios" validate:"dive"`
}

type QAConfig struct {
	AssertTolerance float64 `yaml:"assert_tolerance" default:"0.0001" validate:"gt=0"`
	NetTolerance    float64 `yaml:"net_tolerance" default:"0.000001" validate:"gt=0"`
}

type IngestConfig struct {
	BaseURL           string  `yaml:"base_url" default:"https://financialmodelingprep.com" validate:"url"`
	APIKeyEnv         string  `yaml:"api_key_env" default:"FMP_API_KEY"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"4" validate:"gt=0"`
	EarningsLimit     int     `yaml:"earnings_limit" default:"10" validate:"gt=0"`
}

type ExportConfig struct {
	Dir string `yaml:"dir" default:"data/exports/csv"`
}

type Config struct {
	Signals SignalsConfig `yaml:"signals"`
	Costs   CostsConfig   `yaml:"costs"`
	QA      QAConfig      `yaml:"qa"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Export  ExportConfig  `yaml:"export"`
}

// builtinScenarios are used when the config file defines none.
func builtinScenarios() map[string]domain.CostScenario {
	return map[string]domain.CostScenario{
		"base":     {SpreadBpsEachSide: 2.5, SlippageBpsEachSide: 2.5, CommissionBpsEachSide: 0.5},
		"stressed": {SpreadBpsEachSide: 5.0, SlippageBpsEachSide: 7.5, CommissionBpsEachSide: 0.5},
		"zero":     {},
	}
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.Costs.Scenarios = builtinScenarios()
	return cfg
}

// Load reads a YAML config file over the defaults and validates it.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if len(cfg.Costs.Scenarios) == 0 {
		cfg.Costs.Scenarios = builtinScenarios()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that the selected cost
// scenario is one of the named set.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Costs.Scenarios[c.Costs.Scenario]; !ok {
		names := make([]string, 0, len(c.Costs.Scenarios))
		for name := range c.Costs.Scenarios {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown cost scenario %q (known: %s)", c.Costs.Scenario, strings.Join(names, ", "))
	}
	return nil
}

// CostScenario resolves the selected named scenario.
func (c *Config) CostScenario() domain.CostScenario {
	return c.Costs.Scenarios[c.Costs.Scenario]
}

// APIKey reads the ingestion API key from the configured environment
// variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.Ingest.APIKeyEnv)
}
