package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"earnrev/internal/calendar"
	"earnrev/internal/config"
	"earnrev/internal/export"
	"earnrev/internal/ingest"
	"earnrev/internal/pipeline"
	"earnrev/internal/qa"
	"earnrev/internal/signals"
	"earnrev/internal/sim"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full earnings-reversal batch",
		Long: `Fetch earnings and daily OHLCV for the research universe, build
T0/T1/T2 event windows, compute R1/Gap2, classify signals, simulate
trades under the configured cost scenario, and export all tables.`,
		RunE: runBatch,
	}

	cmd.Flags().StringSlice("symbols", nil, "Symbols to process (default: built-in S&P 500 sample)")
	cmd.Flags().String("out", "", "Export directory (overrides config)")
	cmd.Flags().Bool("qa", true, "Run QA checks after the batch and write the report")
	cmd.Flags().String("qa-report", "data/qa/report.json", "Path for the QA report artifact")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		cfg.Export.Dir = out
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		return fmt.Errorf("no API key: set %s in the environment", cfg.Ingest.APIKeyEnv)
	}

	client := ingest.NewClient(cfg.Ingest.BaseURL, apiKey, cfg.Ingest.RequestsPerSecond)
	cal := calendar.NewAdapter(calendar.NewNYSEOracle())
	writer := export.NewWriter(cfg.Export.Dir)

	runner := pipeline.NewRunner(cfg, client, cal, writer)
	result, err := runner.Run(cmd.Context(), symbols)
	if err != nil {
		return err
	}

	runQA, _ := cmd.Flags().GetBool("qa")
	if !runQA {
		return nil
	}

	report := qa.Run(qa.Inputs{
		Windows: result.Windows,
		Signals: result.Signals,
		Trades:  result.Trades,
		Thresholds: signals.Thresholds{
			R1Threshold: cfg.Signals.R1Threshold,
			Gap2MinAbs:  cfg.Signals.Gap2MinAbs,
		},
		Cost:         cfg.CostScenario(),
		Tolerances:   sim.Tolerances{Assert: cfg.QA.AssertTolerance, Net: cfg.QA.NetTolerance},
		ExportDir:    cfg.Export.Dir,
		Degradations: result.Degradations,
		Counters:     result.Counters,
	})

	reportPath, _ := cmd.Flags().GetString("qa-report")
	if err := report.WriteJSON(reportPath); err != nil {
		return err
	}
	log.Info().Str("path", reportPath).Msg("qa report written")

	if !report.Pass {
		return fmt.Errorf("qa failed with %d issue(s)", report.FailCount)
	}
	return nil
}
