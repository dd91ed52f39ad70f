package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"earnrev/internal/config"
	"earnrev/internal/export"
	"earnrev/internal/qa"
	"earnrev/internal/signals"
	"earnrev/internal/sim"
)

func newQACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Validate a finished run's export artifacts",
		Long: `Load the exported window, signal, and trade tables back from disk
and re-run every QA check against them: date ordering, OHLC sanity,
signal-rule conformance, and trade return math. Exits non-zero when
any check fails.`,
		RunE: runQAChecks,
	}

	cmd.Flags().String("dir", "", "Export directory to validate (overrides config)")
	cmd.Flags().String("qa-report", "data/qa/report.json", "Path for the QA report artifact")

	return cmd
}

func runQAChecks(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	dir := cfg.Export.Dir
	if flagDir, _ := cmd.Flags().GetString("dir"); flagDir != "" {
		dir = flagDir
	}

	reader := export.NewReader(dir)
	windows, err := reader.ReadWindows()
	if err != nil {
		return fmt.Errorf("load windows: %w", err)
	}
	sigs, err := reader.ReadSignals()
	if err != nil {
		return fmt.Errorf("load signals: %w", err)
	}
	trades, err := reader.ReadTrades()
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}

	report := qa.Run(qa.Inputs{
		Windows: windows,
		Signals: sigs,
		Trades:  trades,
		Thresholds: signals.Thresholds{
			R1Threshold: cfg.Signals.R1Threshold,
			Gap2MinAbs:  cfg.Signals.Gap2MinAbs,
		},
		Cost:       cfg.CostScenario(),
		Tolerances: sim.Tolerances{Assert: cfg.QA.AssertTolerance, Net: cfg.QA.NetTolerance},
		ExportDir:  dir,
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
