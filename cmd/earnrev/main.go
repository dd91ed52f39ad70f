package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "earnrev"
	version = "v0.3.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Earnings-reversal research pipeline",
		Version: version,
		Long: `earnrev evaluates an earnings-reversal hypothesis: after a significant
one-day move following an earnings announcement, does a next-day gap in
the opposite direction predict reversion toward the prior close?

The 'run' command executes the full batch (ingest, event windows,
features, signals, simulated trades, CSV exports); 'qa' validates a
finished run's artifacts.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config (defaults used when empty)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newQACmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
