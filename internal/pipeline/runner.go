// Package pipeline orchestrates the batch: ingest earnings and bars,
// build windows, compute features, classify, simulate, export. Each
// stage consumes the previous stage's table read-only and produces a
// new one; nothing is mutated across stages.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"earnrev/internal/calendar"
	"earnrev/internal/config"
	"earnrev/internal/domain"
	"earnrev/internal/export"
	"earnrev/internal/ingest"
	"earnrev/internal/metrics"
	"earnrev/internal/signals"
	"earnrev/internal/sim"
	"earnrev/internal/windows"
)

// barBufferDays pads the OHLCV fetch range so T0/T2 anchors near the
// edges of the earnings range still have bars.
const barBufferDays = 10

// Result carries every table one batch produced.
type Result struct {
	Constituents []export.Constituent
	Events       []domain.EarningsEvent
	Bars         *domain.BarTable
	Windows      []domain.EventWindow
	Signals      []signals.Signal
	Trades       []sim.Trade
	WindowStats  windows.Stats
	Coverage     Coverage
	Degradations int
	Counters     []metrics.Sample
}

// Runner wires the collaborators for one batch run.
type Runner struct {
	cfg    *config.Config
	client *ingest.Client
	cal    *calendar.Adapter
	writer *export.Writer
	log    zerolog.Logger
}

// NewRunner builds a runner from loaded configuration.
func NewRunner(cfg *config.Config, client *ingest.Client, cal *calendar.Adapter, writer *export.Writer) *Runner {
	return &Runner{
		cfg:    cfg,
		client: client,
		cal:    cal,
		writer: writer,
		log:    log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes the full batch for the given symbols (default universe
// when empty) and writes every export table.
func (r *Runner) Run(ctx context.Context, symbols []string) (*Result, error) {
	constituents := Universe(symbols)
	r.log.Info().Int("symbols", len(constituents)).Msg("starting batch")

	events, err := r.fetchEarnings(ctx, constituents)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no announced earnings events for any symbol")
	}

	bars, err := r.fetchBars(ctx, constituents, events)
	if err != nil {
		return nil, err
	}

	builder := windows.NewBuilder(r.cal)
	ws, stats, err := builder.Build(events, bars)
	if err != nil {
		return nil, fmt.Errorf("window build: %w", err)
	}
	ws = windows.WithFeatures(ws)

	th := signals.Thresholds{
		R1Threshold: r.cfg.Signals.R1Threshold,
		Gap2MinAbs:  r.cfg.Signals.Gap2MinAbs,
	}
	sigs := signals.ClassifyAll(ws, th)
	for _, s := range sigs {
		metrics.Classifications.WithLabelValues(string(s.Classification)).Inc()
	}

	tol := sim.Tolerances{Assert: r.cfg.QA.AssertTolerance, Net: r.cfg.QA.NetTolerance}
	trades, err := sim.NewSimulator(r.cfg.CostScenario(), tol).Simulate(sigs)
	if err != nil {
		return nil, fmt.Errorf("trade simulation: %w", err)
	}

	result := &Result{
		Constituents: constituents,
		Events:       events,
		Bars:         bars,
		Windows:      ws,
		Signals:      sigs,
		Trades:       trades,
		WindowStats:  stats,
		Coverage:     ComputeCoverage(ws, sigs),
		Degradations: r.cal.Degradations(),
	}

	r.log.Info().
		Int("events", len(events)).
		Int("bars", bars.Len()).
		Int("trades", len(trades)).
		Int("valid_r1", result.Coverage.ValidR1).
		Int("valid_gap2", result.Coverage.ValidGap2).
		Float64("r1_mean", result.Coverage.R1Mean).
		Float64("gap2_mean", result.Coverage.Gap2Mean).
		Msg("batch computed")

	if err := r.export(result); err != nil {
		return nil, err
	}

	result.Counters = r.snapshotCounters()
	return result, nil
}

// snapshotCounters drains the run's prometheus counters into the log
// and the result so they survive the process. Failure to gather is
// reported but never fails the batch.
func (r *Runner) snapshotCounters() []metrics.Sample {
	samples, err := metrics.Snapshot()
	if err != nil {
		r.log.Warn().Err(err).Msg("metrics snapshot failed")
		return nil
	}
	event := r.log.Info()
	for _, s := range samples {
		event = event.Float64(s.Series, s.Value)
	}
	event.Msg("run counters")
	return samples
}

// fetchEarnings pulls each symbol's history, keeps announced events
// only, and orders most recent first. A symbol that fails to fetch
// logs a warning and drops out; the batch continues.
func (r *Runner) fetchEarnings(ctx context.Context, constituents []export.Constituent) ([]domain.EarningsEvent, error) {
	var events []domain.EarningsEvent
	for _, c := range constituents {
		fetched, err := r.client.FetchEarnings(ctx, c.Symbol, r.cfg.Ingest.EarningsLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("earnings fetch failed, skipping symbol")
			continue
		}
		for _, ev := range fetched {
			if ev.Announced() {
				events = append(events, ev)
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.After(events[j].Date)
		}
		return events[i].Symbol < events[j].Symbol
	})
	return events, nil
}

// fetchBars pulls daily bars covering the earnings range plus buffer
// and builds the read-only lookup table.
func (r *Runner) fetchBars(ctx context.Context, constituents []export.Constituent, events []domain.EarningsEvent) (*domain.BarTable, error) {
	minDate, maxDate := events[0].Date, events[0].Date
	for _, ev := range events {
		if ev.Date.Before(minDate) {
			minDate = ev.Date
		}
		if ev.Date.After(maxDate) {
			maxDate = ev.Date
		}
	}
	from := minDate.AddDate(0, 0, -barBufferDays)
	to := maxDate.AddDate(0, 0, barBufferDays)

	var all []domain.Bar
	for _, c := range constituents {
		bars, err := r.client.FetchDailyBars(ctx, c.Symbol, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("bar fetch failed, symbol will have missing windows")
			continue
		}
		all = append(all, bars...)
	}
	return domain.NewBarTable(all), nil
}

func (r *Runner) export(result *Result) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"constituents", func() error { return r.writer.WriteConstituents(result.Constituents) }},
		{"earnings_events", func() error { return r.writer.WriteEvents(result.Events) }},
		{"daily_ohlcv", func() error { return r.writer.WriteBars(result.Bars) }},
		{"event_windows", func() error { return r.writer.WriteWindows(result.Windows) }},
		{"signals", func() error { return r.writer.WriteSignals(result.Signals) }},
		{"trades", func() error { return r.writer.WriteTrades(result.Trades) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("export %s: %w", step.name, err)
		}
	}
	r.log.Info().Str("dir", r.writer.Dir()).Msg("exports written")
	return nil
}
