// Package qa validates a completed pipeline run: export integrity,
// anchor ordering, OHLC sanity, signal-rule conformance, and trade
// math. It mirrors the checks a reviewer would run by hand before
// trusting the numbers.
package qa

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"earnrev/internal/domain"
	"earnrev/internal/metrics"
	"earnrev/internal/signals"
	"earnrev/internal/sim"
)

// Severity grades an issue. FAIL aborts acceptance; WARN and INFO are
// reported but do not.
type Severity string

const (
	SeverityFail Severity = "FAIL"
	SeverityWarn Severity = "WARN"
	SeverityInfo Severity = "INFO"
)

// Issue is one finding from one check.
type Issue struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Inputs bundles everything the checks inspect.
type Inputs struct {
	Windows      []domain.EventWindow
	Signals      []signals.Signal
	Trades       []sim.Trade
	Thresholds   signals.Thresholds
	Cost         domain.CostScenario
	Tolerances   sim.Tolerances
	ExportDir    string
	Degradations int
	Counters     []metrics.Sample
}

// requiredExports lists the table files a run must leave behind.
// trades.csv may legitimately be empty; the others may not.
var requiredExports = []string{
	"constituents.csv",
	"earnings_events.csv",
	"daily_ohlcv.csv",
	"event_windows.csv",
	"signals.csv",
	"trades.csv",
}

func checkExports(dir string) []Issue {
	var issues []Issue
	for _, name := range requiredExports {
		path := filepath.Join(dir, name)
		file, err := os.Open(path)
		if err != nil {
			issues = append(issues, Issue{
				Check: "exports", Severity: SeverityFail,
				Message: fmt.Sprintf("missing export: %s", path),
			})
			continue
		}
		rows, err := csv.NewReader(file).ReadAll()
		file.Close()
		if err != nil {
			issues = append(issues, Issue{
				Check: "exports", Severity: SeverityFail,
				Message: fmt.Sprintf("unreadable export %s: %v", path, err),
			})
			continue
		}
		if len(rows) <= 1 && name != "trades.csv" {
			issues = append(issues, Issue{
				Check: "exports", Severity: SeverityFail,
				Message: fmt.Sprintf("export %s has no data rows", path),
			})
		}
	}
	return issues
}

func checkDateOrdering(ws []domain.EventWindow) []Issue {
	violations := 0
	for _, w := range ws {
		if w.T0Date.After(w.T1Date) || !w.T1Date.Before(w.T2Date) {
			violations++
		}
	}
	if violations > 0 {
		return []Issue{{
			Check: "date_ordering", Severity: SeverityFail,
			Message: fmt.Sprintf("%d window(s) violate t0 <= t1 < t2", violations),
		}}
	}
	return nil
}

func checkOHLC(ws []domain.EventWindow) []Issue {
	var issues []Issue
	anchors := []struct {
		name string
		pick func(domain.EventWindow) *domain.Bar
	}{
		{"t0", func(w domain.EventWindow) *domain.Bar { return w.T0 }},
		{"t1", func(w domain.EventWindow) *domain.Bar { return w.T1 }},
		{"t2", func(w domain.EventWindow) *domain.Bar { return w.T2 }},
	}
	for _, anchor := range anchors {
		violations := 0
		for _, w := range ws {
			b := anchor.pick(w)
			if b == nil {
				continue
			}
			if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
				violations++
			}
		}
		if violations > 0 {
			issues = append(issues, Issue{
				Check: "ohlc_consistency", Severity: SeverityWarn,
				Message: fmt.Sprintf("%d %s bar(s) violate low <= open,close <= high", violations, anchor.name),
			})
		}
	}
	return issues
}

// checkSignalRules verifies LONG/SHORT rows against the decision
// policy's sign and threshold requirements, and that target/entry are
// recorded for every row that has the underlying bar.
func checkSignalRules(sigs []signals.Signal, th signals.Thresholds) []Issue {
	var issues []Issue
	for _, s := range sigs {
		switch s.Classification {
		case signals.Long:
			if s.Window.R1 == nil || s.Window.Gap2 == nil || *s.Window.R1 <= th.R1Threshold || *s.Window.Gap2 >= 0 {
				issues = append(issues, Issue{
					Check: "signal_rules", Severity: SeverityFail,
					Message: fmt.Sprintf("%s %s: LONG requires R1 > %.4f and Gap2 < 0",
						s.Window.Symbol, s.Window.EarningsDate.Format(domain.DateFormat), th.R1Threshold),
				})
			}
		case signals.Short:
			if s.Window.R1 == nil || s.Window.Gap2 == nil || *s.Window.R1 >= -th.R1Threshold || *s.Window.Gap2 <= 0 {
				issues = append(issues, Issue{
					Check: "signal_rules", Severity: SeverityFail,
					Message: fmt.Sprintf("%s %s: SHORT requires R1 < -%.4f and Gap2 > 0",
						s.Window.Symbol, s.Window.EarningsDate.Format(domain.DateFormat), th.R1Threshold),
				})
			}
		}

		if s.Window.T1 != nil && s.TargetPrice == nil {
			issues = append(issues, Issue{
				Check: "signal_rules", Severity: SeverityFail,
				Message: fmt.Sprintf("%s %s: target_price missing despite T1 bar present",
					s.Window.Symbol, s.Window.EarningsDate.Format(domain.DateFormat)),
			})
		}
		if s.Window.T2 != nil && s.EntryPrice == nil {
			issues = append(issues, Issue{
				Check: "signal_rules", Severity: SeverityFail,
				Message: fmt.Sprintf("%s %s: entry_price missing despite T2 bar present",
					s.Window.Symbol, s.Window.EarningsDate.Format(domain.DateFormat)),
			})
		}
	}
	return issues
}

// checkTrades re-runs the simulator's invariants independently and
// also requires a single cost figure across the batch.
func checkTrades(trades []sim.Trade, cost domain.CostScenario, tol sim.Tolerances) []Issue {
	var issues []Issue
	verifier := sim.NewSimulator(cost, tol)
	costs := make(map[float64]struct{})

	for _, t := range trades {
		if err := verifier.Verify(t); err != nil {
			issues = append(issues, Issue{
				Check: "trade_math", Severity: SeverityFail, Message: err.Error(),
			})
		}
		costs[t.CostBps] = struct{}{}

		if math.Abs(t.CostBps-cost.RoundTripBps()) > tol.Net {
			issues = append(issues, Issue{
				Check: "trade_math", Severity: SeverityFail,
				Message: fmt.Sprintf("%s %s: cost_bps=%.2f does not match scenario round-trip %.2f",
					t.Signal.Window.Symbol, t.Signal.Window.EarningsDate.Format(domain.DateFormat),
					t.CostBps, cost.RoundTripBps()),
			})
		}
	}

	if len(costs) > 1 {
		issues = append(issues, Issue{
			Check: "trade_math", Severity: SeverityFail,
			Message: fmt.Sprintf("inconsistent cost_bps across trades: %d distinct values", len(costs)),
		})
	}
	return issues
}

func checkCoverage(sigs []signals.Signal, degradations int) []Issue {
	var issues []Issue
	unknown := 0
	noData := 0
	for _, s := range sigs {
		switch s.Classification {
		case signals.ExcludedUnknownSession:
			unknown++
		case signals.ExcludedNoData:
			noData++
		}
	}
	if unknown > 0 {
		issues = append(issues, Issue{
			Check: "coverage", Severity: SeverityInfo,
			Message: fmt.Sprintf("%d event(s) excluded for unverified announcement timing", unknown),
		})
	}
	if noData > 0 {
		issues = append(issues, Issue{
			Check: "coverage", Severity: SeverityInfo,
			Message: fmt.Sprintf("%d event(s) excluded for missing anchor bars", noData),
		})
	}
	if degradations > 0 {
		issues = append(issues, Issue{
			Check: "coverage", Severity: SeverityWarn,
			Message: fmt.Sprintf("%d calendar query(ies) used the weekday approximation", degradations),
		})
	}
	return issues
}
