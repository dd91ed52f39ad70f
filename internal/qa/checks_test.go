package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnrev/internal/domain"
	"earnrev/internal/export"
	"earnrev/internal/metrics"
	"earnrev/internal/signals"
	"earnrev/internal/sim"
)

var (
	qaThresholds = signals.Thresholds{R1Threshold: 0.01, Gap2MinAbs: 0.0025}
	qaCost       = domain.CostScenario{SpreadBpsEachSide: 2.5, SlippageBpsEachSide: 2.5, CommissionBpsEachSide: 0.5}
	qaTol        = sim.Tolerances{Assert: 1e-4, Net: 1e-6}
)

func goodWindow() domain.EventWindow {
	w := domain.EventWindow{
		Symbol:           "AAPL",
		EarningsDate:     domain.MustParseDate("2024-05-07"),
		Session:          domain.SessionAMC,
		EffectiveSession: domain.SessionAMC,
		T0Date:           domain.MustParseDate("2024-05-07"),
		T1Date:           domain.MustParseDate("2024-05-08"),
		T2Date:           domain.MustParseDate("2024-05-09"),
		T0:               &domain.Bar{Symbol: "AAPL", Open: 99, High: 101, Low: 98, Close: 100, Volume: 1e6},
		T1:               &domain.Bar{Symbol: "AAPL", Open: 102, High: 106, Low: 101, Close: 105, Volume: 1e6},
		T2:               &domain.Bar{Symbol: "AAPL", Open: 103, High: 106, Low: 102, Close: 104, Volume: 1e6},
	}
	return domain.ComputeFeatures(w)
}

// goodBatch builds a consistent window/signal/trade set with its
// exports on disk, so individual tests can corrupt one aspect.
func goodBatch(t *testing.T) Inputs {
	t.Helper()

	w := goodWindow()
	sigs := signals.ClassifyAll([]domain.EventWindow{w}, qaThresholds)
	trades, err := sim.NewSimulator(qaCost, qaTol).Simulate(sigs)
	require.NoError(t, err)

	dir := t.TempDir()
	writer := export.NewWriter(dir)
	require.NoError(t, writer.WriteConstituents([]export.Constituent{{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology"}}))
	require.NoError(t, writer.WriteEvents([]domain.EarningsEvent{{Symbol: "AAPL", Date: w.EarningsDate, Session: domain.SessionAMC}}))
	require.NoError(t, writer.WriteBars(domain.NewBarTable([]domain.Bar{*w.T0, *w.T1, *w.T2})))
	require.NoError(t, writer.WriteWindows([]domain.EventWindow{w}))
	require.NoError(t, writer.WriteSignals(sigs))
	require.NoError(t, writer.WriteTrades(trades))

	return Inputs{
		Windows:    []domain.EventWindow{w},
		Signals:    sigs,
		Trades:     trades,
		Thresholds: qaThresholds,
		Cost:       qaCost,
		Tolerances: qaTol,
		ExportDir:  dir,
	}
}

func TestRunPassesOnGoodBatch(t *testing.T) {
	report := Run(goodBatch(t))
	assert.True(t, report.Pass)
	assert.Zero(t, report.FailCount)
	assert.NotEmpty(t, report.RunID)
}

func TestRunFailsOnMissingExports(t *testing.T) {
	in := goodBatch(t)
	in.ExportDir = t.TempDir() // empty directory

	report := Run(in)
	assert.False(t, report.Pass)
	assert.GreaterOrEqual(t, report.FailCount, len(requiredExports))
}

func TestRunFailsOnDateOrderingViolation(t *testing.T) {
	in := goodBatch(t)
	in.Windows[0].T2Date = in.Windows[0].T1Date // t1 >= t2

	report := Run(in)
	assert.False(t, report.Pass)
	assertIssue(t, report, "date_ordering", SeverityFail)
}

func TestRunWarnsOnOHLCViolation(t *testing.T) {
	in := goodBatch(t)
	bad := *in.Windows[0].T1
	bad.Low = bad.High + 1
	in.Windows[0].T1 = &bad

	report := Run(in)
	assert.True(t, report.Pass, "OHLC inconsistency is a warning, not a failure")
	assertIssue(t, report, "ohlc_consistency", SeverityWarn)
}

func TestOHLCIssuesReportAnchorsInOrder(t *testing.T) {
	w := goodWindow()
	for _, b := range []**domain.Bar{&w.T0, &w.T1, &w.T2} {
		bad := **b
		bad.Low = bad.High + 1
		*b = &bad
	}

	issues := checkOHLC([]domain.EventWindow{w})
	require.Len(t, issues, 3)
	assert.Contains(t, issues[0].Message, "t0 bar")
	assert.Contains(t, issues[1].Message, "t1 bar")
	assert.Contains(t, issues[2].Message, "t2 bar")
}

func TestRunFailsOnSignalRuleViolation(t *testing.T) {
	in := goodBatch(t)
	// Flip a LONG's Gap2 positive: the rule R1>thr AND Gap2<0 breaks.
	gap := 0.02
	in.Signals[0].Window.Gap2 = &gap

	report := Run(in)
	assert.False(t, report.Pass)
	assertIssue(t, report, "signal_rules", SeverityFail)
}

func TestRunFailsOnTradeMathViolation(t *testing.T) {
	in := goodBatch(t)
	in.Trades[0].NetReturn = in.Trades[0].GrossReturn // cost not applied

	report := Run(in)
	assert.False(t, report.Pass)
	assertIssue(t, report, "trade_math", SeverityFail)
}

func TestRunFailsOnCostMismatch(t *testing.T) {
	in := goodBatch(t)
	in.Cost = domain.CostScenario{} // scenario says zero, trades carry 11 bps

	report := Run(in)
	assert.False(t, report.Pass)
	assertIssue(t, report, "trade_math", SeverityFail)
}

func TestRunReportsCoverageInfo(t *testing.T) {
	in := goodBatch(t)

	unknown := goodWindow()
	unknown.Session = domain.SessionUnknown
	in.Windows = append(in.Windows, unknown)
	in.Signals = append(in.Signals, signals.Classify(unknown, qaThresholds))
	in.Degradations = 3

	report := Run(in)
	assert.True(t, report.Pass, "exclusions and degradations do not fail the run")
	assertIssue(t, report, "coverage", SeverityInfo)
	assertIssue(t, report, "coverage", SeverityWarn)
}

func TestRunCarriesCountersIntoReport(t *testing.T) {
	in := goodBatch(t)
	in.Counters = []metrics.Sample{
		{Series: `earnrev_ingest_requests_total{endpoint="stable/earnings",outcome="ok"}`, Value: 5},
		{Series: "earnrev_calendar_degradations_total", Value: 1},
	}

	report := Run(in)
	assert.Equal(t, in.Counters, report.Counters)
}

func TestReportWriteJSON(t *testing.T) {
	report := Run(goodBatch(t))
	path := t.TempDir() + "/qa/report.json"
	require.NoError(t, report.WriteJSON(path))
	assert.FileExists(t, path)
}

func assertIssue(t *testing.T, report *Report, check string, severity Severity) {
	t.Helper()
	for _, issue := range report.Issues {
		if issue.Check == check && issue.Severity == severity {
			return
		}
	}
	t.Errorf("expected a %s issue from check %q, got %+v", severity, check, report.Issues)
}
