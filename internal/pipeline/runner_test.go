package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnrev/internal/calendar"
	"earnrev/internal/config"
	"earnrev/internal/domain"
	"earnrev/internal/export"
	"earnrev/internal/ingest"
	"earnrev/internal/signals"
)

// fmpStub serves one symbol's canned earnings and bars.
func fmpStub(t *testing.T) *httptest.Server {
	t.Helper()

	earnings := `[
		{"symbol":"AAPL","date":"2024-05-07","epsActual":1.53,"epsEstimated":1.50,"time":"amc"},
		{"symbol":"AAPL","date":"2024-02-06","epsActual":2.18,"epsEstimated":2.10,"time":""},
		{"symbol":"AAPL","date":"2024-08-01","epsActual":null,"epsEstimated":1.60,"time":"amc"}
	]`
	bars := `[
		{"symbol":"AAPL","date":"2024-05-07","open":99,"high":101,"low":98,"close":100,"volume":1000000},
		{"symbol":"AAPL","date":"2024-05-08","open":102,"high":106,"low":101,"close":105,"volume":1200000},
		{"symbol":"AAPL","date":"2024-05-09","open":103,"high":106,"low":102,"close":104,"volume":900000}
	]`

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stable/earnings":
			w.Write([]byte(earnings))
		case "/stable/historical-price-eod/full":
			w.Write([]byte(bars))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testRunner(t *testing.T, serverURL string) (*Runner, *config.Config, string) {
	t.Helper()

	cfg := config.Default()
	cfg.Ingest.BaseURL = serverURL
	cfg.Ingest.RequestsPerSecond = 1000
	cfg.Export.Dir = t.TempDir()

	client := ingest.NewClient(cfg.Ingest.BaseURL, "test-key", cfg.Ingest.RequestsPerSecond)
	cal := calendar.NewAdapter(calendar.NewNYSEOracle())
	writer := export.NewWriter(cfg.Export.Dir)
	return NewRunner(cfg, client, cal, writer), cfg, cfg.Export.Dir
}

func TestRunEndToEnd(t *testing.T) {
	server := fmpStub(t)
	defer server.Close()

	runner, _, dir := testRunner(t, server.URL)
	result, err := runner.Run(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	// The future (unannounced) event is filtered: two windows remain.
	require.Len(t, result.Windows, 2)
	assert.Equal(t, 2, result.WindowStats.Total)
	assert.Equal(t, 1, result.WindowStats.Complete)

	// Most recent event first.
	assert.True(t, result.Windows[0].EarningsDate.After(result.Windows[1].EarningsDate))

	// The May AMC event is a LONG that hits its target.
	sig := result.Signals[0]
	assert.Equal(t, signals.Long, sig.Classification)
	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.True(t, trade.HitTarget)
	assert.Equal(t, 105.0, trade.ExitPrice)
	assert.InDelta(t, (105.0-103.0)/103.0, trade.GrossReturn, 1e-9)

	// The February event has no bars in range: excluded, not dropped.
	assert.Equal(t, signals.ExcludedNoData, result.Signals[1].Classification)

	// Exports land on disk.
	for _, name := range []string{
		"constituents.csv", "earnings_events.csv", "daily_ohlcv.csv",
		"event_windows.csv", "signals.csv", "trades.csv",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	// Coverage reflects the partial batch.
	assert.Equal(t, 1, result.Coverage.ValidR1)
	assert.Equal(t, 1, result.Coverage.Classifications[signals.Long])
	assert.Equal(t, 1, result.Coverage.Classifications[signals.ExcludedNoData])

	// The run's counters are drained into the result.
	require.NotEmpty(t, result.Counters)
	series := make([]string, 0, len(result.Counters))
	for _, s := range result.Counters {
		series = append(series, s.Series)
		assert.Greater(t, s.Value, 0.0, s.Series)
	}
	assert.Contains(t, series, `earnrev_ingest_requests_total{endpoint="stable/earnings",outcome="ok"}`)
	assert.Contains(t, series, `earnrev_pipeline_classifications_total{classification="LONG"}`)
}

func TestRunIdempotent(t *testing.T) {
	server := fmpStub(t)
	defer server.Close()

	runner, _, _ := testRunner(t, server.URL)
	first, err := runner.Run(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), []string{"AAPL"})
	require.NoError(t, err)

	require.Equal(t, len(first.Windows), len(second.Windows))
	for i := range first.Windows {
		assert.Equal(t, first.Windows[i], second.Windows[i])
	}
	assert.Equal(t, first.Trades, second.Trades)
}

func TestRunFailsWithoutEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	runner, _, _ := testRunner(t, server.URL)
	_, err := runner.Run(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no announced earnings")
}

func TestUniverseDefaults(t *testing.T) {
	got := Universe(nil)
	require.Len(t, got, 5)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "Technology", got[0].Sector)
}

func TestUniverseOverride(t *testing.T) {
	got := Universe([]string{"JPM", "TSLA"})
	require.Len(t, got, 2)
	assert.Equal(t, "Financials", got[0].Sector)
	assert.Equal(t, "Unknown", got[1].Sector, "symbols outside the sample are accepted")
}

func TestComputeCoverageStats(t *testing.T) {
	r1a, r1b := 0.05, -0.03
	ws := []domain.EventWindow{
		{R1: &r1a, Gap2: &r1b},
		{R1: &r1b},
		{},
	}
	sigs := []signals.Signal{
		{Classification: signals.Long},
		{Classification: signals.ExcludedNoData},
		{Classification: signals.ExcludedNoData},
	}

	cov := ComputeCoverage(ws, sigs)
	assert.Equal(t, 2, cov.ValidR1)
	assert.Equal(t, 1, cov.ValidGap2)
	assert.InDelta(t, 0.01, cov.R1Mean, 1e-9) // (0.05 - 0.03) / 2
	assert.Equal(t, 2, cov.Classifications[signals.ExcludedNoData])
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, mean, 1e-9)
	assert.InDelta(t, 1.2909944487, std, 1e-9)

	mean, std = meanStd(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)

	_, std = meanStd([]float64{7})
	assert.Zero(t, std)
}
