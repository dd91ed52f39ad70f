// Package export writes the pipeline's flat tables as delimited text
// with stable headers and ISO-8601 dates. Absent values become empty
// cells, never zeros.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"earnrev/internal/domain"
	"earnrev/internal/signals"
	"earnrev/internal/sim"
)

// Writer writes all export tables under one directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the export directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Constituent is one row of the research-universe table.
type Constituent struct {
	Symbol string
	Name   string
	Sector string
}

// WriteConstituents writes constituents.csv.
func (w *Writer) WriteConstituents(rows []Constituent) error {
	records := [][]string{{"symbol", "name", "sector"}}
	for _, c := range rows {
		records = append(records, []string{c.Symbol, c.Name, c.Sector})
	}
	return w.writeFile("constituents.csv", records)
}

// WriteEvents writes earnings_events.csv.
func (w *Writer) WriteEvents(events []domain.EarningsEvent) error {
	records := [][]string{{"symbol", "earnings_date", "eps_actual", "eps_estimated", "session"}}
	for _, e := range events {
		records = append(records, []string{
			e.Symbol,
			fdate(e.Date),
			fopt(e.EPSActual),
			fopt(e.EPSEstimated),
			string(e.Session),
		})
	}
	return w.writeFile("earnings_events.csv", records)
}

// WriteBars writes daily_ohlcv.csv from the bar table, ordered by
// symbol then date.
func (w *Writer) WriteBars(bars *domain.BarTable) error {
	records := [][]string{{"symbol", "date", "open", "high", "low", "close", "volume"}}
	for _, b := range bars.Rows() {
		records = append(records, []string{
			b.Symbol, fdate(b.Date),
			ffloat(b.Open), ffloat(b.High), ffloat(b.Low), ffloat(b.Close), ffloat(b.Volume),
		})
	}
	return w.writeFile("daily_ohlcv.csv", records)
}

var windowHeader = []string{
	"symbol", "earnings_date", "session", "effective_session",
	"t0_date", "t1_date", "t2_date",
	"t0_open", "t0_high", "t0_low", "t0_close", "t0_volume",
	"t1_open", "t1_high", "t1_low", "t1_close", "t1_volume",
	"t2_open", "t2_high", "t2_low", "t2_close", "t2_volume",
	"R1", "Gap2", "abs_R1", "abs_Gap2",
}

// WriteWindows writes event_windows.csv, one row per event whether or
// not its anchor bars are present.
func (w *Writer) WriteWindows(ws []domain.EventWindow) error {
	records := [][]string{windowHeader}
	for _, win := range ws {
		row := []string{
			win.Symbol, fdate(win.EarningsDate),
			string(win.Session), string(win.EffectiveSession),
			fdate(win.T0Date), fdate(win.T1Date), fdate(win.T2Date),
		}
		row = append(row, barCells(win.T0)...)
		row = append(row, barCells(win.T1)...)
		row = append(row, barCells(win.T2)...)
		row = append(row, fopt(win.R1), fopt(win.Gap2), fopt(win.AbsR1), fopt(win.AbsGap2))
		records = append(records, row)
	}
	return w.writeFile("event_windows.csv", records)
}

var signalHeader = []string{
	"symbol", "earnings_date", "session", "effective_session",
	"t0_date", "t1_date", "t2_date",
	"t0_close", "t1_close", "t2_open",
	"R1", "Gap2", "abs_R1", "abs_Gap2",
	"signal", "exclusion_reason", "target_price", "entry_price",
}

// WriteSignals writes signals.csv.
func (w *Writer) WriteSignals(sigs []signals.Signal) error {
	records := [][]string{signalHeader}
	for _, s := range sigs {
		win := s.Window
		var t0Close *float64
		if win.T0 != nil {
			v := win.T0.Close
			t0Close = &v
		}
		records = append(records, []string{
			win.Symbol, fdate(win.EarningsDate),
			string(win.Session), string(win.EffectiveSession),
			fdate(win.T0Date), fdate(win.T1Date), fdate(win.T2Date),
			fopt(t0Close), fopt(win.T1Close()), fopt(win.T2Open()),
			fopt(win.R1), fopt(win.Gap2), fopt(win.AbsR1), fopt(win.AbsGap2),
			string(s.Classification), s.ExclusionReason,
			fopt(s.TargetPrice), fopt(s.EntryPrice),
		})
	}
	return w.writeFile("signals.csv", records)
}

var tradeHeader = []string{
	"symbol", "earnings_date", "signal",
	"entry_price", "target_price", "t1_close",
	"t2_high", "t2_low", "t2_close",
	"exit_price", "hit_target", "gross_return", "cost_bps", "net_return",
}

// WriteTrades writes trades.csv. An empty trade set still produces
// the file with its header so downstream QA can distinguish "no
// trades" from "export missing".
func (w *Writer) WriteTrades(trades []sim.Trade) error {
	records := [][]string{tradeHeader}
	for _, t := range trades {
		win := t.Signal.Window
		records = append(records, []string{
			win.Symbol, fdate(win.EarningsDate), string(t.Signal.Classification),
			ffloat(t.EntryPrice), ffloat(t.TargetPrice), fopt(win.T1Close()),
			ffloat(win.T2.High), ffloat(win.T2.Low), ffloat(win.T2.Close),
			ffloat(t.ExitPrice), strconv.FormatBool(t.HitTarget),
			ffloat(t.GrossReturn), ffloat(t.CostBps), ffloat(t.NetReturn),
		})
	}
	return w.writeFile("trades.csv", records)
}

// writeFile writes records atomically: temp file in the target
// directory, then rename.
func (w *Writer) writeFile(name string, records [][]string) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(w.dir, name)
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	cw := csv.NewWriter(file)
	if err := cw.WriteAll(records); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", name, err)
	}
	return os.Rename(tmpPath, path)
}

func fdate(t time.Time) string {
	return t.Format(domain.DateFormat)
}

func ffloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fopt(v *float64) string {
	if v == nil {
		return ""
	}
	return ffloat(*v)
}

func barCells(b *domain.Bar) []string {
	if b == nil {
		return []string{"", "", "", "", ""}
	}
	return []string{ffloat(b.Open), ffloat(b.High), ffloat(b.Low), ffloat(b.Close), ffloat(b.Volume)}
}
