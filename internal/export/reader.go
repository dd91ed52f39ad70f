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

// Reader loads previously exported tables back into memory so the QA
// checks can run against an on-disk artifact set instead of a live
// batch.
type Reader struct {
	dir string
}

// NewReader creates a reader over an export directory.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

type row struct {
	cols map[string]int
	rec  []string
}

func (r row) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return r.rec[i]
}

func (r row) opt(name string) (*float64, error) {
	s := r.str(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &v, nil
}

func (r row) float(name string) (float64, error) {
	v, err := r.opt(name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("column %s: empty", name)
	}
	return *v, nil
}

func (r row) date(name string) (time.Time, error) {
	s := r.str(name)
	if s == "" {
		return time.Time{}, fmt.Errorf("column %s: empty", name)
	}
	return time.Parse(domain.DateFormat, s)
}

func (rd *Reader) load(name string) ([]row, error) {
	path := filepath.Join(rd.dir, name)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	rows := make([]row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, row{cols: cols, rec: rec})
	}
	return rows, nil
}

func (r row) bar(symbol, prefix string, date time.Time) (*domain.Bar, error) {
	closePx, err := r.opt(prefix + "_close")
	if err != nil {
		return nil, err
	}
	if closePx == nil {
		return nil, nil
	}
	open, err := r.float(prefix + "_open")
	if err != nil {
		return nil, err
	}
	high, err := r.float(prefix + "_high")
	if err != nil {
		return nil, err
	}
	low, err := r.float(prefix + "_low")
	if err != nil {
		return nil, err
	}
	volume, err := r.float(prefix + "_volume")
	if err != nil {
		return nil, err
	}
	return &domain.Bar{
		Symbol: symbol, Date: date,
		Open: open, High: high, Low: low, Close: *closePx, Volume: volume,
	}, nil
}

// ReadWindows loads event_windows.csv.
func (rd *Reader) ReadWindows() ([]domain.EventWindow, error) {
	rows, err := rd.load("event_windows.csv")
	if err != nil {
		return nil, err
	}

	out := make([]domain.EventWindow, 0, len(rows))
	for _, r := range rows {
		w := domain.EventWindow{
			Symbol:           r.str("symbol"),
			Session:          domain.Session(r.str("session")),
			EffectiveSession: domain.Session(r.str("effective_session")),
		}
		if w.EarningsDate, err = r.date("earnings_date"); err != nil {
			return nil, err
		}
		if w.T0Date, err = r.date("t0_date"); err != nil {
			return nil, err
		}
		if w.T1Date, err = r.date("t1_date"); err != nil {
			return nil, err
		}
		if w.T2Date, err = r.date("t2_date"); err != nil {
			return nil, err
		}
		if w.T0, err = r.bar(w.Symbol, "t0", w.T0Date); err != nil {
			return nil, err
		}
		if w.T1, err = r.bar(w.Symbol, "t1", w.T1Date); err != nil {
			return nil, err
		}
		if w.T2, err = r.bar(w.Symbol, "t2", w.T2Date); err != nil {
			return nil, err
		}
		if w.R1, err = r.opt("R1"); err != nil {
			return nil, err
		}
		if w.Gap2, err = r.opt("Gap2"); err != nil {
			return nil, err
		}
		if w.AbsR1, err = r.opt("abs_R1"); err != nil {
			return nil, err
		}
		if w.AbsGap2, err = r.opt("abs_Gap2"); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// ReadSignals loads signals.csv. Anchor bars are reconstructed only
// to the extent the signal table records them (T1 close, T2 open),
// which is what the signal-level checks need.
func (rd *Reader) ReadSignals() ([]signals.Signal, error) {
	rows, err := rd.load("signals.csv")
	if err != nil {
		return nil, err
	}

	out := make([]signals.Signal, 0, len(rows))
	for _, r := range rows {
		s := signals.Signal{
			Classification:  signals.Classification(r.str("signal")),
			ExclusionReason: r.str("exclusion_reason"),
		}
		w := domain.EventWindow{
			Symbol:           r.str("symbol"),
			Session:          domain.Session(r.str("session")),
			EffectiveSession: domain.Session(r.str("effective_session")),
		}
		if w.EarningsDate, err = r.date("earnings_date"); err != nil {
			return nil, err
		}
		if w.T0Date, err = r.date("t0_date"); err != nil {
			return nil, err
		}
		if w.T1Date, err = r.date("t1_date"); err != nil {
			return nil, err
		}
		if w.T2Date, err = r.date("t2_date"); err != nil {
			return nil, err
		}
		if w.R1, err = r.opt("R1"); err != nil {
			return nil, err
		}
		if w.Gap2, err = r.opt("Gap2"); err != nil {
			return nil, err
		}
		if w.AbsR1, err = r.opt("abs_R1"); err != nil {
			return nil, err
		}
		if w.AbsGap2, err = r.opt("abs_Gap2"); err != nil {
			return nil, err
		}
		if t1Close, err := r.opt("t1_close"); err != nil {
			return nil, err
		} else if t1Close != nil {
			w.T1 = &domain.Bar{Symbol: w.Symbol, Date: w.T1Date, Close: *t1Close}
		}
		if t2Open, err := r.opt("t2_open"); err != nil {
			return nil, err
		} else if t2Open != nil {
			w.T2 = &domain.Bar{Symbol: w.Symbol, Date: w.T2Date, Open: *t2Open}
		}
		if s.TargetPrice, err = r.opt("target_price"); err != nil {
			return nil, err
		}
		if s.EntryPrice, err = r.opt("entry_price"); err != nil {
			return nil, err
		}
		s.Window = w
		out = append(out, s)
	}
	return out, nil
}

// ReadTrades loads trades.csv.
func (rd *Reader) ReadTrades() ([]sim.Trade, error) {
	rows, err := rd.load("trades.csv")
	if err != nil {
		return nil, err
	}

	out := make([]sim.Trade, 0, len(rows))
	for _, r := range rows {
		var t sim.Trade
		w := domain.EventWindow{Symbol: r.str("symbol")}
		if w.EarningsDate, err = r.date("earnings_date"); err != nil {
			return nil, err
		}

		t1Close, err := r.float("t1_close")
		if err != nil {
			return nil, err
		}
		w.T1 = &domain.Bar{Symbol: w.Symbol, Close: t1Close}

		t2High, err := r.float("t2_high")
		if err != nil {
			return nil, err
		}
		t2Low, err := r.float("t2_low")
		if err != nil {
			return nil, err
		}
		t2Close, err := r.float("t2_close")
		if err != nil {
			return nil, err
		}
		w.T2 = &domain.Bar{Symbol: w.Symbol, High: t2High, Low: t2Low, Close: t2Close}

		t.Signal = signals.Signal{
			Window:         w,
			Classification: signals.Classification(r.str("signal")),
		}
		if t.EntryPrice, err = r.float("entry_price"); err != nil {
			return nil, err
		}
		if t.TargetPrice, err = r.float("target_price"); err != nil {
			return nil, err
		}
		if t.ExitPrice, err = r.float("exit_price"); err != nil {
			return nil, err
		}
		if t.GrossReturn, err = r.float("gross_return"); err != nil {
			return nil, err
		}
		if t.CostBps, err = r.float("cost_bps"); err != nil {
			return nil, err
		}
		if t.NetReturn, err = r.float("net_return"); err != nil {
			return nil, err
		}
		t.HitTarget = r.str("hit_target") == "true"
		out = append(out, t)
	}
	return out, nil
}
