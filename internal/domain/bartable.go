package domain

import (
	"sort"
	"time"
)

type barKey struct {
	symbol string
	date   time.Time
}

// BarTable is the read-only (symbol, date) -> Bar lookup used by the
// window builder. It is populated once during ingestion and never
// mutated afterward, so concurrent readers need no synchronization.
type BarTable struct {
	bars map[barKey]Bar
}

// NewBarTable builds a table from raw bars, deduplicating by
// (symbol, date). The first occurrence wins, the same rule the ingest
// client applies when the provider serves a duplicated row.
func NewBarTable(bars []Bar) *BarTable {
	t := &BarTable{bars: make(map[barKey]Bar, len(bars))}
	for _, b := range bars {
		key := barKey{b.Symbol, Date(b.Date)}
		if _, ok := t.bars[key]; ok {
			continue
		}
		t.bars[key] = b
	}
	return t
}

// Lookup returns the bar for (symbol, date), if present.
func (t *BarTable) Lookup(symbol string, date time.Time) (Bar, bool) {
	b, ok := t.bars[barKey{symbol, Date(date)}]
	return b, ok
}

// Len returns the number of distinct (symbol, date) bars.
func (t *BarTable) Len() int {
	return len(t.bars)
}

// Rows returns all bars ordered by symbol then date, for export.
func (t *BarTable) Rows() []Bar {
	rows := make([]Bar, 0, len(t.bars))
	for _, b := range t.bars {
		rows = append(rows, b)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}
