// Package windows joins earnings events to OHLCV bars at their
// resolved anchor dates.
package windows

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"earnrev/internal/calendar"
	"earnrev/internal/domain"
)

// Stats tracks per-anchor data coverage across one batch. Missing bars
// are expected (delistings, shortened history) and are part of the
// product, not a failure.
type Stats struct {
	Total     int
	MissingT0 int
	MissingT1 int
	MissingT2 int
	Complete  int
}

// Builder resolves anchors through the calendar adapter and looks up
// the bar at each anchor.
type Builder struct {
	cal *calendar.Adapter
}

// NewBuilder returns a window builder over the given calendar.
func NewBuilder(cal *calendar.Adapter) *Builder {
	return &Builder{cal: cal}
}

// Build produces one window per event, in input order. Events never
// drop out for missing bars; the window carries nil bars so coverage
// statistics stay honest. After building, the whole batch is checked
// for anchor ordering: a violation there is a calendar defect, not a
// data-quality issue, and fails the batch.
func (b *Builder) Build(events []domain.EarningsEvent, bars *domain.BarTable) ([]domain.EventWindow, Stats, error) {
	out := make([]domain.EventWindow, 0, len(events))
	var stats Stats

	for _, ev := range events {
		effective := ev.Session.Effective()
		anchors := b.cal.ResolveAnchors(ev.Date, effective)

		w := domain.EventWindow{
			Symbol:           ev.Symbol,
			EarningsDate:     domain.Date(ev.Date),
			Session:          ev.Session,
			EffectiveSession: effective,
			T0Date:           anchors.T0,
			T1Date:           anchors.T1,
			T2Date:           anchors.T2,
		}

		if bar, ok := bars.Lookup(ev.Symbol, anchors.T0); ok {
			w.T0 = &bar
		} else {
			stats.MissingT0++
		}
		if bar, ok := bars.Lookup(ev.Symbol, anchors.T1); ok {
			w.T1 = &bar
		} else {
			stats.MissingT1++
		}
		if bar, ok := bars.Lookup(ev.Symbol, anchors.T2); ok {
			w.T2 = &bar
		} else {
			stats.MissingT2++
		}

		if w.Complete() {
			stats.Complete++
		}
		stats.Total++
		out = append(out, w)
	}

	if err := validateOrdering(out); err != nil {
		return nil, stats, err
	}

	log.Info().
		Int("windows", stats.Total).
		Int("complete", stats.Complete).
		Int("missing_t0", stats.MissingT0).
		Int("missing_t1", stats.MissingT1).
		Int("missing_t2", stats.MissingT2).
		Msg("event windows built")

	return out, stats, nil
}

// validateOrdering enforces t0 <= t1 < t2 over the batch. Downstream
// return math is meaningless if this does not hold.
func validateOrdering(ws []domain.EventWindow) error {
	for _, w := range ws {
		if w.T0Date.After(w.T1Date) || !w.T1Date.Before(w.T2Date) {
			return fmt.Errorf("anchor ordering violated for %s %s: t0=%s t1=%s t2=%s",
				w.Symbol, w.EarningsDate.Format(domain.DateFormat),
				w.T0Date.Format(domain.DateFormat),
				w.T1Date.Format(domain.DateFormat),
				w.T2Date.Format(domain.DateFormat))
		}
	}
	return nil
}

// WithFeatures returns a new slice with R1/Gap2 and magnitudes
// computed for every window. Input windows are not modified.
func WithFeatures(ws []domain.EventWindow) []domain.EventWindow {
	out := make([]domain.EventWindow, 0, len(ws))
	for _, w := range ws {
		out = append(out, domain.ComputeFeatures(w))
	}
	return out
}
