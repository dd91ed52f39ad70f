package calendar

import (
	"time"

	"github.com/rs/zerolog/log"

	"earnrev/internal/domain"
	"earnrev/internal/metrics"
)

// Anchors are the three trading days the strategy keys off for one
// earnings event: the last clean close before the news (T0), the first
// full reaction session (T1), and the entry session (T2).
type Anchors struct {
	T0 time.Time
	T1 time.Time
	T2 time.Time
}

// Adapter wraps a trading-day Oracle and degrades to a weekday-only
// approximation whenever the oracle cannot cover a queried date. The
// degraded path is best-effort by design: it is counted for
// diagnostics but never fails the batch.
type Adapter struct {
	oracle   Oracle
	fallback WeekdayOracle
	degraded int
}

// NewAdapter wraps the given oracle.
func NewAdapter(oracle Oracle) *Adapter {
	return &Adapter{oracle: oracle}
}

// Degradations returns how many oracle queries fell back to the
// weekday approximation.
func (a *Adapter) Degradations() int {
	return a.degraded
}

func (a *Adapter) degrade(d time.Time) {
	a.degraded++
	metrics.CalendarDegradations.Inc()
	log.Debug().Str("date", d.Format(domain.DateFormat)).
		Msg("calendar query outside oracle coverage, using weekday approximation")
}

// IsTradingDay reports whether d is an exchange session.
func (a *Adapter) IsTradingDay(d time.Time) bool {
	trading, err := a.oracle.IsTradingDay(d)
	if err != nil {
		a.degrade(d)
		trading, _ = a.fallback.IsTradingDay(d)
	}
	return trading
}

// NextTradingDay returns the n-th trading session strictly after d.
func (a *Adapter) NextTradingDay(d time.Time, n int) time.Time {
	cur := domain.Date(d)
	for i := 0; i < n; i++ {
		next, err := a.oracle.NextSession(cur)
		if err != nil {
			a.degrade(cur)
			next, _ = a.fallback.NextSession(cur)
		}
		cur = next
	}
	return cur
}

// PrevTradingDay returns the n-th trading session strictly before d.
func (a *Adapter) PrevTradingDay(d time.Time, n int) time.Time {
	cur := domain.Date(d)
	for i := 0; i < n; i++ {
		prev, err := a.oracle.PrevSession(cur)
		if err != nil {
			a.degrade(cur)
			prev, _ = a.fallback.PrevSession(cur)
		}
		cur = prev
	}
	return cur
}

// ResolveAnchors maps an earnings date and its effective session to
// T0/T1/T2. The BMO and AMC branches differ because the session that
// represents "day of announcement" shifts by one depending on whether
// the news landed before the open or after the close:
//
//	AMC: T0 is the announcement day itself (the market closed before
//	     the news), T1 the next session, T2 the one after.
//	BMO: the announcement day is already the reaction day, so T1 is
//	     the earnings date (or the next session when it is not a
//	     trading day) and T0 the session before the earnings date.
//
// Callers resolve UNKNOWN to AMC before calling; see Session.Effective.
func (a *Adapter) ResolveAnchors(earningsDate time.Time, effective domain.Session) Anchors {
	ed := domain.Date(earningsDate)

	var t0, t1 time.Time
	switch effective {
	case domain.SessionBMO:
		if a.IsTradingDay(ed) {
			t1 = ed
		} else {
			t1 = a.NextTradingDay(ed, 1)
		}
		t0 = a.PrevTradingDay(ed, 1)
	default: // AMC
		if a.IsTradingDay(ed) {
			t0 = ed
		} else {
			t0 = a.PrevTradingDay(ed, 1)
		}
		t1 = a.NextTradingDay(t0, 1)
	}

	return Anchors{T0: t0, T1: t1, T2: a.NextTradingDay(t1, 1)}
}
