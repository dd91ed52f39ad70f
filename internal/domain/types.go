package domain

import (
	"strings"
	"time"
)

// DateFormat is the canonical date layout for all tabular interchange.
const DateFormat = "2006-01-02"

// Session indicates when within the day an earnings announcement landed.
type Session string

const (
	SessionBMO     Session = "BMO"     // before market open
	SessionAMC     Session = "AMC"     // after market close
	SessionUnknown Session = "UNKNOWN" // provider did not report timing
)

// ParseSession normalizes provider timing strings to a Session.
// Anything unrecognized maps to UNKNOWN rather than an error: missing
// timing is an expected, reportable condition, not a data failure.
func ParseSession(s string) Session {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bmo", "before market open", "pre-market", "pre market":
		return SessionBMO
	case "amc", "after market close", "post-market", "post market", "after hours":
		return SessionAMC
	default:
		return SessionUnknown
	}
}

// Effective resolves UNKNOWN to AMC for date-math purposes. The original
// session value is preserved on the event so the classifier can still
// exclude unverified timings downstream.
func (s Session) Effective() Session {
	if s == SessionUnknown {
		return SessionAMC
	}
	return s
}

// Bar is one split-adjusted daily OHLCV bar.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// EarningsEvent is one historical earnings announcement.
type EarningsEvent struct {
	Symbol       string
	Date         time.Time
	EPSActual    *float64
	EPSEstimated *float64
	Session      Session
}

// Announced reports whether the event has actually occurred. Future
// calendar entries carry a null actual EPS and are filtered before
// window building.
func (e EarningsEvent) Announced() bool {
	return e.EPSActual != nil
}

// EventWindow joins one earnings event to the OHLCV bars at its three
// anchor trading days. Bar pointers are nil when the source data has no
// bar for that (symbol, date); the window still exists so coverage can
// be reported. Feature fields are populated by ComputeFeatures and are
// nil whenever an input price is missing.
type EventWindow struct {
	Symbol           string
	EarningsDate     time.Time
	Session          Session
	EffectiveSession Session

	T0Date time.Time
	T1Date time.Time
	T2Date time.Time

	T0 *Bar
	T1 *Bar
	T2 *Bar

	R1      *float64
	Gap2    *float64
	AbsR1   *float64
	AbsGap2 *float64
}

// Complete reports whether all three anchor bars are present.
func (w EventWindow) Complete() bool {
	return w.T0 != nil && w.T1 != nil && w.T2 != nil
}

// T1Close returns the close at T1, nil when the bar is missing.
// This is the simulated trade's target price by construction.
func (w EventWindow) T1Close() *float64 {
	if w.T1 == nil {
		return nil
	}
	v := w.T1.Close
	return &v
}

// T2Open returns the open at T2, nil when the bar is missing.
// This is the simulated trade's entry price by construction.
func (w EventWindow) T2Open() *float64 {
	if w.T2 == nil {
		return nil
	}
	v := w.T2.Open
	return &v
}

// CostScenario is a per-side transaction cost model in basis points.
type CostScenario struct {
	SpreadBpsEachSide     float64 `yaml:"spread_bps_each_side" validate:"gte=0"`
	SlippageBpsEachSide   float64 `yaml:"slippage_bps_each_side" validate:"gte=0"`
	CommissionBpsEachSide float64 `yaml:"commission_bps_each_side" validate:"gte=0"`
}

// RoundTripBps is the combined cost charged once per trade, covering
// both the entry and exit legs.
func (c CostScenario) RoundTripBps() float64 {
	return 2 * (c.SpreadBpsEachSide + c.SlippageBpsEachSide + c.CommissionBpsEachSide)
}

// Date truncates t to a UTC calendar date. All date arithmetic in the
// pipeline operates on these normalized values.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MustParseDate parses an ISO-8601 date, panicking on malformed input.
// Intended for literals in tests and fixtures.
func MustParseDate(s string) time.Time {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}
