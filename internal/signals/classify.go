// Package signals applies the earnings-reversal decision policy to
// feature-widened event windows.
package signals

import (
	"fmt"

	"earnrev/internal/domain"
)

// Classification is the seven-way outcome of the decision policy.
// Exactly one applies per window.
type Classification string

const (
	Long                   Classification = "LONG"
	Short                  Classification = "SHORT"
	NoTradeSmallR1         Classification = "NO_TRADE_SMALL_R1"
	NoTradeSmallGap        Classification = "NO_TRADE_SMALL_GAP"
	NoTradeSameDirection   Classification = "NO_TRADE_SAME_DIRECTION"
	ExcludedUnknownSession Classification = "EXCLUDED_UNKNOWN_SESSION"
	ExcludedNoData         Classification = "EXCLUDED_NO_DATA"
)

// Tradeable reports whether the classification opens a position.
func (c Classification) Tradeable() bool {
	return c == Long || c == Short
}

// Thresholds are the magnitude gates of the decision policy. Both are
// compared against absolute values; sign only matters for the
// LONG/SHORT opposition rules.
type Thresholds struct {
	R1Threshold float64
	Gap2MinAbs  float64
}

// Signal is one classified event window. TargetPrice and EntryPrice
// are recorded for every row regardless of classification (nil only
// when the underlying bar is missing), so the batch can be
// re-classified under different thresholds without recomputation.
type Signal struct {
	Window          domain.EventWindow
	Classification  Classification
	ExclusionReason string
	TargetPrice     *float64 // t1 close, by construction
	EntryPrice      *float64 // t2 open, by construction
}

// Classify evaluates the decision policy over one window. Rules are
// checked in precedence order and the first match wins:
//
//  1. EXCLUDED_NO_DATA         R1 or Gap2 missing
//  2. EXCLUDED_UNKNOWN_SESSION original session unverified
//  3. NO_TRADE_SMALL_R1        |R1| below threshold
//  4. NO_TRADE_SMALL_GAP       |Gap2| below minimum
//  5. LONG                     R1 > threshold and Gap2 < 0
//  6. SHORT                    R1 < -threshold and Gap2 > 0
//  7. NO_TRADE_SAME_DIRECTION  move and gap agree; no reversion thesis
//
// UNKNOWN-session windows arrive with anchors already resolved under
// effective AMC; the exclusion here is a reporting decision, not a
// date-math one.
func Classify(w domain.EventWindow, th Thresholds) Signal {
	sig := Signal{
		Window:      w,
		TargetPrice: w.T1Close(),
		EntryPrice:  w.T2Open(),
	}

	switch {
	case w.R1 == nil || w.Gap2 == nil:
		sig.Classification = ExcludedNoData
		sig.ExclusionReason = missingReason(w)
	case w.Session == domain.SessionUnknown:
		sig.Classification = ExcludedUnknownSession
		sig.ExclusionReason = "announcement timing unverified; cannot align T0/T1 reliably"
	case *w.AbsR1 < th.R1Threshold:
		sig.Classification = NoTradeSmallR1
		sig.ExclusionReason = fmt.Sprintf("|R1|=%.4f below threshold %.4f", *w.AbsR1, th.R1Threshold)
	case *w.AbsGap2 < th.Gap2MinAbs:
		sig.Classification = NoTradeSmallGap
		sig.ExclusionReason = fmt.Sprintf("|Gap2|=%.4f below minimum %.4f", *w.AbsGap2, th.Gap2MinAbs)
	case *w.R1 > th.R1Threshold && *w.Gap2 < 0:
		sig.Classification = Long
	case *w.R1 < -th.R1Threshold && *w.Gap2 > 0:
		sig.Classification = Short
	default:
		sig.Classification = NoTradeSameDirection
		sig.ExclusionReason = fmt.Sprintf("move and gap point the same way (R1=%.4f, Gap2=%.4f)", *w.R1, *w.Gap2)
	}

	return sig
}

// ClassifyAll classifies every window in order.
func ClassifyAll(windows []domain.EventWindow, th Thresholds) []Signal {
	out := make([]Signal, 0, len(windows))
	for _, w := range windows {
		out = append(out, Classify(w, th))
	}
	return out
}

func missingReason(w domain.EventWindow) string {
	switch {
	case w.R1 == nil && w.Gap2 == nil:
		return "R1 and Gap2 unavailable (missing anchor bars)"
	case w.R1 == nil:
		return "R1 unavailable (missing T0 or T1 bar)"
	default:
		return "Gap2 unavailable (missing T1 or T2 bar)"
	}
}
