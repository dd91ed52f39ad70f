package domain

import "math"

// ComputeFeatures returns a widened copy of the window with the two
// return features and their magnitudes filled in:
//
//	R1   = close(T1) / close(T0) - 1   (the post-announcement move)
//	Gap2 = open(T2)  / close(T1) - 1   (the overnight gap into entry day)
//
// Absence propagates: if any input price is missing the corresponding
// feature stays nil. Missing data is never coerced to zero.
func ComputeFeatures(w EventWindow) EventWindow {
	if w.T0 != nil && w.T1 != nil && w.T0.Close != 0 {
		r1 := w.T1.Close/w.T0.Close - 1
		abs := math.Abs(r1)
		w.R1, w.AbsR1 = &r1, &abs
	}
	if w.T1 != nil && w.T2 != nil && w.T1.Close != 0 {
		gap2 := w.T2.Open/w.T1.Close - 1
		abs := math.Abs(gap2)
		w.Gap2, w.AbsGap2 = &gap2, &abs
	}
	return w
}
