package pipeline

import (
	"math"

	"earnrev/internal/domain"
	"earnrev/internal/signals"
)

// Coverage summarizes feature availability and classification mix for
// one batch. It feeds the run log and the QA report context.
type Coverage struct {
	ValidR1         int                            `json:"valid_r1"`
	ValidGap2       int                            `json:"valid_gap2"`
	R1Mean          float64                        `json:"r1_mean"`
	R1Std           float64                        `json:"r1_std"`
	Gap2Mean        float64                        `json:"gap2_mean"`
	Gap2Std         float64                        `json:"gap2_std"`
	Classifications map[signals.Classification]int `json:"classifications"`
}

// ComputeCoverage derives coverage statistics from the widened
// windows and their classifications.
func ComputeCoverage(ws []domain.EventWindow, sigs []signals.Signal) Coverage {
	cov := Coverage{Classifications: make(map[signals.Classification]int)}

	var r1s, gap2s []float64
	for _, w := range ws {
		if w.R1 != nil {
			r1s = append(r1s, *w.R1)
		}
		if w.Gap2 != nil {
			gap2s = append(gap2s, *w.Gap2)
		}
	}
	cov.ValidR1 = len(r1s)
	cov.ValidGap2 = len(gap2s)
	cov.R1Mean, cov.R1Std = meanStd(r1s)
	cov.Gap2Mean, cov.Gap2Std = meanStd(gap2s)

	for _, s := range sigs {
		cov.Classifications[s.Classification]++
	}
	return cov
}

// meanStd returns the sample mean and standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
