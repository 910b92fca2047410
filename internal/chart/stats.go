package chart

import (
	"math"
	"sort"
)

// Summary is the five-number summary of a sample.
type Summary struct {
	Min, Q1, Median, Q3, Max float64
	N                        int
}

// Summarize computes min, quartiles (linear interpolation) and max.
func Summarize(values []float64) Summary {
	sample := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sample = append(sample, v)
		}
	}
	if len(sample) == 0 {
		return Summary{}
	}
	sort.Float64s(sample)
	return Summary{
		Min:    sample[0],
		Q1:     quantile(sample, 0.25),
		Median: quantile(sample, 0.5),
		Q3:     quantile(sample, 0.75),
		Max:    sample[len(sample)-1],
		N:      len(sample),
	}
}

// quantile expects a sorted, non-empty sample.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Segments splits the summary into stacked bar lengths:
// min, q1-min, median-q1, q3-median, max-q3.
func (s Summary) Segments() [5]float64 {
	return [5]float64{s.Min, s.Q1 - s.Min, s.Median - s.Q1, s.Q3 - s.Median, s.Max - s.Q3}
}
