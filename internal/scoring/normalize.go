package scoring

import (
	"fmt"
	"sort"
)

// NormMethod selects how raw factor signals are scaled onto [0,1] relative to
// the full cross-section of regions in the same period.
type NormMethod string

const (
	// NormMinMax scales linearly between the period's min and max.
	NormMinMax NormMethod = "minmax"
	// NormRank scales by percentile rank within the period.
	NormRank NormMethod = "rank"
)

// ParseNormMethod validates a configured normalization method name.
func ParseNormMethod(s string) (NormMethod, error) {
	switch NormMethod(s) {
	case NormMinMax:
		return NormMinMax, nil
	case NormRank:
		return NormRank, nil
	}
	return "", fmt.Errorf("unknown normalization method %q (minmax or rank)", s)
}

// scale maps one factor's raw signal onto [0,1] for a fitted population.
type scale interface {
	apply(v float64) float64
}

type minMaxScale struct {
	min, max float64
}

func (s minMaxScale) apply(v float64) float64 {
	if s.max <= s.min {
		// Degenerate cross-section: every region carries the same signal.
		return 0.5
	}
	n := (v - s.min) / (s.max - s.min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

type rankScale struct {
	sorted []float64
}

func (s rankScale) apply(v float64) float64 {
	n := len(s.sorted)
	if n < 2 {
		return 0.5
	}
	lo := sort.SearchFloat64s(s.sorted, v)
	hi := sort.Search(n, func(i int) bool { return s.sorted[i] > v })
	// Mid-rank for ties keeps equal signals at equal percentiles.
	return (float64(lo) + float64(hi)) / (2 * float64(n))
}

// fitScale builds a scale for one factor from the period's raw signals.
func fitScale(values []float64, method NormMethod) scale {
	switch method {
	case NormRank:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		return rankScale{sorted: sorted}
	default:
		min, max := values[0], values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		return minMaxScale{min: min, max: max}
	}
}
