package scoring

import (
	"flipwatch/internal/market"
)

// Factor identifies one of the five scoring inputs.
type Factor string

const (
	FactorAppreciation Factor = "appreciation"
	FactorVelocity     Factor = "velocity"
	FactorDistress     Factor = "distress"
	FactorPricingPower Factor = "pricing_power"
	FactorValueGap     Factor = "value_gap"
)

// AllFactors lists factors in canonical order. Iteration and tie-breaking
// always follow this order so results stay deterministic.
var AllFactors = []Factor{
	FactorAppreciation,
	FactorVelocity,
	FactorDistress,
	FactorPricingPower,
	FactorValueGap,
}

// rawSignal extracts a factor's raw signal from a record, oriented so that a
// larger value always means a better flip opportunity. The bool is false when
// the record is missing the inputs the factor needs.
func rawSignal(rec market.MetricRecord, f Factor) (float64, bool) {
	switch f {
	case FactorAppreciation:
		if !rec.HomeValueIndex.Valid || !rec.HomeValueIndex12moAgo.Valid {
			return 0, false
		}
		old := rec.HomeValueIndex12moAgo.Decimal.InexactFloat64()
		cur := rec.HomeValueIndex.Decimal.InexactFloat64()
		if old <= 0 {
			return 0, false
		}
		return (cur - old) / old, true
	case FactorVelocity:
		if rec.DaysToPending == nil || *rec.DaysToPending < 0 {
			return 0, false
		}
		// Negated so fewer days to pending ranks higher after scaling.
		return -*rec.DaysToPending, true
	case FactorDistress:
		if rec.PctListingsPriceCut == nil {
			return 0, false
		}
		return *rec.PctListingsPriceCut, true
	case FactorPricingPower:
		if rec.SaleToListRatio == nil {
			return 0, false
		}
		return *rec.SaleToListRatio, true
	case FactorValueGap:
		if !rec.AllHomesValueIndex.Valid || !rec.BottomTierValueIndex.Valid {
			return 0, false
		}
		all := rec.AllHomesValueIndex.Decimal.InexactFloat64()
		bottom := rec.BottomTierValueIndex.Decimal.InexactFloat64()
		if all <= 0 {
			return 0, false
		}
		return (all - bottom) / all, true
	}
	return 0, false
}
