package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipwatch/internal/market"
)

var testPeriod = market.Period{Year: 2025, Month: time.June}

func makeRecord(id string, hvi, hvi12, days, cut, ratio, bottom, all float64) market.MetricRecord {
	return market.MetricRecord{
		RegionID:              id,
		Period:                testPeriod,
		HomeValueIndex:        market.Currency(hvi),
		HomeValueIndex12moAgo: market.Currency(hvi12),
		BottomTierValueIndex:  market.Currency(bottom),
		AllHomesValueIndex:    market.Currency(all),
		DaysToPending:         market.Float(days),
		PctListingsPriceCut:   market.Float(cut),
		SaleToListRatio:       market.Float(ratio),
	}
}

func testPopulation() []market.MetricRecord {
	return []market.MetricRecord{
		makeRecord("94110", 850000, 800000, 12, 0.25, 1.02, 520000, 850000),
		makeRecord("30310", 310000, 295000, 25, 0.18, 0.98, 180000, 310000),
		makeRecord("44105", 120000, 122000, 48, 0.31, 0.93, 62000, 120000),
		makeRecord("78702", 560000, 505000, 18, 0.12, 1.05, 390000, 560000),
		makeRecord("63115", 95000, 90000, 60, 0.40, 0.90, 48000, 95000),
	}
}

func newTestEngine(t *testing.T, method NormMethod) *Engine {
	t.Helper()
	eng, err := NewEngine(Balanced, method, 1)
	require.NoError(t, err)
	return eng
}

func TestCompositeWithinBounds(t *testing.T) {
	for _, method := range []NormMethod{NormMinMax, NormRank} {
		eng := newTestEngine(t, method)
		recs := testPopulation()
		pop := eng.Fit(recs)
		for _, rec := range recs {
			scored, err := eng.Score(rec, pop)
			require.NoError(t, err, "method %s region %s", method, rec.RegionID)
			assert.GreaterOrEqual(t, scored.Composite, 0.0)
			assert.LessOrEqual(t, scored.Composite, 100.0)
			assert.Len(t, scored.Subscores, 5)
			for f, sub := range scored.Subscores {
				assert.GreaterOrEqual(t, sub, 0.0, "factor %s", f)
				assert.LessOrEqual(t, sub, 1.0, "factor %s", f)
			}
		}
	}
}

func TestScoringMonotonicity(t *testing.T) {
	eng := newTestEngine(t, NormMinMax)
	recs := testPopulation()
	pop := eng.Fit(recs)
	base, err := eng.Score(recs[1], pop)
	require.NoError(t, err)

	// Fewer days to pending is the good direction for velocity.
	improved := recs[1]
	improved.DaysToPending = market.Float(14)
	better, err := eng.Score(improved, pop)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, better.Composite, base.Composite)

	// More price cuts signals more seller motivation.
	improved = recs[1]
	improved.PctListingsPriceCut = market.Float(0.30)
	better, err = eng.Score(improved, pop)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, better.Composite, base.Composite)
}

func TestScoringDeterminism(t *testing.T) {
	eng := newTestEngine(t, NormRank)
	recs := testPopulation()
	pop := eng.Fit(recs)
	first, err := eng.Score(recs[0], pop)
	require.NoError(t, err)
	second, err := eng.Score(recs[0], pop)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A fresh fit over identical input must score identically too.
	again, err := eng.Score(recs[0], eng.Fit(testPopulation()))
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestMissingFactorRenormalization(t *testing.T) {
	eng := newTestEngine(t, NormMinMax)
	recs := testPopulation()

	// Drop ValueGap inputs for one region only.
	partial := recs[0]
	partial.BottomTierValueIndex.Valid = false
	recs[0] = partial

	pop := eng.Fit(recs)
	scored, err := eng.Score(partial, pop)
	require.NoError(t, err)

	_, ok := scored.Subscore(FactorValueGap)
	assert.False(t, ok, "value gap should be missing")
	assert.Len(t, scored.Subscores, 4)

	// Renormalized composite over the remaining 0.85 weight differs from
	// naively zero-filling the missing factor.
	zeroFilled := 0.0
	for f, sub := range scored.Subscores {
		zeroFilled += Balanced.Weight(f) * sub
	}
	zeroFilled *= 100
	assert.Greater(t, scored.Composite, zeroFilled)

	renorm := zeroFilled / 0.85
	assert.InDelta(t, renorm, scored.Composite, 1e-9)
}

func TestScoreNoUsableFactors(t *testing.T) {
	eng := newTestEngine(t, NormMinMax)
	recs := testPopulation()
	empty := market.MetricRecord{RegionID: "00000", Period: testPeriod}
	pop := eng.Fit(recs)

	_, err := eng.Score(empty, pop)
	require.ErrorIs(t, err, ErrNoUsableFactors)
}

func TestScorePeriodExcludesUnscoreable(t *testing.T) {
	eng, err := NewEngine(Balanced, NormMinMax, 4)
	require.NoError(t, err)

	recs := append(testPopulation(), market.MetricRecord{RegionID: "00000", Period: testPeriod})
	scored, skipped, err := eng.ScorePeriod(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, scored, 5)

	// Parallel fan-out keeps input order and matches sequential scoring.
	seq := newTestEngine(t, NormMinMax)
	seqScored, _, err := seq.ScorePeriod(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, seqScored, scored)
}

func TestDominantFactor(t *testing.T) {
	rec := ScoredRecord{
		RegionID:  "94110",
		Subscores: map[Factor]float64{FactorVelocity: 0.9, FactorAppreciation: 0.4},
	}
	f, points := DominantFactor(rec, Balanced)
	assert.Equal(t, FactorVelocity, f)
	// Equal weights 0.25 renormalize to 0.5 each: 100 * 0.5 * 0.9.
	assert.InDelta(t, 45.0, points, 1e-9)
}

func TestProfileValidation(t *testing.T) {
	for _, p := range []WeightProfile{Balanced, FastFlip, ValueAdd} {
		assert.NoError(t, p.Validate(), p.Name)
	}

	bad := WeightProfile{Name: "lopsided", Appreciation: 0.9, Velocity: 0.3}
	assert.Error(t, bad.Validate())

	negative := Balanced
	negative.Name = "negative"
	negative.Appreciation = -0.25
	negative.Velocity = 0.75
	assert.Error(t, negative.Validate())
}

func TestProfileSetResolve(t *testing.T) {
	custom := WeightProfile{Name: "cashflow", Appreciation: 0.1, Velocity: 0.2, Distress: 0.3, PricingPower: 0.2, ValueGap: 0.2}
	set, err := NewProfileSet(custom)
	require.NoError(t, err)

	p, err := set.Resolve("cashflow")
	require.NoError(t, err)
	assert.Equal(t, custom, p)

	_, err = set.Resolve("moonshot")
	assert.Error(t, err)

	_, err = NewProfileSet(WeightProfile{Name: "broken", Appreciation: 0.5})
	assert.Error(t, err)
}
