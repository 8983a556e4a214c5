package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func scoredFixture() []ScoredRecord {
	return []ScoredRecord{
		{RegionID: "30310", State: "GA", Metro: "Atlanta", Composite: 71.0, CurrentValue: decimal.NewFromInt(310000)},
		{RegionID: "94110", State: "CA", Metro: "San Francisco", Composite: 82.4, CurrentValue: decimal.NewFromInt(850000)},
		{RegionID: "44105", State: "OH", Metro: "Cleveland", Composite: 71.0, CurrentValue: decimal.NewFromInt(120000)},
		{RegionID: "63115", State: "MO", Metro: "St. Louis", Composite: 45.2, CurrentValue: decimal.NewFromInt(95000)},
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	records := scoredFixture()
	Rank(records)

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.RegionID
	}
	// Equal 71.0 composites order by ascending ZIP.
	assert.Equal(t, []string{"94110", "30310", "44105", "63115"}, ids)
}

func TestFilterBounds(t *testing.T) {
	records := scoredFixture()
	Rank(records)

	filtered := Filter(records, FilterOptions{MinScore: 50})
	assert.Len(t, filtered, 3)

	filtered = Filter(records, FilterOptions{
		MinScore: 50,
		MinValue: decimal.NewFromInt(100000),
		MaxValue: decimal.NewFromInt(500000),
	})
	assert.Len(t, filtered, 2)
	for _, r := range filtered {
		assert.GreaterOrEqual(t, r.Composite, 50.0)
	}

	assert.Len(t, TopN(filtered, 1), 1)
	assert.Len(t, TopN(filtered, 10), 2)
}

func TestSummarizeByGeography(t *testing.T) {
	records := scoredFixture()
	records = append(records, ScoredRecord{RegionID: "30311", State: "GA", Metro: "Atlanta", Composite: 61.0})

	byState := SummarizeByGeography(records, GeoState)
	assert.Len(t, byState, 4)

	var ga *GeoSummary
	for i := range byState {
		if byState[i].Key == "GA" {
			ga = &byState[i]
		}
	}
	if assert.NotNil(t, ga) {
		assert.Equal(t, 2, ga.Regions)
		assert.InDelta(t, 66.0, ga.MeanScore, 1e-9)
		assert.InDelta(t, 71.0, ga.MaxScore, 1e-9)
	}

	unknown := SummarizeByGeography([]ScoredRecord{{RegionID: "1", Composite: 10}}, GeoMetro)
	assert.Equal(t, "(unknown)", unknown[0].Key)
}
