package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

var period = market.Period{Year: 2025, Month: time.July}

func scored(id string, composite float64) scoring.ScoredRecord {
	return scoring.ScoredRecord{RegionID: id, Period: period, Composite: composite}
}

func TestDetectClassification(t *testing.T) {
	det := New(DefaultThresholds())

	current := []scoring.ScoredRecord{
		scored("94110", 55.0), // no prior record
		scored("30310", 74.0), // +4.0
		scored("44105", 58.0), // -5.0
		scored("78702", 66.5), // +1.5
	}
	previous := map[string]scoring.ScoredRecord{
		"30310": scored("30310", 70.0),
		"44105": scored("44105", 63.0),
		"78702": scored("78702", 65.0),
	}

	results := det.Detect(current, previous)
	require.Len(t, results, 4)

	byRegion := make(map[string]Result)
	for _, r := range results {
		byRegion[r.RegionID] = r
	}

	assert.Equal(t, StatusNew, byRegion["94110"].Status)
	assert.Zero(t, byRegion["94110"].ScoreDelta)
	assert.Equal(t, StatusImproved, byRegion["30310"].Status)
	assert.InDelta(t, 4.0, byRegion["30310"].ScoreDelta, 1e-9)
	assert.Equal(t, StatusDegraded, byRegion["44105"].Status)
	assert.Equal(t, StatusUnchanged, byRegion["78702"].Status)
}

func TestDetectNewRegardlessOfScore(t *testing.T) {
	det := New(DefaultThresholds())
	results := det.Detect([]scoring.ScoredRecord{scored("99999", 1.0)}, map[string]scoring.ScoredRecord{})
	require.Len(t, results, 1)
	assert.Equal(t, StatusNew, results[0].Status)
}

func TestDetectInclusiveBoundary(t *testing.T) {
	det := New(Thresholds{Improvement: 3.0, Degradation: 3.0})
	previous := map[string]scoring.ScoredRecord{
		"up":   scored("up", 50.0),
		"down": scored("down", 50.0),
	}
	current := []scoring.ScoredRecord{
		scored("up", 53.0),   // delta exactly +3.0
		scored("down", 47.0), // delta exactly -3.0
	}

	results := det.Detect(current, previous)
	byRegion := map[string]Status{}
	for _, r := range results {
		byRegion[r.RegionID] = r.Status
	}
	assert.Equal(t, StatusImproved, byRegion["up"])
	assert.Equal(t, StatusDegraded, byRegion["down"])
}

func TestThresholdValidation(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Improvement: 0, Degradation: 3}.Validate())
	assert.Error(t, Thresholds{Improvement: 3, Degradation: -1}.Validate())
}
