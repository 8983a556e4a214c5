package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipwatch/internal/alerting"
	"flipwatch/internal/scoring"
)

func history(scores ...float64) []scoring.ScoredRecord {
	out := make([]scoring.ScoredRecord, len(scores))
	for i, s := range scores {
		out[i] = scoring.ScoredRecord{RegionID: "94110", Composite: s}
	}
	return out
}

func newAnalyzer() *Analyzer {
	return New(alerting.DefaultThresholds())
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	_, err := newAnalyzer().Analyze("94110", nil)
	require.ErrorIs(t, err, ErrNoHistory)
}

func TestAnalyzeSinglePoint(t *testing.T) {
	an, err := newAnalyzer().Analyze("94110", history(55))
	require.NoError(t, err)

	assert.Nil(t, an.Trend, "trend undefined for one observation")
	assert.Nil(t, an.Momentum)
	assert.Equal(t, RiskUnknown, an.RiskTier)
	assert.Equal(t, "WATCH", an.CurrentTier)
	assert.Equal(t, "monitor: insufficient history", an.Recommendation)
}

func TestAnalyzeTrendAndMomentum(t *testing.T) {
	// Steady rise of +5 then an accelerating +15 step.
	an, err := newAnalyzer().Analyze("94110", history(50, 55, 60, 75))
	require.NoError(t, err)

	require.NotNil(t, an.Trend)
	assert.Greater(t, *an.Trend, 0.0)
	require.NotNil(t, an.Momentum)
	assert.InDelta(t, 10.0, *an.Momentum, 1e-9)
	assert.Equal(t, 4, an.Observations)
	assert.InDelta(t, 75.0, an.CurrentScore, 1e-9)
}

func TestAnalyzeFlatSeries(t *testing.T) {
	an, err := newAnalyzer().Analyze("94110", history(60, 60, 60, 60))
	require.NoError(t, err)

	require.NotNil(t, an.Trend)
	assert.InDelta(t, 0.0, *an.Trend, 1e-9)
	assert.Equal(t, RiskLow, an.RiskTier)
	assert.Equal(t, "monitor", an.Recommendation)
}

func TestRiskBuckets(t *testing.T) {
	a := newAnalyzer()

	low, err := a.Analyze("r", history(50, 51, 52, 53))
	require.NoError(t, err)
	assert.Equal(t, RiskLow, low.RiskTier)

	medium, err := a.Analyze("r", history(50, 53, 50, 53))
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, medium.RiskTier)

	high, err := a.Analyze("r", history(50, 70, 45, 72))
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, high.RiskTier)
	assert.Equal(t, "avoid: volatility too high", high.Recommendation)
}

func TestRecommendations(t *testing.T) {
	a := newAnalyzer()

	hot, err := a.Analyze("r", history(70, 75, 80, 85))
	require.NoError(t, err)
	assert.Equal(t, "HOT", hot.CurrentTier)
	assert.Equal(t, "pursue aggressively", hot.Recommendation)

	rising, err := a.Analyze("r", history(52, 53, 54, 55))
	require.NoError(t, err)
	assert.Equal(t, "pursue", rising.Recommendation)

	falling, err := a.Analyze("r", history(55, 52, 49, 46))
	require.NoError(t, err)
	assert.Equal(t, "NONE", falling.CurrentTier)
	assert.Equal(t, "avoid: declining market", falling.Recommendation)

	cooling, err := a.Analyze("r", history(72, 70, 69, 68))
	require.NoError(t, err)
	assert.Equal(t, "hold: losing momentum", cooling.Recommendation)
}
