package alerting

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipwatch/internal/detect"
	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

var period = market.Period{Year: 2025, Month: time.March}

func newEngine() *Engine {
	return NewEngine(DefaultThresholds(), scoring.Balanced, zerolog.Nop())
}

func detection(id string, status detect.Status, delta float64) detect.Result {
	return detect.Result{RegionID: id, Period: period, Status: status, ScoreDelta: delta}
}

func scoredMap(entries map[string]float64) map[string]scoring.ScoredRecord {
	out := make(map[string]scoring.ScoredRecord, len(entries))
	for id, composite := range entries {
		out[id] = scoring.ScoredRecord{
			RegionID:  id,
			Period:    period,
			Composite: composite,
			Strategy:  "balanced",
			Subscores: map[scoring.Factor]float64{
				scoring.FactorVelocity:     composite / 100,
				scoring.FactorAppreciation: composite / 200,
			},
		}
	}
	return out
}

func TestTierAssignmentTopDown(t *testing.T) {
	eng := newEngine()
	scores := scoredMap(map[string]float64{
		"hot":       85,
		"warm":      70,
		"watch":     55,
		"unchanged": 55,
		"cold":      40,
	})
	detections := []detect.Result{
		detection("hot", detect.StatusUnchanged, 0),
		detection("warm", detect.StatusDegraded, -5),
		detection("watch", detect.StatusNew, 0),
		detection("unchanged", detect.StatusUnchanged, 1),
		detection("cold", detect.StatusNew, 0),
	}

	alerts, fired := eng.Generate(detections, scores, FiredSet{}, 1)
	require.Len(t, alerts, 3)

	tiers := map[string]Tier{}
	for _, a := range alerts {
		tiers[a.RegionID] = a.Tier
	}
	assert.Equal(t, TierHot, tiers["hot"])
	assert.Equal(t, TierWarm, tiers["warm"])
	assert.Equal(t, TierWatch, tiers["watch"])
	// WATCH needs NEW or IMPROVED; UNCHANGED at 55 stays silent.
	assert.NotContains(t, tiers, "unchanged")
	assert.NotContains(t, tiers, "cold")
	assert.Len(t, fired, 3)
}

func TestWouldFireMatchesGenerate(t *testing.T) {
	eng := newEngine()
	scores := scoredMap(map[string]float64{
		"hot":   85,
		"watch": 55,
		"cold":  40,
	})

	tier, ok := eng.WouldFire(detection("hot", detect.StatusUnchanged, 0), scores["hot"], FiredSet{})
	require.True(t, ok)
	assert.Equal(t, TierHot, tier)

	tier, ok = eng.WouldFire(detection("watch", detect.StatusNew, 0), scores["watch"], FiredSet{})
	require.True(t, ok)
	assert.Equal(t, TierWatch, tier)

	_, ok = eng.WouldFire(detection("cold", detect.StatusNew, 0), scores["cold"], FiredSet{})
	assert.False(t, ok)

	// Already fired at HOT: neither a repeat nor a lower tier would fire.
	fired := FiredSet{FiredKey{RegionID: "hot", Tier: TierHot}: {}}
	_, ok = eng.WouldFire(detection("hot", detect.StatusUnchanged, 0), scores["hot"], fired)
	assert.False(t, ok)

	// Fired at WATCH before: a strict upgrade still would.
	fired = FiredSet{FiredKey{RegionID: "hot", Tier: TierWatch}: {}}
	tier, ok = eng.WouldFire(detection("hot", detect.StatusUnchanged, 0), scores["hot"], fired)
	require.True(t, ok)
	assert.Equal(t, TierHot, tier)
}

func TestDedupSuppressesSameTier(t *testing.T) {
	eng := newEngine()
	scores := scoredMap(map[string]float64{"94110": 82})
	detections := []detect.Result{detection("94110", detect.StatusUnchanged, 0)}

	alerts, fired := eng.Generate(detections, scores, FiredSet{}, 1)
	require.Len(t, alerts, 1)

	again, firedAgain := eng.Generate(detections, scores, fired, 2)
	assert.Empty(t, again)
	assert.Equal(t, fired, firedAgain)
}

func TestUpgradeRefires(t *testing.T) {
	eng := newEngine()

	// Step 1: WATCH on a new region at 55.
	alerts, fired := eng.Generate(
		[]detect.Result{detection("94110", detect.StatusNew, 0)},
		scoredMap(map[string]float64{"94110": 55}),
		FiredSet{}, 1)
	require.Len(t, alerts, 1)
	assert.Equal(t, TierWatch, alerts[0].Tier)

	// Step 2: score jumps to 82, HOT fires despite the earlier WATCH.
	alerts, fired = eng.Generate(
		[]detect.Result{detection("94110", detect.StatusImproved, 27)},
		scoredMap(map[string]float64{"94110": 82}),
		fired, 2)
	require.Len(t, alerts, 1)
	assert.Equal(t, TierHot, alerts[0].Tier)
	assert.Equal(t, 2, alerts[0].Step)

	// Step 3: unchanged at 82, nothing new fires.
	alerts, _ = eng.Generate(
		[]detect.Result{detection("94110", detect.StatusUnchanged, 0)},
		scoredMap(map[string]float64{"94110": 82}),
		fired, 3)
	assert.Empty(t, alerts)
}

func TestNoDowngradeAlerts(t *testing.T) {
	eng := newEngine()

	_, fired := eng.Generate(
		[]detect.Result{detection("94110", detect.StatusNew, 0)},
		scoredMap(map[string]float64{"94110": 85}),
		FiredSet{}, 1)

	// Falling back into WARM territory after a HOT alert stays silent.
	alerts, _ := eng.Generate(
		[]detect.Result{detection("94110", detect.StatusDegraded, -15)},
		scoredMap(map[string]float64{"94110": 70}),
		fired, 2)
	assert.Empty(t, alerts)
}

func TestAlertIDDeterministic(t *testing.T) {
	a := AlertID("94110", period, TierHot)
	b := AlertID("94110", period, TierHot)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, AlertID("94110", period, TierWarm))
	assert.NotEqual(t, a, AlertID("94110", period.Next(), TierHot))
	assert.Len(t, a, 16)
}

func TestReasonNamesDominantFactor(t *testing.T) {
	eng := newEngine()
	alerts, _ := eng.Generate(
		[]detect.Result{detection("94110", detect.StatusNew, 0)},
		scoredMap(map[string]float64{"94110": 90}),
		FiredSet{}, 1)
	require.Len(t, alerts, 1)
	assert.Equal(t, scoring.FactorVelocity, alerts[0].ReasonFactor)
	assert.Contains(t, alerts[0].Reason, "velocity")
	assert.Contains(t, alerts[0].Reason, "balanced")
}

func TestGenerateDoesNotMutateInputState(t *testing.T) {
	eng := newEngine()
	fired := FiredSet{}
	_, updated := eng.Generate(
		[]detect.Result{detection("94110", detect.StatusNew, 0)},
		scoredMap(map[string]float64{"94110": 85}),
		fired, 1)
	assert.Empty(t, fired)
	assert.Len(t, updated, 1)
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Hot: 65, Warm: 65, Watch: 50}.Validate())
	assert.Error(t, Thresholds{Hot: 80, Warm: 65, Watch: 70}.Validate())
	assert.Error(t, Thresholds{Hot: 3, Warm: 2, Watch: 0}.Validate())
}
