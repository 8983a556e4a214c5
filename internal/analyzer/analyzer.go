package analyzer

import (
	"errors"
	"fmt"
	"math"

	"flipwatch/internal/alerting"
	"flipwatch/internal/scoring"
)

// ErrNoHistory marks an analysis request for a region with zero scored periods.
var ErrNoHistory = errors.New("analyzer: no score history for region")

// RiskTier buckets a region's score volatility.
type RiskTier string

const (
	RiskLow     RiskTier = "LOW"
	RiskMedium  RiskTier = "MEDIUM"
	RiskHigh    RiskTier = "HIGH"
	RiskUnknown RiskTier = "UNKNOWN"
)

// Volatility buckets on the standard deviation of period-over-period deltas.
const (
	lowVolatilityStddev    = 2.0
	mediumVolatilityStddev = 5.0
)

// Analysis is the deep breakdown for one region. Trend and Momentum are nil
// when the history is too short to define them; that is the reported NONE,
// not an error.
type Analysis struct {
	RegionID       string
	Observations   int
	CurrentScore   float64
	CurrentTier    string
	Trend          *float64
	Momentum       *float64
	RiskTier       RiskTier
	Recommendation string
}

// Analyzer derives trend, momentum, risk, and a recommendation from a
// region's score history.
type Analyzer struct {
	tiers alerting.Thresholds
}

// New constructs an analyzer using the run's alert tiering to label the
// current score.
func New(tiers alerting.Thresholds) *Analyzer {
	return &Analyzer{tiers: tiers}
}

// Analyze inspects a region's history, ordered oldest to newest. A single
// data point yields NONE trend and momentum and UNKNOWN risk.
func (a *Analyzer) Analyze(regionID string, history []scoring.ScoredRecord) (Analysis, error) {
	if len(history) == 0 {
		return Analysis{}, fmt.Errorf("%w: %s", ErrNoHistory, regionID)
	}

	current := history[len(history)-1]
	analysis := Analysis{
		RegionID:     regionID,
		Observations: len(history),
		CurrentScore: current.Composite,
		CurrentTier:  a.tierLabel(current.Composite),
		RiskTier:     RiskUnknown,
	}

	if len(history) >= 2 {
		slope := olsSlope(history)
		analysis.Trend = &slope
	}
	if len(history) >= 3 {
		n := len(history)
		last := history[n-1].Composite - history[n-2].Composite
		prev := history[n-2].Composite - history[n-3].Composite
		momentum := last - prev
		analysis.Momentum = &momentum

		analysis.RiskTier = riskFromDeltas(history)
	}

	analysis.Recommendation = a.recommend(analysis)
	return analysis, nil
}

func (a *Analyzer) tierLabel(score float64) string {
	switch {
	case score >= a.tiers.Hot:
		return string(alerting.TierHot)
	case score >= a.tiers.Warm:
		return string(alerting.TierWarm)
	case score >= a.tiers.Watch:
		return string(alerting.TierWatch)
	}
	return "NONE"
}

// olsSlope fits composite score against the observation index.
func olsSlope(history []scoring.ScoredRecord) float64 {
	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for i, rec := range history {
		x := float64(i)
		sumX += x
		sumY += rec.Composite
		sumXY += x * rec.Composite
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// riskFromDeltas buckets the Welford variance of consecutive score deltas.
func riskFromDeltas(history []scoring.ScoredRecord) RiskTier {
	var count int
	var mean, m2 float64
	for i := 1; i < len(history); i++ {
		delta := history[i].Composite - history[i-1].Composite
		count++
		d := delta - mean
		mean += d / float64(count)
		m2 += d * (delta - mean)
	}
	if count < 2 {
		return RiskUnknown
	}
	stddev := math.Sqrt(m2 / float64(count-1))
	switch {
	case stddev < lowVolatilityStddev:
		return RiskLow
	case stddev < mediumVolatilityStddev:
		return RiskMedium
	}
	return RiskHigh
}

// recommend is a small decision table over (trend sign, risk tier, current tier).
func (a *Analyzer) recommend(an Analysis) string {
	if an.RiskTier == RiskHigh {
		return "avoid: volatility too high"
	}
	if an.Trend == nil {
		return "monitor: insufficient history"
	}
	switch {
	case *an.Trend > 0 && an.CurrentTier == string(alerting.TierHot):
		return "pursue aggressively"
	case *an.Trend > 0 && an.RiskTier == RiskLow:
		return "pursue"
	case *an.Trend > 0:
		return "monitor closely"
	case *an.Trend < 0 && an.CurrentTier == "NONE":
		return "avoid: declining market"
	case *an.Trend < 0:
		return "hold: losing momentum"
	}
	return "monitor"
}
