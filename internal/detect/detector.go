package detect

import (
	"fmt"

	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

// Status classifies a region's period-over-period score movement.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusImproved  Status = "IMPROVED"
	StatusDegraded  Status = "DEGRADED"
	StatusUnchanged Status = "UNCHANGED"
)

// Thresholds configure the score deltas that count as movement. Both are
// expressed as positive point magnitudes and compared inclusively: a delta
// exactly at the threshold qualifies.
type Thresholds struct {
	Improvement float64
	Degradation float64
}

// DefaultThresholds mirror the standard ±3.0 point sensitivity.
func DefaultThresholds() Thresholds {
	return Thresholds{Improvement: 3.0, Degradation: 3.0}
}

// Validate rejects non-positive thresholds.
func (t Thresholds) Validate() error {
	if t.Improvement <= 0 {
		return fmt.Errorf("improvement threshold must be positive, got %.2f", t.Improvement)
	}
	if t.Degradation <= 0 {
		return fmt.Errorf("degradation threshold must be positive, got %.2f", t.Degradation)
	}
	return nil
}

// Result is one region's classification for a period.
type Result struct {
	RegionID   string
	Period     market.Period
	Status     Status
	ScoreDelta float64
}

// Detector compares one period's scored table against the previous period's.
type Detector struct {
	thresholds Thresholds
}

// New constructs a detector; thresholds must already be validated.
func New(thresholds Thresholds) *Detector {
	return &Detector{thresholds: thresholds}
}

// Detect classifies every current record in one pass. A region absent from
// previous is NEW with a zero delta regardless of score. Output order follows
// the input; consumers re-sort by score.
func (d *Detector) Detect(current []scoring.ScoredRecord, previous map[string]scoring.ScoredRecord) []Result {
	results := make([]Result, 0, len(current))
	for _, rec := range current {
		prev, ok := previous[rec.RegionID]
		if !ok {
			results = append(results, Result{
				RegionID: rec.RegionID,
				Period:   rec.Period,
				Status:   StatusNew,
			})
			continue
		}

		delta := rec.Composite - prev.Composite
		status := StatusUnchanged
		switch {
		case delta >= d.thresholds.Improvement:
			status = StatusImproved
		case delta <= -d.thresholds.Degradation:
			status = StatusDegraded
		}
		results = append(results, Result{
			RegionID:   rec.RegionID,
			Period:     rec.Period,
			Status:     status,
			ScoreDelta: delta,
		})
	}
	return results
}
