package alerting

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"flipwatch/internal/detect"
	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

// Tier is an alert severity bucket, HOT > WARM > WATCH.
type Tier string

const (
	TierHot   Tier = "HOT"
	TierWarm  Tier = "WARM"
	TierWatch Tier = "WATCH"
)

// rank orders tiers by urgency for upgrade comparisons.
func (t Tier) rank() int {
	switch t {
	case TierHot:
		return 3
	case TierWarm:
		return 2
	case TierWatch:
		return 1
	}
	return 0
}

// Thresholds are the composite-score floors per tier.
type Thresholds struct {
	Hot   float64
	Warm  float64
	Watch float64
}

// DefaultThresholds mirror the standard 80/65/50 tiering.
func DefaultThresholds() Thresholds {
	return Thresholds{Hot: 80, Warm: 65, Watch: 50}
}

// Validate enforces strictly monotonic tiering.
func (t Thresholds) Validate() error {
	if !(t.Hot > t.Warm && t.Warm > t.Watch) {
		return fmt.Errorf("alert thresholds must satisfy hot > warm > watch, got %.1f/%.1f/%.1f",
			t.Hot, t.Warm, t.Watch)
	}
	if t.Watch <= 0 {
		return fmt.Errorf("watch threshold must be positive, got %.1f", t.Watch)
	}
	return nil
}

// Alert is one emitted opportunity notice. The ID is a deterministic hash of
// (region, period, tier) so re-running a step reproduces identical alerts.
type Alert struct {
	ID           string
	RegionID     string
	Period       market.Period
	Tier         Tier
	Composite    float64
	Status       detect.Status
	ReasonFactor scoring.Factor
	Reason       string
	Step         int
}

// AlertID derives the stable identifier for an alert.
func AlertID(regionID string, period market.Period, tier Tier) string {
	sum := sha256.Sum256([]byte(regionID + "|" + period.String() + "|" + string(tier)))
	return hex.EncodeToString(sum[:8])
}

// FiredKey identifies a (region, tier) pair already alerted during a run.
type FiredKey struct {
	RegionID string
	Tier     Tier
}

// FiredSet is the dedup state carried across steps. It only suppresses
// re-emission; past alerts stay in the log untouched.
type FiredSet map[FiredKey]struct{}

// Clone copies the set so a step can be re-run without mutating its input.
func (s FiredSet) Clone() FiredSet {
	out := make(FiredSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// highestFired returns the rank of the most urgent tier already fired for a
// region, 0 when none.
func (s FiredSet) highestFired(regionID string) int {
	best := 0
	for _, tier := range []Tier{TierHot, TierWarm, TierWatch} {
		if _, ok := s[FiredKey{RegionID: regionID, Tier: tier}]; ok && tier.rank() > best {
			best = tier.rank()
		}
	}
	return best
}

// Engine maps detections plus composite scores onto tiered alerts.
type Engine struct {
	thresholds Thresholds
	profile    scoring.WeightProfile
	logger     zerolog.Logger
}

// NewEngine constructs the alert engine; thresholds are validated at config
// load, before any step runs.
func NewEngine(thresholds Thresholds, profile scoring.WeightProfile, logger zerolog.Logger) *Engine {
	return &Engine{
		thresholds: thresholds,
		profile:    profile,
		logger:     logger.With().Str("component", "alert_engine").Logger(),
	}
}

// assignTier evaluates tiers top-down, first match wins. WATCH additionally
// requires the region to be newly qualifying (NEW or IMPROVED).
func (e *Engine) assignTier(composite float64, status detect.Status) (Tier, bool) {
	switch {
	case composite >= e.thresholds.Hot:
		return TierHot, true
	case composite >= e.thresholds.Warm:
		return TierWarm, true
	case composite >= e.thresholds.Watch && (status == detect.StatusNew || status == detect.StatusImproved):
		return TierWatch, true
	}
	return "", false
}

// WouldFire reports the tier a detection would alert at against the given
// dedup state, without recording anything. Candidate selection for deep
// analysis uses it to find regions newly crossing a tier before the alerts
// themselves are generated.
func (e *Engine) WouldFire(det detect.Result, rec scoring.ScoredRecord, fired FiredSet) (Tier, bool) {
	tier, ok := e.assignTier(rec.Composite, det.Status)
	if !ok {
		return "", false
	}
	if fired.highestFired(det.RegionID) >= tier.rank() {
		return "", false
	}
	return tier, true
}

// Generate produces this step's alerts and the updated dedup state. A region
// never re-fires at a tier it already alerted at, and never fires below a
// tier it already reached; crossing into a strictly higher tier fires again
// so a watched ZIP turning hot is never silent.
func (e *Engine) Generate(detections []detect.Result, scores map[string]scoring.ScoredRecord, fired FiredSet, step int) ([]Alert, FiredSet) {
	updated := fired.Clone()
	alerts := make([]Alert, 0)

	for _, det := range detections {
		rec, ok := scores[det.RegionID]
		if !ok {
			continue
		}
		tier, ok := e.WouldFire(det, rec, updated)
		if !ok {
			continue
		}

		factor, points := scoring.DominantFactor(rec, e.profile)
		alert := Alert{
			ID:           AlertID(det.RegionID, det.Period, tier),
			RegionID:     det.RegionID,
			Period:       det.Period,
			Tier:         tier,
			Composite:    rec.Composite,
			Status:       det.Status,
			ReasonFactor: factor,
			Reason: fmt.Sprintf("%s leads with %.1f of %.1f points under %s",
				factor, points, rec.Composite, rec.Strategy),
			Step: step,
		}
		alerts = append(alerts, alert)
		updated[FiredKey{RegionID: det.RegionID, Tier: tier}] = struct{}{}

		e.logger.Info().
			Str("region", alert.RegionID).
			Str("tier", string(alert.Tier)).
			Float64("composite", alert.Composite).
			Str("reason", alert.Reason).
			Msg("alert generated")
	}
	return alerts, updated
}
