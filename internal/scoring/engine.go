package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"flipwatch/internal/market"
)

// ErrNoUsableFactors marks a region with zero scoreable factors for a period.
// Such regions are excluded from the ranked table, never scored as zero.
var ErrNoUsableFactors = errors.New("scoring: region has no usable factors")

// ScoredRecord is one region's normalized sub-scores and composite for a
// period. Subscores holds only the factors that were available; the composite
// is the weighted mean over those factors with weights renormalized to 1.
type ScoredRecord struct {
	RegionID     string
	Period       market.Period
	City         string
	State        string
	Metro        string
	CurrentValue decimal.Decimal
	Subscores    map[Factor]float64
	Composite    float64
	Strategy     string
}

// Subscore returns a factor's normalized sub-score and whether it was available.
func (r ScoredRecord) Subscore(f Factor) (float64, bool) {
	v, ok := r.Subscores[f]
	return v, ok
}

// Contribution is one factor's renormalized-weighted share of a composite.
type Contribution struct {
	Factor   Factor
	Subscore float64
	Points   float64
}

// Contributions breaks a composite down into per-factor point contributions
// under the given profile, renormalized over the available factors. The
// slice follows canonical factor order.
func Contributions(rec ScoredRecord, profile WeightProfile) []Contribution {
	total := 0.0
	for f := range rec.Subscores {
		total += profile.Weight(f)
	}
	if total <= 0 {
		return nil
	}
	out := make([]Contribution, 0, len(rec.Subscores))
	for _, f := range AllFactors {
		sub, ok := rec.Subscores[f]
		if !ok {
			continue
		}
		out = append(out, Contribution{
			Factor:   f,
			Subscore: sub,
			Points:   100 * (profile.Weight(f) / total) * sub,
		})
	}
	return out
}

// DominantFactor returns the factor contributing the most points to the
// composite, for explainable alerts. Ties resolve by canonical factor order.
func DominantFactor(rec ScoredRecord, profile WeightProfile) (Factor, float64) {
	var best Contribution
	found := false
	for _, c := range Contributions(rec, profile) {
		if !found || c.Points > best.Points {
			best = c
			found = true
		}
	}
	if !found {
		return "", 0
	}
	return best.Factor, best.Points
}

// Population holds the per-factor scales fitted over one period's
// cross-section. Fitting is the barrier between collecting a period's raw
// metrics and scoring any single region.
type Population struct {
	scales map[Factor]scale
}

// Engine converts raw metric records into scored records under one strategy.
// It carries no per-period state; scoring is a pure function of the record
// and the fitted population.
type Engine struct {
	profile WeightProfile
	method  NormMethod
	workers int
}

// NewEngine validates the profile and constructs an engine. workers bounds
// the scoring fan-out; values below 1 mean sequential.
func NewEngine(profile WeightProfile, method NormMethod, workers int) (*Engine, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseNormMethod(string(method)); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{profile: profile, method: method, workers: workers}, nil
}

// Profile returns the engine's strategy.
func (e *Engine) Profile() WeightProfile {
	return e.profile
}

// Fit computes the cross-sectional scales for a period. Factors with no
// observations across the whole population get no scale and stay missing for
// every region.
func (e *Engine) Fit(records []market.MetricRecord) *Population {
	pop := &Population{scales: make(map[Factor]scale, len(AllFactors))}
	for _, f := range AllFactors {
		values := make([]float64, 0, len(records))
		for _, rec := range records {
			if v, ok := rawSignal(rec, f); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		pop.scales[f] = fitScale(values, e.method)
	}
	return pop
}

// Score computes one region's scored record against a fitted population.
// Missing factors are excluded from both the numerator and the denominator of
// the weighted sum, so the remaining weights renormalize to 1. Returns
// ErrNoUsableFactors when nothing is scoreable.
func (e *Engine) Score(rec market.MetricRecord, pop *Population) (ScoredRecord, error) {
	subs := make(map[Factor]float64, len(AllFactors))
	weighted := 0.0
	weightSum := 0.0
	for _, f := range AllFactors {
		sc, ok := pop.scales[f]
		if !ok {
			continue
		}
		raw, ok := rawSignal(rec, f)
		if !ok {
			continue
		}
		sub := sc.apply(raw)
		subs[f] = sub
		w := e.profile.Weight(f)
		weighted += w * sub
		weightSum += w
	}
	if len(subs) == 0 || weightSum <= 0 {
		return ScoredRecord{}, fmt.Errorf("%w: %s in %s", ErrNoUsableFactors, rec.RegionID, rec.Period)
	}
	return ScoredRecord{
		RegionID:     rec.RegionID,
		Period:       rec.Period,
		City:         rec.City,
		State:        rec.State,
		Metro:        rec.Metro,
		CurrentValue: rec.CurrentValue(),
		Subscores:    subs,
		Composite:    100 * weighted / weightSum,
		Strategy:     e.profile.Name,
	}, nil
}

// ScorePeriod fits the population and scores every region, fanning the
// per-region work out over the worker bound. The fan-out joins before
// returning, so callers observe a fully-scored period. The second return is
// the count of regions excluded for having no usable factors.
func (e *Engine) ScorePeriod(ctx context.Context, records []market.MetricRecord) ([]ScoredRecord, int, error) {
	if len(records) == 0 {
		return nil, 0, nil
	}
	pop := e.Fit(records)

	results := make([]*ScoredRecord, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scored, err := e.Score(rec, pop)
			if err != nil {
				if errors.Is(err, ErrNoUsableFactors) {
					return nil
				}
				return err
			}
			results[i] = &scored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	scored := make([]ScoredRecord, 0, len(records))
	skipped := 0
	for _, r := range results {
		if r == nil {
			skipped++
			continue
		}
		scored = append(scored, *r)
	}
	return scored, skipped, nil
}
