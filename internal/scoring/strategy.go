package scoring

import (
	"fmt"
	"math"
	"sort"
)

// weightTolerance bounds the acceptable drift of a profile's weight sum from 1.0.
const weightTolerance = 1e-6

// WeightProfile is a named investment strategy: one weight per factor,
// summing to 1. Profiles are validated at construction so a bad weight set
// fails the run before any scoring happens.
type WeightProfile struct {
	Name         string
	Appreciation float64
	Velocity     float64
	Distress     float64
	PricingPower float64
	ValueGap     float64
}

// Weight returns the profile's weight for a factor.
func (p WeightProfile) Weight(f Factor) float64 {
	switch f {
	case FactorAppreciation:
		return p.Appreciation
	case FactorVelocity:
		return p.Velocity
	case FactorDistress:
		return p.Distress
	case FactorPricingPower:
		return p.PricingPower
	case FactorValueGap:
		return p.ValueGap
	}
	return 0
}

// Validate checks that every weight is non-negative and the sum is 1.0
// within tolerance.
func (p WeightProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("weight profile has no name")
	}
	sum := 0.0
	for _, f := range AllFactors {
		w := p.Weight(f)
		if w < 0 {
			return fmt.Errorf("profile %s: %s weight %.4f is negative", p.Name, f, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("profile %s: weights sum to %.6f, expected 1.0", p.Name, sum)
	}
	return nil
}

// Built-in strategies. Balanced mirrors the default buyer, FastFlip
// up-weights market velocity for quick turns, ValueAdd up-weights distress
// and value gap for renovation-focused buyers.
var (
	Balanced = WeightProfile{
		Name:         "balanced",
		Appreciation: 0.25,
		Velocity:     0.25,
		Distress:     0.20,
		PricingPower: 0.15,
		ValueGap:     0.15,
	}

	FastFlip = WeightProfile{
		Name:         "fast_flip",
		Appreciation: 0.15,
		Velocity:     0.40,
		Distress:     0.15,
		PricingPower: 0.20,
		ValueGap:     0.10,
	}

	ValueAdd = WeightProfile{
		Name:         "value_add",
		Appreciation: 0.15,
		Velocity:     0.10,
		Distress:     0.30,
		PricingPower: 0.10,
		ValueGap:     0.35,
	}
)

// ProfileSet resolves strategy names to validated profiles.
type ProfileSet map[string]WeightProfile

// NewProfileSet combines the built-in strategies with user-defined extras.
// Extras may override built-ins by name. Every profile is validated; the
// first invalid one fails construction.
func NewProfileSet(extras ...WeightProfile) (ProfileSet, error) {
	set := ProfileSet{
		Balanced.Name: Balanced,
		FastFlip.Name: FastFlip,
		ValueAdd.Name: ValueAdd,
	}
	for _, p := range extras {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		set[p.Name] = p
	}
	return set, nil
}

// Resolve looks up a strategy by name.
func (s ProfileSet) Resolve(name string) (WeightProfile, error) {
	if p, ok := s[name]; ok {
		return p, nil
	}
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return WeightProfile{}, fmt.Errorf("unknown strategy %q (have %v)", name, names)
}
