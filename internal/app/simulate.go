package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"flipwatch/internal/alerting"
	"flipwatch/internal/detect"
	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

// SimulateAlertOptions describe the synthetic alert to push through the
// pipeline.
type SimulateAlertOptions struct {
	RegionID  string
	Composite float64
	Status    string
	Strategy  string
}

// SimulateAlert runs a fabricated scored region through tier assignment and
// the configured notifier, end to end, so the channel can be verified without
// a full run.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateAlertOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	profile, err := a.Config.ResolveStrategy(opts.Strategy)
	if err != nil {
		return err
	}

	status, err := parseStatus(opts.Status)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	period := market.Period{Year: now.Year(), Month: now.Month()}

	rec := scoring.ScoredRecord{
		RegionID:     opts.RegionID,
		Period:       period,
		CurrentValue: decimal.NewFromInt(350_000),
		Composite:    opts.Composite,
		Strategy:     profile.Name,
		Subscores:    syntheticSubscores(opts.Composite),
	}
	det := detect.Result{
		RegionID: opts.RegionID,
		Period:   period,
		Status:   status,
	}

	engine := alerting.NewEngine(a.Config.AlertThresholds(), profile, a.Logger)
	alerts, _ := engine.Generate([]detect.Result{det}, map[string]scoring.ScoredRecord{opts.RegionID: rec}, alerting.FiredSet{}, 0)
	if len(alerts) == 0 {
		a.Logger.Info().
			Float64("composite", opts.Composite).
			Str("status", string(status)).
			Msg("composite and status do not qualify for any tier; nothing sent")
		return nil
	}

	return notifier.Notify(ctx, alerts[0])
}

// syntheticSubscores spreads the composite evenly so the rendered reason has
// something to name.
func syntheticSubscores(composite float64) map[scoring.Factor]float64 {
	sub := make(map[scoring.Factor]float64, len(scoring.AllFactors))
	for _, f := range scoring.AllFactors {
		sub[f] = composite / 100
	}
	return sub
}

func parseStatus(s string) (detect.Status, error) {
	switch strings.ToUpper(s) {
	case "", string(detect.StatusNew):
		return detect.StatusNew, nil
	case string(detect.StatusImproved):
		return detect.StatusImproved, nil
	case string(detect.StatusDegraded):
		return detect.StatusDegraded, nil
	case string(detect.StatusUnchanged):
		return detect.StatusUnchanged, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}
