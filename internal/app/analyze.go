package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"flipwatch/internal/analyzer"
	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

// AnalyzeOptions configure a deep region analysis.
type AnalyzeOptions struct {
	RegionID string
	Strategy string
	Months   int
}

// Analyze prints the trend, momentum, risk, and recommendation breakdown for
// one region. History comes from the database when one is configured,
// otherwise it is rebuilt from the simulated source over the trailing months.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	if opts.RegionID == "" {
		return fmt.Errorf("analyze: region ID is required")
	}

	profile, err := a.Config.ResolveStrategy(opts.Strategy)
	if err != nil {
		return err
	}

	history, err := a.regionHistory(ctx, opts.RegionID, opts.Strategy, opts.Months)
	if err != nil {
		return err
	}

	an := analyzer.New(a.Config.AlertThresholds())
	analysis, err := an.Analyze(opts.RegionID, history)
	if err != nil {
		return err
	}

	return printAnalysis(analysis, history, profile)
}

func (a *App) regionHistory(ctx context.Context, regionID, strategy string, months int) ([]scoring.ScoredRecord, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if closeStore != nil {
			defer closeStore()
		}
		history, err := store.ListScoreHistory(ctx, regionID)
		if err != nil {
			return nil, err
		}
		if len(history) > 0 {
			a.Logger.Debug().
				Str("region", regionID).
				Int("periods", len(history)).
				Msg("loaded score history from store")
			return history, nil
		}
		a.Logger.Warn().Str("region", regionID).Msg("no stored history; rebuilding from source")
	}
	return a.rebuildHistory(ctx, regionID, strategy, months)
}

// rebuildHistory re-scores the trailing months so analyze works without a
// database. Each period is normalized against its own cross-section, matching
// what a live run would have produced.
func (a *App) rebuildHistory(ctx context.Context, regionID, strategy string, months int) ([]scoring.ScoredRecord, error) {
	engine, err := a.newEngine(strategy)
	if err != nil {
		return nil, err
	}

	if months <= 0 {
		months = 12
	}

	now := time.Now().UTC()
	end := market.Period{Year: now.Year(), Month: now.Month()}
	start := end.Add(-(months - 1))

	loader := a.newLoader()
	history := make([]scoring.ScoredRecord, 0, months)
	for period := start; !end.Before(period); period = period.Next() {
		snapshot, err := loader.Load(ctx, period)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", period, err)
		}
		scored, _, err := engine.ScorePeriod(ctx, snapshot.Records)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", period, err)
		}
		for _, rec := range scored {
			if rec.RegionID == regionID {
				history = append(history, rec)
				break
			}
		}
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("region %s not present in source data", regionID)
	}
	return history, nil
}

func printAnalysis(analysis analyzer.Analysis, history []scoring.ScoredRecord, profile scoring.WeightProfile) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Region\t%s\n", analysis.RegionID)
	fmt.Fprintf(writer, "Observations\t%d\n", analysis.Observations)
	fmt.Fprintf(writer, "Current score\t%.1f (%s)\n", analysis.CurrentScore, analysis.CurrentTier)
	fmt.Fprintf(writer, "Trend\t%s\n", optionalCell(analysis.Trend, "%+.2f pts/period"))
	fmt.Fprintf(writer, "Momentum\t%s\n", optionalCell(analysis.Momentum, "%+.2f"))
	fmt.Fprintf(writer, "Risk\t%s\n", analysis.RiskTier)
	fmt.Fprintf(writer, "Recommendation\t%s\n", analysis.Recommendation)
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout)
	hw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(hw, "Period\tScore\tDominant factor")
	for _, rec := range history {
		factor, _ := scoring.DominantFactor(rec, profile)
		fmt.Fprintf(hw, "%s\t%.1f\t%s\n", rec.Period, rec.Composite, factor)
	}
	return hw.Flush()
}

func optionalCell(v *float64, format string) string {
	if v == nil {
		return "NONE"
	}
	return fmt.Sprintf(format, *v)
}
