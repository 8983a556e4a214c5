package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

// ScoreOptions configure a one-shot period scoring.
type ScoreOptions struct {
	Period   string
	Strategy string
	MinScore float64
	MinValue float64
	MaxValue float64
	Top      int
}

// Score ranks a single period and prints the opportunity table.
func (a *App) Score(ctx context.Context, opts ScoreOptions) error {
	engine, err := a.newEngine(opts.Strategy)
	if err != nil {
		return err
	}

	period, err := a.resolvePeriod(opts.Period)
	if err != nil {
		return err
	}

	snapshot, err := a.newLoader().Load(ctx, period)
	if err != nil {
		return err
	}

	scored, unscoreable, err := engine.ScorePeriod(ctx, snapshot.Records)
	if err != nil {
		return err
	}
	scoring.Rank(scored)

	filtered := scoring.Filter(scored, a.mergeFilters(opts))
	top := opts.Top
	if top <= 0 {
		top = 50
	}
	display := scoring.TopN(filtered, top)

	a.Logger.Info().
		Str("period", period.String()).
		Str("strategy", engine.Profile().Name).
		Int("regions", len(scored)).
		Int("matching", len(filtered)).
		Int("unscoreable", unscoreable).
		Msg("period scored")

	return printScoreTable(display)
}

func (a *App) resolvePeriod(s string) (market.Period, error) {
	if s == "" {
		now := time.Now().UTC()
		return market.Period{Year: now.Year(), Month: now.Month()}, nil
	}
	return market.ParsePeriod(s)
}

func (a *App) mergeFilters(opts ScoreOptions) scoring.FilterOptions {
	merged := a.Config.FilterOptions()
	if opts.MinScore > 0 {
		merged.MinScore = opts.MinScore
	}
	if opts.MinValue > 0 {
		merged.MinValue = decimal.NewFromFloat(opts.MinValue)
	}
	if opts.MaxValue > 0 {
		merged.MaxValue = decimal.NewFromFloat(opts.MaxValue)
	}
	return merged
}

func printScoreTable(records []scoring.ScoredRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no regions match the current filters")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ZIP\tState\tMetro\tValue\tScore\tApprec\tVelocity\tDistress\tPricing\tGap")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%.1f\t%s\t%s\t%s\t%s\t%s\n",
			rec.RegionID,
			rec.State,
			rec.Metro,
			rec.CurrentValue.StringFixed(0),
			rec.Composite,
			subscoreCell(rec, scoring.FactorAppreciation),
			subscoreCell(rec, scoring.FactorVelocity),
			subscoreCell(rec, scoring.FactorDistress),
			subscoreCell(rec, scoring.FactorPricingPower),
			subscoreCell(rec, scoring.FactorValueGap),
		)
	}
	return writer.Flush()
}

func subscoreCell(rec scoring.ScoredRecord, f scoring.Factor) string {
	v, ok := rec.Subscore(f)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
