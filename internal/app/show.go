package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"flipwatch/internal/scoring"
	"flipwatch/internal/storage"
)

// ShowAlertsOptions filter the alert log listing.
type ShowAlertsOptions struct {
	Tier   string
	Region string
	From   string
	To     string
	Limit  int
}

// ShowAlerts prints recent alerts from the store.
func (a *App) ShowAlerts(ctx context.Context, opts ShowAlertsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	filter := storage.AlertFilter{Limit: opts.Limit}
	if opts.Tier != "" {
		tier := strings.ToUpper(opts.Tier)
		filter.Tier = &tier
	}
	if opts.Region != "" {
		filter.RegionID = &opts.Region
	}
	if opts.From != "" {
		from, err := a.resolvePeriod(opts.From)
		if err != nil {
			return err
		}
		filter.From = &from
	}
	if opts.To != "" {
		to, err := a.resolvePeriod(opts.To)
		if err != nil {
			return err
		}
		filter.To = &to
	}

	alerts, err := store.ListAlerts(ctx, filter)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Period\tZIP\tTier\tScore\tStatus\tStep\tReason")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%.1f\t%s\t%d\t%s\n",
			alert.Period,
			alert.RegionID,
			alert.Tier,
			alert.Composite,
			alert.Status,
			alert.Step,
			sanitizeInline(alert.Reason),
		)
	}
	return writer.Flush()
}

// ShowReports prints recent step reports from the store.
func (a *App) ShowReports(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show reports")
	}
	if closeStore != nil {
		defer closeStore()
	}

	reports, err := store.ListStepReports(ctx, limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(os.Stdout, "no step reports found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Step\tPeriod\tStatus\tRegions\tNew\tImproved\tDegraded\tHot\tWarm\tWatch\tError")
	for _, r := range reports {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Step,
			r.Period,
			r.Status,
			r.Regions,
			r.NewCount,
			r.ImprovedCount,
			r.DegradedCount,
			r.HotAlerts,
			r.WarmAlerts,
			r.WatchAlerts,
			sanitizeInline(r.Error),
		)
	}
	return writer.Flush()
}

// Summary scores a period live and prints the geography roll-up.
func (a *App) Summary(ctx context.Context, periodStr string, level scoring.GeoLevel) error {
	engine, err := a.newEngine("")
	if err != nil {
		return err
	}

	period, err := a.resolvePeriod(periodStr)
	if err != nil {
		return err
	}

	snapshot, err := a.newLoader().Load(ctx, period)
	if err != nil {
		return err
	}

	scored, _, err := engine.ScorePeriod(ctx, snapshot.Records)
	if err != nil {
		return err
	}
	summaries := scoring.SummarizeByGeography(scoring.Filter(scored, a.Config.FilterOptions()), level)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "%s\tRegions\tMean\tMax\n", strings.ToUpper(string(level)))
	for _, s := range summaries {
		fmt.Fprintf(writer, "%s\t%d\t%.1f\t%.1f\n", s.Key, s.Regions, s.MeanScore, s.MaxScore)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
