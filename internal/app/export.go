package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"flipwatch/internal/scoring"
)

// ExportOptions select what gets exported and where. RegionID switches
// between the two modes: with a region, the region's score history is
// exported; without one, the ranked opportunity table for a period is.
type ExportOptions struct {
	RegionID  string
	Period    string
	Strategy  string
	Months    int
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// Export renders score data as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	if opts.RegionID == "" {
		if opts.PNGPath != "" {
			return errors.New("--png requires --region; the ranked table is CSV only")
		}
		return a.exportRanked(ctx, opts)
	}
	return a.exportHistory(ctx, opts)
}

func (a *App) exportHistory(ctx context.Context, opts ExportOptions) error {
	history, err := a.regionHistory(ctx, opts.RegionID, opts.Strategy, opts.Months)
	if err != nil {
		return err
	}

	maxPoints := a.Config.ResolveMaxPoints(opts.MaxPoints)
	downsampled := downsampleHistory(history, maxPoints)
	a.Logger.Info().
		Str("region", opts.RegionID).
		Int("total", len(history)).
		Int("exported", len(downsampled)).
		Msg("exporting score history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, opts.RegionID, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) exportRanked(ctx context.Context, opts ExportOptions) error {
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

	scored, _, err := engine.ScorePeriod(ctx, snapshot.Records)
	if err != nil {
		return err
	}
	scoring.Rank(scored)
	filtered := scoring.Filter(scored, a.Config.FilterOptions())

	a.Logger.Info().
		Str("period", period.String()).
		Int("regions", len(filtered)).
		Msg("exporting ranked table")

	return writeRankedCSV(opts.CSVPath, filtered)
}

func downsampleHistory(records []scoring.ScoredRecord, max int) []scoring.ScoredRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]scoring.ScoredRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeHistoryCSV(path string, records []scoring.ScoredRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"period", "region_id", "composite", "appreciation", "velocity", "distress", "pricing_power", "value_gap", "home_value"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Period.String(),
			rec.RegionID,
			strconv.FormatFloat(rec.Composite, 'f', 2, 64),
		}
		for _, f := range scoring.AllFactors {
			row = append(row, subscoreCSVCell(rec, f))
		}
		row = append(row, rec.CurrentValue.StringFixed(0))
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeRankedCSV(path string, records []scoring.ScoredRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"rank", "region_id", "state", "metro", "home_value", "composite", "appreciation", "velocity", "distress", "pricing_power", "value_gap"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, rec := range records {
		row := []string{
			strconv.Itoa(i + 1),
			rec.RegionID,
			rec.State,
			rec.Metro,
			rec.CurrentValue.StringFixed(0),
			strconv.FormatFloat(rec.Composite, 'f', 2, 64),
		}
		for _, f := range scoring.AllFactors {
			row = append(row, subscoreCSVCell(rec, f))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeHistoryPNG(path, regionID string, records []scoring.ScoredRecord) error {
	if len(records) < 2 {
		return errors.New("need at least two periods to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(records))
	composite := make([]float64, len(records))
	ticks := make([]chart.Tick, 0, len(records))
	for i, rec := range records {
		x[i] = float64(i)
		composite[i] = rec.Composite
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: rec.Period.String()})
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Composite",
			XValues: x,
			YValues: composite,
		},
	}
	for _, f := range scoring.AllFactors {
		values := make([]float64, len(records))
		complete := true
		for i, rec := range records {
			v, ok := rec.Subscore(f)
			if !ok {
				complete = false
				break
			}
			values[i] = v
		}
		if !complete {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    string(f),
			XValues: x,
			YValues: values,
			YAxis:   chart.YAxisSecondary,
		})
	}

	scoreFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  fmt.Sprintf("Flip score history: %s", regionID),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:           "Composite score",
			ValueFormatter: scoreFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: 100},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Sub-score",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func subscoreCSVCell(rec scoring.ScoredRecord, f scoring.Factor) string {
	v, ok := rec.Subscore(f)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
