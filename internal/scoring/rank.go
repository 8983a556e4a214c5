package scoring

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Rank sorts records by descending composite score, breaking ties by
// ascending region ID so equal scores order deterministically.
func Rank(records []ScoredRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Composite != records[j].Composite {
			return records[i].Composite > records[j].Composite
		}
		return records[i].RegionID < records[j].RegionID
	})
}

// FilterOptions narrow a ranked table: minimum composite score and a home
// value band. Zero values leave the corresponding bound open.
type FilterOptions struct {
	MinScore float64
	MinValue decimal.Decimal
	MaxValue decimal.Decimal
}

// Filter returns the records passing all configured bounds, preserving order.
func Filter(records []ScoredRecord, opts FilterOptions) []ScoredRecord {
	out := make([]ScoredRecord, 0, len(records))
	for _, rec := range records {
		if rec.Composite < opts.MinScore {
			continue
		}
		if !opts.MinValue.IsZero() && rec.CurrentValue.LessThan(opts.MinValue) {
			continue
		}
		if !opts.MaxValue.IsZero() && rec.CurrentValue.GreaterThan(opts.MaxValue) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// TopN returns at most n leading records of an already-ranked slice.
func TopN(records []ScoredRecord, n int) []ScoredRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

// GeoLevel selects the roll-up dimension for geography summaries.
type GeoLevel string

const (
	GeoState GeoLevel = "state"
	GeoMetro GeoLevel = "metro"
)

// GeoSummary aggregates scored regions sharing a state or metro.
type GeoSummary struct {
	Key       string
	Regions   int
	MeanScore float64
	MaxScore  float64
}

// SummarizeByGeography rolls the table up by state or metro, sorted by
// descending mean score then key. Records without the grouping field are
// collected under "(unknown)".
func SummarizeByGeography(records []ScoredRecord, level GeoLevel) []GeoSummary {
	groups := make(map[string]*GeoSummary)
	for _, rec := range records {
		key := rec.State
		if level == GeoMetro {
			key = rec.Metro
		}
		if key == "" {
			key = "(unknown)"
		}
		g, ok := groups[key]
		if !ok {
			g = &GeoSummary{Key: key}
			groups[key] = g
		}
		g.Regions++
		g.MeanScore += rec.Composite
		if rec.Composite > g.MaxScore {
			g.MaxScore = rec.Composite
		}
	}

	out := make([]GeoSummary, 0, len(groups))
	for _, g := range groups {
		g.MeanScore /= float64(g.Regions)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanScore != out[j].MeanScore {
			return out[i].MeanScore > out[j].MeanScore
		}
		return out[i].Key < out[j].Key
	})
	return out
}
