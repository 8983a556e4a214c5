package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"flipwatch/internal/market"
)

func TestStaticLoader(t *testing.T) {
	period := market.Period{Year: 2025, Month: time.May}
	snap := &market.Snapshot{Period: period, Records: []market.MetricRecord{
		{RegionID: "94110", Period: period, HomeValueIndex: market.Currency(850000)},
	}}
	loader := &Static{Snapshots: map[market.Period]*market.Snapshot{period: snap}}

	got, err := loader.Load(context.Background(), period)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got.Records) != 1 {
		t.Fatalf("unexpected records: %d", len(got.Records))
	}

	if _, err := loader.Load(context.Background(), period.Next()); !errors.Is(err, market.ErrDataUnavailable) {
		t.Fatalf("missing period should be data-unavailable, got %v", err)
	}
}

func TestSimulatedDeterministic(t *testing.T) {
	period := market.Period{Year: 2025, Month: time.May}
	a := NewSimulated(42, 50)
	b := NewSimulated(42, 50)

	first, err := a.Load(context.Background(), period)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	second, err := b.Load(context.Background(), period)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(first.Records) != 50 || len(second.Records) != 50 {
		t.Fatalf("expected 50 records, got %d and %d", len(first.Records), len(second.Records))
	}
	for i := range first.Records {
		fr, sr := first.Records[i], second.Records[i]
		if fr.RegionID != sr.RegionID {
			t.Fatalf("record %d region mismatch: %s vs %s", i, fr.RegionID, sr.RegionID)
		}
		if !fr.HomeValueIndex.Decimal.Equal(sr.HomeValueIndex.Decimal) {
			t.Fatalf("record %d value mismatch", i)
		}
		if *fr.DaysToPending != *sr.DaysToPending {
			t.Fatalf("record %d days mismatch", i)
		}
	}
}

func TestSimulatedDriftsAcrossPeriods(t *testing.T) {
	loader := NewSimulated(7, 10)
	may, err := loader.Load(context.Background(), market.Period{Year: 2025, Month: time.May})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	june, err := loader.Load(context.Background(), market.Period{Year: 2025, Month: time.June})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	moved := false
	for i := range may.Records {
		if !may.Records[i].HomeValueIndex.Decimal.Equal(june.Records[i].HomeValueIndex.Decimal) {
			moved = true
			break
		}
	}
	if !moved {
		t.Fatal("metrics should drift between periods")
	}

	if err := june.Validate(); err != nil {
		t.Fatalf("simulated snapshot should validate: %v", err)
	}
}
