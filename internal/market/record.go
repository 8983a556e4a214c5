package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrDataUnavailable marks a period whose metrics table is empty or malformed.
// The orchestrator logs it and skips the step instead of aborting the run.
var ErrDataUnavailable = errors.New("market: metrics table unavailable")

// MetricRecord is one ZIP code's raw metrics for one period. Currency-valued
// indexes are NullDecimal and ratio fields are pointers: a nil/invalid field
// means the upstream table had no value, and the corresponding scoring factor
// is excluded rather than defaulted.
type MetricRecord struct {
	RegionID string
	Period   Period

	City  string
	State string
	Metro string

	HomeValueIndex        decimal.NullDecimal
	HomeValueIndex12moAgo decimal.NullDecimal
	BottomTierValueIndex  decimal.NullDecimal
	AllHomesValueIndex    decimal.NullDecimal

	DaysToPending       *float64
	PctListingsPriceCut *float64
	SaleToListRatio     *float64
}

// CurrentValue returns the home value index as a plain decimal, zero when missing.
func (r MetricRecord) CurrentValue() decimal.Decimal {
	if !r.HomeValueIndex.Valid {
		return decimal.Zero
	}
	return r.HomeValueIndex.Decimal
}

// Snapshot is the full metrics cross-section for one period, as delivered by
// the data-loading collaborator.
type Snapshot struct {
	Period  Period
	Records []MetricRecord
}

// Validate checks the in-memory table shape: a well-formed period, at least
// one row, and non-empty region IDs throughout. Shape failures wrap
// ErrDataUnavailable so callers can treat them as a skipped step.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrDataUnavailable)
	}
	if s.Period.IsZero() {
		return fmt.Errorf("%w: period not set", ErrDataUnavailable)
	}
	if len(s.Records) == 0 {
		return fmt.Errorf("%w: no records for %s", ErrDataUnavailable, s.Period)
	}
	for i, rec := range s.Records {
		if rec.RegionID == "" {
			return fmt.Errorf("%w: record %d has empty region id", ErrDataUnavailable, i)
		}
		if rec.Period != s.Period {
			return fmt.Errorf("%w: record %s carries period %s, snapshot is %s",
				ErrDataUnavailable, rec.RegionID, rec.Period, s.Period)
		}
	}
	return nil
}

// Float returns a pointer to v, for building optional metric fields.
func Float(v float64) *float64 {
	return &v
}

// Currency wraps v as a valid NullDecimal.
func Currency(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}
