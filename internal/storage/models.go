package storage

import (
	"time"

	"github.com/google/uuid"

	"flipwatch/internal/market"
)

// AlertRecord is a persisted alert log entry.
type AlertRecord struct {
	AlertID      string
	RunID        uuid.UUID
	RegionID     string
	Period       market.Period
	Tier         string
	Composite    float64
	Status       string
	ReasonFactor string
	Reason       string
	Step         int
	CreatedAt    time.Time
}

// Mover is a top score mover inside a step report.
type Mover struct {
	RegionID  string  `json:"region_id"`
	Delta     float64 `json:"delta"`
	Composite float64 `json:"composite"`
}

// StepReport is the per-step summary record, the run's only persisted
// artifact besides the alert and score logs. Skipped steps are stored too,
// with StatusSkipped, so a missing period is distinguishable from a skipped
// one.
type StepReport struct {
	RunID          uuid.UUID
	Step           int
	Period         market.Period
	Status         string
	Regions        int
	Unscoreable    int
	NewCount       int
	ImprovedCount  int
	DegradedCount  int
	UnchangedCount int
	HotAlerts      int
	WarmAlerts     int
	WatchAlerts    int
	TopMovers      []Mover
	Error          string
	CreatedAt      time.Time
}

// Step report statuses.
const (
	StatusComplete = "complete"
	StatusSkipped  = "skipped"
)
