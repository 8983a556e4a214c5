package orchestrator

import (
	"github.com/google/uuid"

	"flipwatch/internal/alerting"
	"flipwatch/internal/scoring"
)

// Stage names one agent responsibility inside a step. The loop walks stages
// strictly in order; nothing runs concurrently across stages.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageRefreshing Stage = "refreshing"
	StageScoring    Stage = "scoring"
	StageDetecting  Stage = "detecting"
	StageAnalyzing  Stage = "analyzing"
	StageAlerting   Stage = "alerting"
	StageReporting  Stage = "reporting"
	StageDone       Stage = "done"
)

// State is the cross-step orchestrator state: the previous period's scored
// table, the alert dedup set, and per-region score history for analysis. It
// is owned by a single run and mutated only at step boundaries; it is never
// shared across concurrent simulations.
type State struct {
	RunID          uuid.UUID
	Step           int
	PreviousScores map[string]scoring.ScoredRecord
	Fired          alerting.FiredSet
	History        map[string][]scoring.ScoredRecord
}

// NewState initialises empty state for a fresh run.
func NewState() *State {
	return &State{
		RunID:          uuid.New(),
		PreviousScores: make(map[string]scoring.ScoredRecord),
		Fired:          make(alerting.FiredSet),
		History:        make(map[string][]scoring.ScoredRecord),
	}
}

// advance commits a completed step's outputs. Old previous scores are not
// retained beyond what detection already consumed.
func (s *State) advance(step int, scores []scoring.ScoredRecord, fired alerting.FiredSet) {
	next := make(map[string]scoring.ScoredRecord, len(scores))
	for _, rec := range scores {
		next[rec.RegionID] = rec
		s.History[rec.RegionID] = append(s.History[rec.RegionID], rec)
	}
	s.PreviousScores = next
	s.Fired = fired
	s.Step = step + 1
}
