package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"flipwatch/internal/alerting"
	"flipwatch/internal/analyzer"
	"flipwatch/internal/detect"
	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
	"flipwatch/internal/source"
	"flipwatch/internal/storage"
)

// topMoverCount bounds the movers listed in a step report.
const topMoverCount = 5

// Options tune a simulation run.
type Options struct {
	StartPeriod market.Period
	Steps       int
	FromStep    int
	LockKey     int64
}

// Orchestrator drives the refresh, score, detect, analyze, alert, and
// report cycle across simulated steps. Stores and notifier are optional;
// a nil store simply disables that persistence.
type Orchestrator struct {
	loader   source.Loader
	engine   *scoring.Engine
	detector *detect.Detector
	alerts   *alerting.Engine
	analyzer *analyzer.Analyzer
	notifier alerting.Notifier

	scoreStore  storage.ScoreStore
	alertStore  storage.AlertStore
	reportStore storage.ReportStore
	locker      storage.AdvisoryLocker

	topK   int
	logger zerolog.Logger
}

// Deps bundle the orchestrator's collaborators.
type Deps struct {
	Loader   source.Loader
	Engine   *scoring.Engine
	Detector *detect.Detector
	Alerts   *alerting.Engine
	Analyzer *analyzer.Analyzer
	Notifier alerting.Notifier

	ScoreStore  storage.ScoreStore
	AlertStore  storage.AlertStore
	ReportStore storage.ReportStore
	Locker      storage.AdvisoryLocker
}

// New wires an orchestrator.
func New(deps Deps, topK int, logger zerolog.Logger) *Orchestrator {
	if topK < 1 {
		topK = 20
	}
	return &Orchestrator{
		loader:      deps.Loader,
		engine:      deps.Engine,
		detector:    deps.Detector,
		alerts:      deps.Alerts,
		analyzer:    deps.Analyzer,
		notifier:    deps.Notifier,
		scoreStore:  deps.ScoreStore,
		alertStore:  deps.AlertStore,
		reportStore: deps.ReportStore,
		locker:      deps.Locker,
		topK:        topK,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
	}
}

// StepResult is one step's in-memory outcome: the ranked table, detections,
// alerts, analyses for the deep-dive candidates, and the persisted report.
type StepResult struct {
	Stage    Stage
	Ranked   []scoring.ScoredRecord
	Results  []detect.Result
	Alerts   []alerting.Alert
	Analyses []analyzer.Analysis
	Report   storage.StepReport
}

// RunSummary aggregates a whole run.
type RunSummary struct {
	RunID          string
	StepsCompleted int
	StepsSkipped   int
	TotalAlerts    int
	AlertsByTier   map[alerting.Tier]int
	FinalState     *State
}

// Run executes the loop from Options.FromStep for Options.Steps steps.
// Cancellation is honored between steps only; a step always finishes its
// report before the loop re-checks the context, so state stays consistent.
func (o *Orchestrator) Run(ctx context.Context, state *State, opts Options) (*RunSummary, error) {
	if opts.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", opts.Steps)
	}
	if state == nil {
		state = NewState()
	}

	if o.locker != nil && opts.LockKey != 0 {
		unlock, acquired, err := o.locker.TryAdvisoryLock(ctx, opts.LockKey)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return nil, errors.New("another run holds the advisory lock")
		}
		defer unlock()
	}

	summary := &RunSummary{
		RunID:        state.RunID.String(),
		AlertsByTier: make(map[alerting.Tier]int),
		FinalState:   state,
	}

	for step := opts.FromStep; step < opts.FromStep+opts.Steps; step++ {
		select {
		case <-ctx.Done():
			o.logger.Info().Int("step", step).Msg("run cancelled between steps")
			return summary, ctx.Err()
		default:
		}

		period := opts.StartPeriod.Add(step)
		result := o.RunStep(ctx, state, step, period)

		if result.Report.Status == storage.StatusSkipped {
			summary.StepsSkipped++
			continue
		}
		summary.StepsCompleted++
		summary.TotalAlerts += len(result.Alerts)
		for _, alert := range result.Alerts {
			summary.AlertsByTier[alert.Tier]++
		}
	}

	o.logger.Info().
		Str("run_id", summary.RunID).
		Int("completed", summary.StepsCompleted).
		Int("skipped", summary.StepsSkipped).
		Int("alerts", summary.TotalAlerts).
		Msg("run finished")
	return summary, nil
}

// RunStep executes one full step. Refresh failures skip the step: the report
// records the skip, previous scores and dedup state stay untouched, and the
// caller's loop continues. Re-running a step against the same state and
// source yields identical output.
func (o *Orchestrator) RunStep(ctx context.Context, state *State, step int, period market.Period) StepResult {
	logger := o.logger.With().Int("step", step).Str("period", period.String()).Logger()
	result := StepResult{Stage: StageIdle}

	// Refresh.
	result.Stage = StageRefreshing
	snapshot, err := o.loader.Load(ctx, period)
	if err != nil {
		logger.Warn().Err(err).Msg("refresh failed, skipping step")
		result.Report = o.report(ctx, state, step, period, result, err)
		return result
	}
	if err := snapshot.Validate(); err != nil {
		logger.Warn().Err(err).Msg("metrics table malformed, skipping step")
		result.Report = o.report(ctx, state, step, period, result, err)
		return result
	}

	// Score. Population fit is the barrier; per-region scoring fans out and
	// joins inside ScorePeriod before detection may start.
	result.Stage = StageScoring
	scored, unscoreable, err := o.engine.ScorePeriod(ctx, snapshot.Records)
	if err != nil {
		logger.Warn().Err(err).Msg("scoring failed, skipping step")
		result.Report = o.report(ctx, state, step, period, result, err)
		return result
	}
	scoring.Rank(scored)
	result.Ranked = scored
	result.Report.Unscoreable = unscoreable

	if o.scoreStore != nil {
		if err := o.scoreStore.InsertScores(ctx, state.RunID, scored); err != nil {
			logger.Error().Err(err).Msg("failed to persist scored records")
		}
	}

	// Detect.
	result.Stage = StageDetecting
	result.Results = o.detector.Detect(scored, state.PreviousScores)

	// Analyze only the deep-dive candidates: the top-K by composite plus any
	// region newly crossing an alert tier, to bound cost.
	result.Stage = StageAnalyzing
	result.Analyses = o.analyze(state, scored, result.Results)

	// Alert.
	result.Stage = StageAlerting
	scoresByRegion := make(map[string]scoring.ScoredRecord, len(scored))
	for _, rec := range scored {
		scoresByRegion[rec.RegionID] = rec
	}
	alerts, fired := o.alerts.Generate(result.Results, scoresByRegion, state.Fired, step)
	result.Alerts = alerts

	if o.alertStore != nil && len(alerts) > 0 {
		if err := o.alertStore.InsertAlerts(ctx, state.RunID, alerts); err != nil {
			logger.Error().Err(err).Msg("failed to persist alerts")
		}
	}
	if o.notifier != nil {
		for _, alert := range alerts {
			if err := o.notifier.Notify(ctx, alert); err != nil {
				logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to dispatch alert")
			}
		}
	}

	// Report, then commit state at the step boundary.
	result.Stage = StageReporting
	result.Report = o.report(ctx, state, step, period, result, nil)
	state.advance(step, scored, fired)
	result.Stage = StageDone

	logger.Info().
		Int("regions", len(scored)).
		Int("alerts", len(alerts)).
		Msg("step complete")
	return result
}

// analyze picks deep-dive candidates and runs the analyzer over their
// accumulated history including the current period. Candidates are the top-K
// by composite plus regions about to raise an alert; everything else skips
// the deep dive, keeping the stage's cost independent of the cross-section
// size.
func (o *Orchestrator) analyze(state *State, ranked []scoring.ScoredRecord, detections []detect.Result) []analyzer.Analysis {
	candidates := make(map[string]struct{}, o.topK)
	for _, rec := range scoring.TopN(ranked, o.topK) {
		candidates[rec.RegionID] = struct{}{}
	}
	byRegion := make(map[string]scoring.ScoredRecord, len(ranked))
	for _, rec := range ranked {
		byRegion[rec.RegionID] = rec
	}
	for _, det := range detections {
		rec, ok := byRegion[det.RegionID]
		if !ok {
			continue
		}
		if _, fires := o.alerts.WouldFire(det, rec, state.Fired); fires {
			candidates[det.RegionID] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(candidates))
	for id := range candidates {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	analyses := make([]analyzer.Analysis, 0, len(ordered))
	for _, id := range ordered {
		history := append(append([]scoring.ScoredRecord{}, state.History[id]...), byRegion[id])
		an, err := o.analyzer.Analyze(id, history)
		if err != nil {
			continue
		}
		analyses = append(analyses, an)
	}
	return analyses
}

// report assembles and persists the step summary. Skipped steps are recorded
// too so consumers can tell a period was skipped, not silently missing.
func (o *Orchestrator) report(ctx context.Context, state *State, step int, period market.Period, result StepResult, stepErr error) storage.StepReport {
	report := storage.StepReport{
		RunID:       state.RunID,
		Step:        step,
		Period:      period,
		Status:      storage.StatusComplete,
		Regions:     len(result.Ranked),
		Unscoreable: result.Report.Unscoreable,
		CreatedAt:   time.Now().UTC(),
	}
	if stepErr != nil {
		report.Status = storage.StatusSkipped
		report.Error = stepErr.Error()
	}

	for _, det := range result.Results {
		switch det.Status {
		case detect.StatusNew:
			report.NewCount++
		case detect.StatusImproved:
			report.ImprovedCount++
		case detect.StatusDegraded:
			report.DegradedCount++
		case detect.StatusUnchanged:
			report.UnchangedCount++
		}
	}
	for _, alert := range result.Alerts {
		switch alert.Tier {
		case alerting.TierHot:
			report.HotAlerts++
		case alerting.TierWarm:
			report.WarmAlerts++
		case alerting.TierWatch:
			report.WatchAlerts++
		}
	}
	report.TopMovers = topMovers(result.Results, result.Ranked)

	if o.reportStore != nil {
		if err := o.reportStore.UpsertStepReport(ctx, report); err != nil {
			o.logger.Error().Err(err).Int("step", step).Msg("failed to persist step report")
		}
	}
	return report
}

// topMovers lists the largest absolute score deltas for the step report.
func topMovers(detections []detect.Result, ranked []scoring.ScoredRecord) []storage.Mover {
	byRegion := make(map[string]float64, len(ranked))
	for _, rec := range ranked {
		byRegion[rec.RegionID] = rec.Composite
	}

	movers := make([]storage.Mover, 0, len(detections))
	for _, det := range detections {
		if det.Status != detect.StatusImproved && det.Status != detect.StatusDegraded {
			continue
		}
		movers = append(movers, storage.Mover{
			RegionID:  det.RegionID,
			Delta:     det.ScoreDelta,
			Composite: byRegion[det.RegionID],
		})
	}
	sort.Slice(movers, func(i, j int) bool {
		di, dj := math.Abs(movers[i].Delta), math.Abs(movers[j].Delta)
		if di != dj {
			return di > dj
		}
		return movers[i].RegionID < movers[j].RegionID
	})
	if len(movers) > topMoverCount {
		movers = movers[:topMoverCount]
	}
	return movers
}
