package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"flipwatch/internal/alerting"
	"flipwatch/internal/market"
	"flipwatch/internal/scoring"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertScoreSQL = `INSERT INTO scored_records (
        run_id,
        region_id,
        period,
        strategy,
        composite,
        appreciation_score,
        velocity_score,
        distress_score,
        pricing_power_score,
        value_gap_score,
        current_value,
        city,
        state,
        metro
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    )
    ON CONFLICT (run_id, region_id, period) DO UPDATE
    SET
        strategy            = EXCLUDED.strategy,
        composite           = EXCLUDED.composite,
        appreciation_score  = EXCLUDED.appreciation_score,
        velocity_score      = EXCLUDED.velocity_score,
        distress_score      = EXCLUDED.distress_score,
        pricing_power_score = EXCLUDED.pricing_power_score,
        value_gap_score     = EXCLUDED.value_gap_score,
        current_value       = EXCLUDED.current_value,
        city                = EXCLUDED.city,
        state               = EXCLUDED.state,
        metro               = EXCLUDED.metro;`

	listScoreHistorySQL = `SELECT DISTINCT ON (period)
        region_id,
        period,
        strategy,
        composite,
        appreciation_score,
        velocity_score,
        distress_score,
        pricing_power_score,
        value_gap_score,
        current_value,
        city,
        state,
        metro
    FROM scored_records
    WHERE region_id = $1
    ORDER BY period, created_at DESC;`

	insertAlertSQL = `INSERT INTO alerts (
        alert_id,
        run_id,
        region_id,
        period,
        tier,
        composite,
        status,
        reason_factor,
        reason,
        step
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (alert_id) DO NOTHING;`

	listAlertsSQL = `SELECT
        alert_id,
        run_id,
        region_id,
        period,
        tier,
        composite,
        status,
        reason_factor,
        reason,
        step,
        created_at
    FROM alerts
    WHERE ($1::text IS NULL OR tier = $1)
      AND ($2::text IS NULL OR region_id = $2)
      AND ($3::date IS NULL OR period >= $3)
      AND ($4::date IS NULL OR period <= $4)
    ORDER BY created_at DESC
    LIMIT $5;`

	upsertStepReportSQL = `INSERT INTO step_reports (
        run_id,
        step,
        period,
        status,
        regions,
        unscoreable,
        new_count,
        improved_count,
        degraded_count,
        unchanged_count,
        hot_alerts,
        warm_alerts,
        watch_alerts,
        top_movers,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
    )
    ON CONFLICT (run_id, step) DO UPDATE
    SET
        period          = EXCLUDED.period,
        status          = EXCLUDED.status,
        regions         = EXCLUDED.regions,
        unscoreable     = EXCLUDED.unscoreable,
        new_count       = EXCLUDED.new_count,
        improved_count  = EXCLUDED.improved_count,
        degraded_count  = EXCLUDED.degraded_count,
        unchanged_count = EXCLUDED.unchanged_count,
        hot_alerts      = EXCLUDED.hot_alerts,
        warm_alerts     = EXCLUDED.warm_alerts,
        watch_alerts    = EXCLUDED.watch_alerts,
        top_movers      = EXCLUDED.top_movers,
        error           = EXCLUDED.error;`

	listStepReportsSQL = `SELECT
        run_id,
        step,
        period,
        status,
        regions,
        unscoreable,
        new_count,
        improved_count,
        degraded_count,
        unchanged_count,
        hot_alerts,
        warm_alerts,
        watch_alerts,
        top_movers,
        error,
        created_at
    FROM step_reports
    ORDER BY created_at DESC, step DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ScoreStore persists and retrieves scored records.
type ScoreStore interface {
	InsertScores(ctx context.Context, runID uuid.UUID, records []scoring.ScoredRecord) error
	ListScoreHistory(ctx context.Context, regionID string) ([]scoring.ScoredRecord, error)
}

// AlertFilter narrows alert log queries. Nil fields leave the dimension open.
type AlertFilter struct {
	Tier     *string
	RegionID *string
	From     *market.Period
	To       *market.Period
	Limit    int
}

// AlertStore appends to and queries the alert log.
type AlertStore interface {
	InsertAlerts(ctx context.Context, runID uuid.UUID, alerts []alerting.Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, error)
}

// ReportStore persists per-step summaries.
type ReportStore interface {
	UpsertStepReport(ctx context.Context, report StepReport) error
	ListStepReports(ctx context.Context, limit int) ([]StepReport, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to scores, alerts, and step reports.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. Guards a run against a concurrent duplicate on the same
// database.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertScores upserts one period's scored records for a run.
func (s *Store) InsertScores(ctx context.Context, runID uuid.UUID, records []scoring.ScoredRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, rec := range records {
		_, execErr := pool.Exec(ctx, upsertScoreSQL,
			runID,
			rec.RegionID,
			rec.Period.Time(),
			rec.Strategy,
			rec.Composite,
			subscoreArg(rec, scoring.FactorAppreciation),
			subscoreArg(rec, scoring.FactorVelocity),
			subscoreArg(rec, scoring.FactorDistress),
			subscoreArg(rec, scoring.FactorPricingPower),
			subscoreArg(rec, scoring.FactorValueGap),
			rec.CurrentValue.String(),
			rec.City,
			rec.State,
			rec.Metro,
		)
		if execErr != nil {
			return fmt.Errorf("upsert scored record %s/%s: %w", rec.RegionID, rec.Period, execErr)
		}
	}
	return nil
}

func subscoreArg(rec scoring.ScoredRecord, f scoring.Factor) interface{} {
	if v, ok := rec.Subscore(f); ok {
		return v
	}
	return nil
}

// ListScoreHistory returns a region's scored periods in ascending period
// order, most recent run winning when periods overlap across runs.
func (s *Store) ListScoreHistory(ctx context.Context, regionID string) ([]scoring.ScoredRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listScoreHistorySQL, regionID)
	if queryErr != nil {
		return nil, fmt.Errorf("list score history: %w", queryErr)
	}
	defer rows.Close()

	records := make([]scoring.ScoredRecord, 0)
	for rows.Next() {
		rec, scanErr := scanScoredRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanScoredRecord(row pgx.Row) (scoring.ScoredRecord, error) {
	var (
		rec          scoring.ScoredRecord
		period       time.Time
		appreciation *float64
		velocity     *float64
		distress     *float64
		pricingPower *float64
		valueGap     *float64
		currentValue string
	)
	if err := row.Scan(
		&rec.RegionID,
		&period,
		&rec.Strategy,
		&rec.Composite,
		&appreciation,
		&velocity,
		&distress,
		&pricingPower,
		&valueGap,
		&currentValue,
		&rec.City,
		&rec.State,
		&rec.Metro,
	); err != nil {
		return rec, fmt.Errorf("scan scored record: %w", err)
	}

	rec.Period = market.Period{Year: period.Year(), Month: period.Month()}
	value, err := decimal.NewFromString(currentValue)
	if err != nil {
		return rec, fmt.Errorf("parse current value: %w", err)
	}
	rec.CurrentValue = value

	rec.Subscores = make(map[scoring.Factor]float64, 5)
	for f, v := range map[scoring.Factor]*float64{
		scoring.FactorAppreciation: appreciation,
		scoring.FactorVelocity:     velocity,
		scoring.FactorDistress:     distress,
		scoring.FactorPricingPower: pricingPower,
		scoring.FactorValueGap:     valueGap,
	} {
		if v != nil {
			rec.Subscores[f] = *v
		}
	}
	return rec, nil
}

// InsertAlerts appends alerts to the log. The deterministic alert ID makes
// the insert idempotent across step re-runs.
func (s *Store) InsertAlerts(ctx context.Context, runID uuid.UUID, alerts []alerting.Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		_, execErr := pool.Exec(ctx, insertAlertSQL,
			alert.ID,
			runID,
			alert.RegionID,
			alert.Period.Time(),
			string(alert.Tier),
			alert.Composite,
			string(alert.Status),
			string(alert.ReasonFactor),
			alert.Reason,
			alert.Step,
		)
		if execErr != nil {
			return fmt.Errorf("insert alert %s: %w", alert.ID, execErr)
		}
	}
	return nil
}

// ListAlerts queries the alert log by tier, region, and period range.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var from, to interface{}
	if filter.From != nil {
		from = filter.From.Time()
	}
	if filter.To != nil {
		to = filter.To.Time()
	}

	rows, queryErr := pool.Query(ctx, listAlertsSQL, filter.Tier, filter.RegionID, from, to, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0)
	for rows.Next() {
		var (
			rec    AlertRecord
			period time.Time
		)
		if err := rows.Scan(
			&rec.AlertID,
			&rec.RunID,
			&rec.RegionID,
			&period,
			&rec.Tier,
			&rec.Composite,
			&rec.Status,
			&rec.ReasonFactor,
			&rec.Reason,
			&rec.Step,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec.Period = market.Period{Year: period.Year(), Month: period.Month()}
		alerts = append(alerts, rec)
	}
	return alerts, rows.Err()
}

// UpsertStepReport persists a step summary, overwriting on step re-run.
func (s *Store) UpsertStepReport(ctx context.Context, report StepReport) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	movers, err := json.Marshal(report.TopMovers)
	if err != nil {
		return fmt.Errorf("marshal top movers: %w", err)
	}

	_, execErr := pool.Exec(ctx, upsertStepReportSQL,
		report.RunID,
		report.Step,
		report.Period.Time(),
		report.Status,
		report.Regions,
		report.Unscoreable,
		report.NewCount,
		report.ImprovedCount,
		report.DegradedCount,
		report.UnchangedCount,
		report.HotAlerts,
		report.WarmAlerts,
		report.WatchAlerts,
		movers,
		report.Error,
	)
	if execErr != nil {
		return fmt.Errorf("upsert step report %d: %w", report.Step, execErr)
	}
	return nil
}

// ListStepReports returns the most recent step summaries.
func (s *Store) ListStepReports(ctx context.Context, limit int) ([]StepReport, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, queryErr := pool.Query(ctx, listStepReportsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list step reports: %w", queryErr)
	}
	defer rows.Close()

	reports := make([]StepReport, 0)
	for rows.Next() {
		var (
			report StepReport
			period time.Time
			movers []byte
		)
		if err := rows.Scan(
			&report.RunID,
			&report.Step,
			&period,
			&report.Status,
			&report.Regions,
			&report.Unscoreable,
			&report.NewCount,
			&report.ImprovedCount,
			&report.DegradedCount,
			&report.UnchangedCount,
			&report.HotAlerts,
			&report.WarmAlerts,
			&report.WatchAlerts,
			&movers,
			&report.Error,
			&report.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan step report: %w", err)
		}
		report.Period = market.Period{Year: period.Year(), Month: period.Month()}
		if len(movers) > 0 {
			if err := json.Unmarshal(movers, &report.TopMovers); err != nil {
				return nil, fmt.Errorf("unmarshal top movers: %w", err)
			}
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

var (
	_ ScoreStore     = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ ReportStore    = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
