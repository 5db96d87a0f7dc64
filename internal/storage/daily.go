// ABOUTME: Daily metric persistence: partial upsert, listing, derived
// ABOUTME: column updates, and workout aggregate sync.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/vitals/internal/models"
)

const dailyColumns = `id, user_id, date, recovery_score, strain_score, sleep_hours, hrv, resting_hr, workouts_count,
	recovery_baseline_7d, recovery_baseline_30d, recovery_z_score,
	strain_baseline_7d, strain_baseline_30d, strain_z_score,
	sleep_baseline_7d, sleep_baseline_30d, sleep_z_score,
	hrv_baseline_7d, hrv_baseline_30d, hrv_z_score,
	rhr_baseline_7d, rhr_baseline_30d, rhr_z_score,
	acute_chronic_ratio, sleep_debt, consistency_score,
	extra, created_at, updated_at`

// UpsertDaily inserts or partially updates the row for (user, date).
// Only non-nil sample fields overwrite existing values; the extra bag
// is merged key-wise with whatever is already stored.
func (t *Tx) UpsertDaily(ctx context.Context, userID string, s *models.DailySample) error {
	return upsertDaily(ctx, t.tx, userID, s)
}

func upsertDaily(ctx context.Context, q querier, userID string, s *models.DailySample) error {
	extraJSON, err := mergedExtra(ctx, q, userID, s)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO daily_metrics (
			user_id, date, recovery_score, strain_score, sleep_hours, hrv, resting_hr,
			sleep_debt, consistency_score, extra, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			recovery_score = COALESCE(excluded.recovery_score, daily_metrics.recovery_score),
			strain_score = COALESCE(excluded.strain_score, daily_metrics.strain_score),
			sleep_hours = COALESCE(excluded.sleep_hours, daily_metrics.sleep_hours),
			hrv = COALESCE(excluded.hrv, daily_metrics.hrv),
			resting_hr = COALESCE(excluded.resting_hr, daily_metrics.resting_hr),
			sleep_debt = COALESCE(excluded.sleep_debt, daily_metrics.sleep_debt),
			consistency_score = COALESCE(excluded.consistency_score, daily_metrics.consistency_score),
			extra = COALESCE(excluded.extra, daily_metrics.extra),
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		userID,
		s.Date.String(),
		s.RecoveryScore,
		s.StrainScore,
		s.SleepHours,
		s.HRV,
		s.RestingHR,
		s.SleepDebt,
		s.ConsistencyScore,
		extraJSON,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert daily metric %s/%s: %w", userID, s.Date, err)
	}
	return nil
}

// mergedExtra combines the sample's extra bag with the stored one,
// incoming keys winning. Returns nil when neither side has data so the
// column stays NULL.
func mergedExtra(ctx context.Context, q querier, userID string, s *models.DailySample) (any, error) {
	var stored sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT extra FROM daily_metrics WHERE user_id = ? AND date = ?`,
		userID, s.Date.String(),
	).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read existing extra for %s/%s: %w", userID, s.Date, err)
	}

	merged := make(map[string]any)
	if stored.Valid && stored.String != "" {
		if err := json.Unmarshal([]byte(stored.String), &merged); err != nil {
			return nil, fmt.Errorf("decode stored extra for %s/%s: %w", userID, s.Date, err)
		}
	}
	for k, v := range s.Extra {
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode extra for %s/%s: %w", userID, s.Date, err)
	}
	return string(data), nil
}

// ListDaily returns a user's rows ordered by date ascending.
func (t *Tx) ListDaily(ctx context.Context, userID string) ([]*models.DailyMetric, error) {
	return listDaily(ctx, t.tx, userID)
}

// ListDaily returns a user's rows ordered by date ascending.
func (d *DB) ListDaily(ctx context.Context, userID string) ([]*models.DailyMetric, error) {
	return listDaily(ctx, d.db, userID)
}

func listDaily(ctx context.Context, q querier, userID string) ([]*models.DailyMetric, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+dailyColumns+` FROM daily_metrics WHERE user_id = ? ORDER BY date ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	defer rows.Close()

	var out []*models.DailyMetric
	for rows.Next() {
		m, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	return out, nil
}

func scanDaily(rows *sql.Rows) (*models.DailyMetric, error) {
	var m models.DailyMetric
	var dateStr string
	var workoutsCount sql.NullInt64
	var extra sql.NullString
	var createdAt, updatedAt sql.NullString

	err := rows.Scan(
		&m.ID, &m.UserID, &dateStr,
		&m.RecoveryScore, &m.StrainScore, &m.SleepHours, &m.HRV, &m.RestingHR, &workoutsCount,
		&m.RecoveryBaseline7d, &m.RecoveryBaseline30d, &m.RecoveryZScore,
		&m.StrainBaseline7d, &m.StrainBaseline30d, &m.StrainZScore,
		&m.SleepBaseline7d, &m.SleepBaseline30d, &m.SleepZScore,
		&m.HRVBaseline7d, &m.HRVBaseline30d, &m.HRVZScore,
		&m.RHRBaseline7d, &m.RHRBaseline30d, &m.RHRZScore,
		&m.AcuteChronicRatio, &m.Derived.SleepDebt, &m.Derived.ConsistencyScore,
		&extra, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan daily metric: %w", err)
	}

	m.Date, err = models.ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("scan daily metric date: %w", err)
	}
	if workoutsCount.Valid {
		m.WorkoutsCount = int(workoutsCount.Int64)
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &m.Extra); err != nil {
			return nil, fmt.Errorf("decode extra for row %d: %w", m.ID, err)
		}
	}
	if createdAt.Valid {
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt.String)
	}
	if updatedAt.Valid {
		m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt.String)
	}
	return &m, nil
}

// UpdateDerived writes a row's feature-engineered columns. Raw fields
// are untouched.
func (t *Tx) UpdateDerived(ctx context.Context, m *models.DailyMetric) error {
	query := `
		UPDATE daily_metrics SET
			recovery_baseline_7d = ?, recovery_baseline_30d = ?, recovery_z_score = ?,
			strain_baseline_7d = ?, strain_baseline_30d = ?, strain_z_score = ?,
			sleep_baseline_7d = ?, sleep_baseline_30d = ?, sleep_z_score = ?,
			hrv_baseline_7d = ?, hrv_baseline_30d = ?, hrv_z_score = ?,
			rhr_baseline_7d = ?, rhr_baseline_30d = ?, rhr_z_score = ?,
			acute_chronic_ratio = ?, sleep_debt = ?, consistency_score = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err := t.tx.ExecContext(ctx, query,
		m.RecoveryBaseline7d, m.RecoveryBaseline30d, m.RecoveryZScore,
		m.StrainBaseline7d, m.StrainBaseline30d, m.StrainZScore,
		m.SleepBaseline7d, m.SleepBaseline30d, m.SleepZScore,
		m.HRVBaseline7d, m.HRVBaseline30d, m.HRVZScore,
		m.RHRBaseline7d, m.RHRBaseline30d, m.RHRZScore,
		m.AcuteChronicRatio, m.Derived.SleepDebt, m.Derived.ConsistencyScore,
		time.Now().UTC().Format(time.RFC3339),
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("update derived columns for row %d: %w", m.ID, err)
	}
	return nil
}

// SyncWorkoutAggregates refreshes workouts_count from the workouts
// table and backfills strain_score from workout strain sums on days
// where the daily row has none.
func (t *Tx) SyncWorkoutAggregates(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE daily_metrics SET workouts_count = (
			SELECT COUNT(*) FROM workouts w
			WHERE w.user_id = daily_metrics.user_id AND w.date = daily_metrics.date
		) WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sync workout counts: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE daily_metrics SET strain_score = (
			SELECT SUM(w.strain) FROM workouts w
			WHERE w.user_id = daily_metrics.user_id AND w.date = daily_metrics.date
		) WHERE user_id = ?
			AND (strain_score IS NULL OR strain_score = 0)
			AND EXISTS (
				SELECT 1 FROM workouts w
				WHERE w.user_id = daily_metrics.user_id AND w.date = daily_metrics.date
					AND w.strain IS NOT NULL
			)`, userID)
	if err != nil {
		return fmt.Errorf("backfill strain from workouts: %w", err)
	}
	return nil
}

// ClearUser deletes all of a user's daily metrics and workouts. Callers
// only do this ahead of a fresh archive ingestion, inside the same
// transaction as the subsequent writes.
func (t *Tx) ClearUser(ctx context.Context, userID string) (int64, int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM daily_metrics WHERE user_id = ?`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("clear daily metrics: %w", err)
	}
	metrics, _ := res.RowsAffected()

	res, err = t.tx.ExecContext(ctx, `DELETE FROM workouts WHERE user_id = ?`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("clear workouts: %w", err)
	}
	workouts, _ := res.RowsAffected()
	return metrics, workouts, nil
}
