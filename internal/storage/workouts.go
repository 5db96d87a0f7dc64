// ABOUTME: Workout persistence with natural-key deduplication.
// ABOUTME: Re-ingesting overlapping data never creates duplicates.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/vitals/internal/models"
)

// PersistWorkouts inserts the candidates that are not already present
// under the (user, start_time, duration, sport_type) dedup key.
// Returns (created, skipped).
func (t *Tx) PersistWorkouts(ctx context.Context, userID string, workouts []*models.Workout) (int, int, error) {
	created, skipped := 0, 0
	for _, w := range workouts {
		var exists int
		err := t.tx.QueryRowContext(ctx, `
			SELECT 1 FROM workouts
			WHERE user_id = ? AND start_time = ? AND duration_minutes = ? AND sport_type = ?
			LIMIT 1`,
			userID,
			w.StartTime.UTC().Format(time.RFC3339),
			w.DurationMinutes,
			w.SportType,
		).Scan(&exists)
		switch {
		case err == nil:
			skipped++
			continue
		case err != sql.ErrNoRows:
			return created, skipped, fmt.Errorf("check workout dedup key: %w", err)
		}

		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO workouts (
				id, user_id, source_workout_id, date, start_time, end_time,
				duration_minutes, sport_type, avg_hr, max_hr, strain, calories, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID.String(),
			userID,
			w.SourceWorkoutID,
			w.Date.String(),
			w.StartTime.UTC().Format(time.RFC3339),
			w.EndTime.UTC().Format(time.RFC3339),
			w.DurationMinutes,
			w.SportType,
			w.AvgHR,
			w.MaxHR,
			w.Strain,
			w.Calories,
			w.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return created, skipped, fmt.Errorf("insert workout %s: %w", w.ID, err)
		}
		created++
	}
	return created, skipped, nil
}

// ListWorkouts returns a user's workouts ordered by start time.
func (d *DB) ListWorkouts(ctx context.Context, userID string) ([]*models.Workout, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, source_workout_id, date, start_time, end_time,
			duration_minutes, sport_type, avg_hr, max_hr, strain, calories, created_at
		FROM workouts WHERE user_id = ? ORDER BY start_time ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	defer rows.Close()

	var out []*models.Workout
	for rows.Next() {
		var w models.Workout
		var id, dateStr, startStr string
		var sourceID, endStr, createdStr sql.NullString
		err := rows.Scan(&id, &w.UserID, &sourceID, &dateStr, &startStr, &endStr,
			&w.DurationMinutes, &w.SportType, &w.AvgHR, &w.MaxHR, &w.Strain, &w.Calories, &createdStr)
		if err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		w.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse workout id %q: %w", id, err)
		}
		w.SourceWorkoutID = sourceID.String
		if w.Date, err = models.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("parse workout date %q: %w", dateStr, err)
		}
		if w.StartTime, err = time.Parse(time.RFC3339, startStr); err != nil {
			return nil, fmt.Errorf("parse workout start time %q: %w", startStr, err)
		}
		if endStr.Valid {
			w.EndTime, _ = time.Parse(time.RFC3339, endStr.String)
		}
		if createdStr.Valid {
			w.CreatedAt, _ = time.Parse(time.RFC3339, createdStr.String)
		}
		out = append(out, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return out, nil
}
