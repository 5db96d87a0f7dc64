// ABOUTME: IngestionRun persistence for observability of ingestions.
// ABOUTME: Run rows commit outside the ingestion transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/vitals/internal/models"
)

// CreateRun inserts a run row. This happens outside the ingestion
// transaction so a failed run remains visible afterwards.
func (d *DB) CreateRun(ctx context.Context, run *models.IngestionRun) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO ingestion_runs (id, user_id, source, status, data_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(),
		run.UserID,
		run.Source,
		string(run.Status),
		string(run.DataSource),
		run.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create ingestion run: %w", err)
	}
	return nil
}

// CompleteRun marks a run completed with the current time.
func (d *DB) CompleteRun(ctx context.Context, run *models.IngestionRun) error {
	now := time.Now()
	run.Status = models.RunCompleted
	run.CompletedAt = &now
	_, err := d.db.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, completed_at = ? WHERE id = ?`,
		string(models.RunCompleted), now.UTC().Format(time.RFC3339), run.ID.String())
	if err != nil {
		return fmt.Errorf("complete ingestion run: %w", err)
	}
	return nil
}

// FailRun marks a run failed and records the error message.
func (d *DB) FailRun(ctx context.Context, run *models.IngestionRun, cause error) error {
	now := time.Now()
	msg := cause.Error()
	run.Status = models.RunFailed
	run.CompletedAt = &now
	run.ErrorMessage = &msg
	_, err := d.db.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`,
		string(models.RunFailed), now.UTC().Format(time.RFC3339), msg, run.ID.String())
	if err != nil {
		return fmt.Errorf("fail ingestion run: %w", err)
	}
	return nil
}

// GetRun retrieves one run by id.
func (d *DB) GetRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, user_id, source, status, data_source, created_at, completed_at, error_message
		FROM ingestion_runs WHERE id = ?`, id.String())
	return scanRun(row)
}

// ListRuns returns a user's runs, newest first.
func (d *DB) ListRuns(ctx context.Context, userID string, limit int) ([]*models.IngestionRun, error) {
	query := `
		SELECT id, user_id, source, status, data_source, created_at, completed_at, error_message
		FROM ingestion_runs WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ingestion runs: %w", err)
	}
	defer rows.Close()

	var out []*models.IngestionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ingestion runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.IngestionRun, error) {
	var run models.IngestionRun
	var id, status, dataSource, createdStr string
	var completedStr, errMsg sql.NullString
	err := row.Scan(&id, &run.UserID, &run.Source, &status, &dataSource, &createdStr, &completedStr, &errMsg)
	if err != nil {
		return nil, fmt.Errorf("scan ingestion run: %w", err)
	}
	run.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.Status = models.RunStatus(status)
	run.DataSource = models.DataSource(dataSource)
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	if completedStr.Valid {
		t, _ := time.Parse(time.RFC3339, completedStr.String)
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	return &run, nil
}
