// ABOUTME: Export functionality for a user's persisted dataset.
// ABOUTME: Supports JSON and YAML output formats.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/vitals/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData is the full export payload for one user.
type ExportData struct {
	Version    string                 `json:"version" yaml:"version"`
	ExportedAt time.Time              `json:"exported_at" yaml:"exported_at"`
	Tool       string                 `json:"tool" yaml:"tool"`
	UserID     string                 `json:"user_id" yaml:"user_id"`
	Daily      []*models.DailyMetric  `json:"daily_metrics" yaml:"daily_metrics"`
	Workouts   []*models.Workout      `json:"workouts" yaml:"workouts"`
	Runs       []*models.IngestionRun `json:"ingestion_runs" yaml:"ingestion_runs"`
}

// GetAllData retrieves a user's full dataset for export.
func (d *DB) GetAllData(ctx context.Context, userID string) (*ExportData, error) {
	daily, err := d.ListDaily(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	workouts, err := d.ListWorkouts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	runs, err := d.ListRuns(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Tool:       "vitals",
		UserID:     userID,
		Daily:      daily,
		Workouts:   workouts,
		Runs:       runs,
	}, nil
}

// Marshal renders the export in the requested format: "json" or "yaml".
func (e *ExportData) Marshal(format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(e, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(e)
	default:
		return nil, fmt.Errorf("unknown export format: %q", format)
	}
}
