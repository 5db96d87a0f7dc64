// ABOUTME: Post-ingestion notification hook with a logging default.
// ABOUTME: Fired best-effort after commit; failures never affect runs.
package ingest

import (
	"log/slog"

	"github.com/harperreed/vitals/internal/models"
)

// Notifier receives a completed run after its transaction commits.
// Implementations must not assume they run on the ingestion goroutine.
type Notifier interface {
	IngestionCompleted(run *models.IngestionRun, result *Result)
}

// LogNotifier writes a structured summary line per completed run.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) IngestionCompleted(run *models.IngestionRun, result *Result) {
	n.Log.Info("ingestion completed",
		"run", run.ID,
		"user", run.UserID,
		"source", run.DataSource,
		"days", result.DaysUpserted,
		"workouts_created", result.WorkoutsCreated,
		"workouts_skipped", result.WorkoutsSkipped,
		"derived_updated", result.DerivedUpdated,
	)
}
