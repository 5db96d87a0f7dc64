// ABOUTME: Ingestion orchestrator for archive uploads and API syncs.
// ABOUTME: One transaction per run; run rows committed outside it.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/vitals/internal/archive"
	"github.com/harperreed/vitals/internal/features"
	"github.com/harperreed/vitals/internal/models"
	"github.com/harperreed/vitals/internal/storage"
	"github.com/harperreed/vitals/internal/whoop"
)

// VendorClient is the API surface the orchestrator needs from the
// vendor client. Satisfied by *whoop.Client.
type VendorClient interface {
	EnsureToken(ctx context.Context, tok *models.Token, store whoop.TokenStore) (*models.Token, error)
	GetCycles(ctx context.Context, accessToken string, start, end time.Time) ([]whoop.CycleRecord, error)
	GetSleeps(ctx context.Context, accessToken string, start, end time.Time) ([]whoop.SleepRecord, error)
	GetRecoveries(ctx context.Context, accessToken string, start, end time.Time) ([]whoop.RecoveryRecord, error)
	GetWorkouts(ctx context.Context, accessToken string, start, end time.Time) ([]whoop.WorkoutRecord, error)
}

// Options tunes orchestrator behavior.
type Options struct {
	// UploadsDir retains a copy of each ingested archive when
	// KeepUploads is set.
	UploadsDir  string
	KeepUploads bool

	// SyncDaysBack is the API sync window. Defaults to two years.
	SyncDaysBack int
}

// Result summarizes one ingestion run.
type Result struct {
	Run             *models.IngestionRun
	DaysUpserted    int
	WorkoutsCreated int
	WorkoutsSkipped int
	MetricsCleared  int64
	WorkoutsCleared int64
	DerivedUpdated  int
}

// Ingestor coordinates parsing, persistence, and feature recompute.
// Runs for the same user must not overlap; runs for different users
// share only the vendor rate limiter and database locking.
type Ingestor struct {
	store  *storage.DB
	client VendorClient
	engine features.Engine
	notify Notifier
	log    *slog.Logger
	opts   Options
}

func NewIngestor(store *storage.DB, client VendorClient, engine features.Engine, notify Notifier, log *slog.Logger, opts Options) *Ingestor {
	if opts.SyncDaysBack <= 0 {
		opts.SyncDaysBack = 730
	}
	if notify == nil {
		notify = &LogNotifier{Log: log}
	}
	return &Ingestor{
		store:  store,
		client: client,
		engine: engine,
		notify: notify,
		log:    log,
		opts:   opts,
	}
}

// IngestArchive processes one uploaded export zip. An archive is a full
// export, so the user's daily metrics and workouts are cleared first
// inside the same transaction: a failed run rolls back to the prior
// state. The run row itself is committed separately so failures stay
// visible.
func (i *Ingestor) IngestArchive(ctx context.Context, userID, zipPath string) (*Result, error) {
	if _, err := os.Stat(zipPath); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	source := zipPath
	if i.opts.KeepUploads {
		stored, err := i.retainUpload(userID, zipPath)
		if err != nil {
			return nil, fmt.Errorf("retain upload: %w", err)
		}
		source = stored
	}

	run := models.NewIngestionRun(userID, source, models.SourceArchive)
	if err := i.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	res, err := i.processArchive(ctx, run, userID, source)
	return i.finishRun(ctx, run, res, err)
}

func (i *Ingestor) processArchive(ctx context.Context, run *models.IngestionRun, userID, zipPath string) (*Result, error) {
	extractDir, err := os.MkdirTemp("", "vitals-archive-*")
	if err != nil {
		return nil, fmt.Errorf("create extract dir: %w", err)
	}
	defer os.RemoveAll(extractDir)

	if err := archive.Extract(zipPath, extractDir); err != nil {
		return nil, err
	}
	samples, workouts, err := archive.Normalize(userID, extractDir, i.log)
	if err != nil {
		return nil, err
	}

	res := &Result{Run: run}
	err = i.store.WithTx(ctx, func(tx *storage.Tx) error {
		metrics, cleared, err := tx.ClearUser(ctx, userID)
		if err != nil {
			return err
		}
		res.MetricsCleared, res.WorkoutsCleared = metrics, cleared
		return i.persist(ctx, tx, userID, samples, workouts, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SyncFromAPI pulls the recent window from the vendor API and merges it
// into existing data without clearing anything. Cycles are required;
// the other domains degrade to empty sets on failure.
func (i *Ingestor) SyncFromAPI(ctx context.Context, userID string) (*Result, error) {
	tok, err := i.store.GetToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load credentials for %s: %w", userID, err)
	}
	tok, err = i.client.EnsureToken(ctx, tok, i.store)
	if err != nil {
		return nil, err
	}

	run := models.NewIngestionRun(userID, "api", models.SourceAPI)
	if err := i.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	res, err := i.processSync(ctx, run, userID, tok)
	return i.finishRun(ctx, run, res, err)
}

func (i *Ingestor) processSync(ctx context.Context, run *models.IngestionRun, userID string, tok *models.Token) (*Result, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -i.opts.SyncDaysBack)

	cycles, err := i.client.GetCycles(ctx, tok.AccessToken, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch cycles: %w", err)
	}

	sleeps, err := i.client.GetSleeps(ctx, tok.AccessToken, start, end)
	if err != nil {
		i.log.Warn("sleep fetch failed, continuing without", "user", userID, "error", err)
		sleeps = nil
	}
	recoveries, err := i.client.GetRecoveries(ctx, tok.AccessToken, start, end)
	if err != nil {
		i.log.Warn("recovery fetch failed, continuing without", "user", userID, "error", err)
		recoveries = nil
	}
	workoutRecs, err := i.client.GetWorkouts(ctx, tok.AccessToken, start, end)
	if err != nil {
		i.log.Warn("workout fetch failed, continuing without", "user", userID, "error", err)
		workoutRecs = nil
	}

	samples := whoop.BuildDailySamples(cycles, sleeps, recoveries, i.log)
	workouts := whoop.BuildWorkouts(userID, workoutRecs, i.log)

	res := &Result{Run: run}
	err = i.store.WithTx(ctx, func(tx *storage.Tx) error {
		return i.persist(ctx, tx, userID, samples, workouts, res)
	})
	if err != nil {
		return nil, err
	}
	if err := i.store.TouchLastSync(ctx, userID, time.Now()); err != nil {
		i.log.Warn("record last sync time", "user", userID, "error", err)
	}
	return res, nil
}

// persist writes samples and workouts, refreshes workout aggregates,
// and recomputes derived features over the user's full history.
func (i *Ingestor) persist(ctx context.Context, tx *storage.Tx, userID string, samples []*models.DailySample, workouts []*models.Workout, res *Result) error {
	for _, s := range samples {
		if err := tx.UpsertDaily(ctx, userID, s); err != nil {
			return fmt.Errorf("upsert %s: %w", s.Date, err)
		}
	}
	res.DaysUpserted = len(samples)

	created, skipped, err := tx.PersistWorkouts(ctx, userID, workouts)
	if err != nil {
		return err
	}
	res.WorkoutsCreated, res.WorkoutsSkipped = created, skipped

	if err := tx.SyncWorkoutAggregates(ctx, userID); err != nil {
		return err
	}

	updated, err := i.recomputeTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	res.DerivedUpdated = updated
	return nil
}

// Recompute re-derives rolling features from stored data without
// touching raw fields. Useful after formula changes.
func (i *Ingestor) Recompute(ctx context.Context, userID string) (int, error) {
	var updated int
	err := i.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		updated, err = i.recomputeTx(ctx, tx, userID)
		return err
	})
	return updated, err
}

func (i *Ingestor) recomputeTx(ctx context.Context, tx *storage.Tx, userID string) (int, error) {
	rows, err := tx.ListDaily(ctx, userID)
	if err != nil {
		return 0, err
	}
	changed := i.engine.Recompute(rows)
	for _, row := range rows {
		if err := tx.UpdateDerived(ctx, row); err != nil {
			return 0, fmt.Errorf("update derived %s: %w", row.Date, err)
		}
	}
	return changed, nil
}

// finishRun records the terminal state and fires the notifier after a
// successful commit.
func (i *Ingestor) finishRun(ctx context.Context, run *models.IngestionRun, res *Result, runErr error) (*Result, error) {
	if runErr != nil {
		if err := i.store.FailRun(ctx, run, runErr); err != nil {
			i.log.Error("mark run failed", "run", run.ID, "error", err)
		}
		return nil, runErr
	}
	if err := i.store.CompleteRun(ctx, run); err != nil {
		i.log.Error("mark run completed", "run", run.ID, "error", err)
	}
	go i.notify.IngestionCompleted(run, res)
	return res, nil
}

// retainUpload copies the archive under the uploads dir so a run can be
// reprocessed from its recorded source path.
func (i *Ingestor) retainUpload(userID, zipPath string) (string, error) {
	if err := os.MkdirAll(i.opts.UploadsDir, 0750); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s.zip", userID, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	dest := filepath.Join(i.opts.UploadsDir, name)

	src, err := os.Open(zipPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	return dest, out.Close()
}
