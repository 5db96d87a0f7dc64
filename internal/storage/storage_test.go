// ABOUTME: Tests for daily metric, workout, run, and token persistence.
// ABOUTME: Runs against a real SQLite database in a temp directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/vitals/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustTx(t *testing.T, db *DB, fn func(tx *Tx) error) {
	t.Helper()
	if err := db.WithTx(context.Background(), fn); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

var testDate = models.Date{Year: 2025, Month: 3, Day: 14}

func TestUpsertDailyPartial(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertDaily(ctx, "u1", &models.DailySample{
			Date:          testDate,
			RecoveryScore: models.Float(80),
			Extra:         map[string]any{"spo2_percentage": 97.0},
		})
	})
	// A second source supplies sleep only; recovery must survive.
	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertDaily(ctx, "u1", &models.DailySample{
			Date:       testDate,
			SleepHours: models.Float(7.5),
			Extra:      map[string]any{"respiratory_rate": 14.2},
		})
	})

	rows, err := db.ListDaily(ctx, "u1")
	if err != nil {
		t.Fatalf("ListDaily failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	m := rows[0]
	if m.RecoveryScore == nil || *m.RecoveryScore != 80 {
		t.Errorf("recovery clobbered by partial upsert: %v", m.RecoveryScore)
	}
	if m.SleepHours == nil || *m.SleepHours != 7.5 {
		t.Errorf("sleep not written: %v", m.SleepHours)
	}
	if m.Extra["spo2_percentage"] != 97.0 || m.Extra["respiratory_rate"] != 14.2 {
		t.Errorf("extra bags not merged: %v", m.Extra)
	}
}

func TestUpsertDailyOverwritesNonNil(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertDaily(ctx, "u1", &models.DailySample{Date: testDate, RecoveryScore: models.Float(80)})
	})
	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertDaily(ctx, "u1", &models.DailySample{Date: testDate, RecoveryScore: models.Float(62)})
	})

	rows, _ := db.ListDaily(ctx, "u1")
	if *rows[0].RecoveryScore != 62 {
		t.Errorf("non-nil value should overwrite: got %f", *rows[0].RecoveryScore)
	}
}

func TestPersistWorkoutsDedup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

	w1 := models.NewWorkout("u1", start, start.Add(45*time.Minute), 45, "running")
	mustTx(t, db, func(tx *Tx) error {
		created, skipped, err := tx.PersistWorkouts(ctx, "u1", []*models.Workout{w1})
		if created != 1 || skipped != 0 {
			t.Errorf("first insert: created=%d skipped=%d", created, skipped)
		}
		return err
	})

	// Same natural key, new UUID: a duplicate.
	w2 := models.NewWorkout("u1", start, start.Add(45*time.Minute), 45, "running")
	// Different start: not a duplicate.
	w3 := models.NewWorkout("u1", start.Add(2*time.Hour), start.Add(3*time.Hour), 45, "running")
	mustTx(t, db, func(tx *Tx) error {
		created, skipped, err := tx.PersistWorkouts(ctx, "u1", []*models.Workout{w2, w3})
		if created != 1 || skipped != 1 {
			t.Errorf("second insert: created=%d skipped=%d", created, skipped)
		}
		return err
	})

	workouts, err := db.ListWorkouts(ctx, "u1")
	if err != nil {
		t.Fatalf("ListWorkouts failed: %v", err)
	}
	if len(workouts) != 2 {
		t.Errorf("expected 2 workouts, got %d", len(workouts))
	}
}

func TestClearUserScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

	mustTx(t, db, func(tx *Tx) error {
		if err := tx.UpsertDaily(ctx, "u1", &models.DailySample{Date: testDate, RecoveryScore: models.Float(80)}); err != nil {
			return err
		}
		if err := tx.UpsertDaily(ctx, "u2", &models.DailySample{Date: testDate, RecoveryScore: models.Float(70)}); err != nil {
			return err
		}
		_, _, err := tx.PersistWorkouts(ctx, "u1", []*models.Workout{
			models.NewWorkout("u1", start, start, 30, "cycling"),
		})
		return err
	})

	mustTx(t, db, func(tx *Tx) error {
		metrics, workouts, err := tx.ClearUser(ctx, "u1")
		if metrics != 1 || workouts != 1 {
			t.Errorf("ClearUser counts: metrics=%d workouts=%d", metrics, workouts)
		}
		return err
	})

	u1, _ := db.ListDaily(ctx, "u1")
	u2, _ := db.ListDaily(ctx, "u2")
	if len(u1) != 0 {
		t.Errorf("u1 rows survived clear: %d", len(u1))
	}
	if len(u2) != 1 {
		t.Errorf("clear leaked into other user: %d rows", len(u2))
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertDaily(ctx, "u1", &models.DailySample{Date: testDate, RecoveryScore: models.Float(80)}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	rows, _ := db.ListDaily(ctx, "u1")
	if len(rows) != 0 {
		t.Errorf("rolled-back write visible: %d rows", len(rows))
	}
}

func TestUpdateDerivedLeavesRawAlone(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertDaily(ctx, "u1", &models.DailySample{Date: testDate, RecoveryScore: models.Float(80)})
	})

	mustTx(t, db, func(tx *Tx) error {
		rows, err := tx.ListDaily(ctx, "u1")
		if err != nil {
			return err
		}
		m := rows[0]
		m.RecoveryScore = models.Float(1) // must not be written back
		m.RecoveryBaseline7d = models.Float(75.5)
		m.AcuteChronicRatio = models.Float(1.1)
		return tx.UpdateDerived(ctx, m)
	})

	rows, _ := db.ListDaily(ctx, "u1")
	m := rows[0]
	if *m.RecoveryScore != 80 {
		t.Errorf("derived update touched raw field: %f", *m.RecoveryScore)
	}
	if m.RecoveryBaseline7d == nil || *m.RecoveryBaseline7d != 75.5 {
		t.Errorf("baseline not stored: %v", m.RecoveryBaseline7d)
	}
	if m.AcuteChronicRatio == nil || *m.AcuteChronicRatio != 1.1 {
		t.Errorf("ratio not stored: %v", m.AcuteChronicRatio)
	}
}

func TestSyncWorkoutAggregates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := testDate.Time().Add(18 * time.Hour)

	mustTx(t, db, func(tx *Tx) error {
		if err := tx.UpsertDaily(ctx, "u1", &models.DailySample{Date: testDate}); err != nil {
			return err
		}
		w1 := models.NewWorkout("u1", start, start, 45, "running")
		w1.Strain = models.Float(10.5)
		w2 := models.NewWorkout("u1", start.Add(3*time.Hour), start.Add(4*time.Hour), 60, "cycling")
		w2.Strain = models.Float(6.5)
		if _, _, err := tx.PersistWorkouts(ctx, "u1", []*models.Workout{w1, w2}); err != nil {
			return err
		}
		return tx.SyncWorkoutAggregates(ctx, "u1")
	})

	rows, _ := db.ListDaily(ctx, "u1")
	m := rows[0]
	if m.WorkoutsCount != 2 {
		t.Errorf("workouts_count: got %d, want 2", m.WorkoutsCount)
	}
	// No daily strain recorded, so the workout sum backfills it.
	if m.StrainScore == nil || *m.StrainScore != 17.0 {
		t.Errorf("strain backfill: got %v, want 17.0", m.StrainScore)
	}
}

func TestSyncWorkoutAggregatesKeepsExistingStrain(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := testDate.Time().Add(18 * time.Hour)

	mustTx(t, db, func(tx *Tx) error {
		if err := tx.UpsertDaily(ctx, "u1", &models.DailySample{Date: testDate, StrainScore: models.Float(12.3)}); err != nil {
			return err
		}
		w := models.NewWorkout("u1", start, start, 45, "running")
		w.Strain = models.Float(10.5)
		if _, _, err := tx.PersistWorkouts(ctx, "u1", []*models.Workout{w}); err != nil {
			return err
		}
		return tx.SyncWorkoutAggregates(ctx, "u1")
	})

	rows, _ := db.ListDaily(ctx, "u1")
	if *rows[0].StrainScore != 12.3 {
		t.Errorf("existing strain overwritten: %f", *rows[0].StrainScore)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run := models.NewIngestionRun("u1", "/tmp/export.zip", models.SourceArchive)
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != models.RunProcessing || got.DataSource != models.SourceArchive {
		t.Errorf("run state wrong: %+v", got)
	}

	if err := db.FailRun(ctx, run, fmt.Errorf("archive was garbage")); err != nil {
		t.Fatalf("FailRun failed: %v", err)
	}
	got, _ = db.GetRun(ctx, run.ID)
	if got.Status != models.RunFailed {
		t.Errorf("status: got %s, want failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "archive was garbage" {
		t.Errorf("error message not recorded: %v", got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not recorded")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	older := models.NewIngestionRun("u1", "a.zip", models.SourceArchive)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := models.NewIngestionRun("u1", "api", models.SourceAPI)
	for _, r := range []*models.IngestionRun{older, newer} {
		if err := db.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID {
		t.Errorf("expected newest run first, got %+v", runs)
	}

	limited, _ := db.ListRuns(ctx, "u1", 1)
	if len(limited) != 1 {
		t.Errorf("limit not applied: got %d", len(limited))
	}
}

func TestTokenRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetToken(ctx, "u1"); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}

	tok := &models.Token{
		UserID:       "u1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		TokenType:    "bearer",
	}
	if err := db.SaveToken(ctx, tok); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	if err := db.TouchLastSync(ctx, "u1", time.Now()); err != nil {
		t.Fatalf("TouchLastSync failed: %v", err)
	}

	// A refresh replaces the pair but keeps the sync timestamp.
	tok.AccessToken = "access-2"
	tok.RefreshToken = "refresh-2"
	if err := db.SaveToken(ctx, tok); err != nil {
		t.Fatalf("SaveToken refresh failed: %v", err)
	}

	got, err := db.GetToken(ctx, "u1")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.AccessToken != "access-2" || got.RefreshToken != "refresh-2" {
		t.Errorf("refresh not persisted: %+v", got)
	}
	if got.LastSyncAt == nil {
		t.Error("last_sync_at lost across refresh")
	}
}
