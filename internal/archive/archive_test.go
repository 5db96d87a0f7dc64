// ABOUTME: Tests for archive extraction, classification, and normalization.
// ABOUTME: Builds real zip/CSV fixtures in temp directories.
package archive

import (
	"archive/zip"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func buildZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

const cyclesCSV = `Cycle start time,Timezone offset,Recovery score %,Day Strain,Heart rate variability (ms),Resting heart rate (bpm),Asleep duration (min),Sleep debt (min),Sleep consistency %,Energy burned (cal)
2025-03-15 04:30:00,-05:00,65,12.4,48,52,420,30,88,2100
2025-03-15 12:00:00,-05:00,80,9.1,55,50,450,0,90,1900
`

func TestExtractAndClassify(t *testing.T) {
	zipPath := buildZip(t, map[string]string{
		"export/physiological_cycles.csv": cyclesCSV,
		"export/sleeps.csv":               "date,sleep_hours\n2025-03-14,7.5\n",
		"export/random_notes.csv":         "a,b\n1,2\n",
		"export/readme.txt":               "not a csv",
	})

	dest := t.TempDir()
	if err := Extract(zipPath, dest); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	hits, err := Classify(dest, testLogger())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(hits[DomainCycles]) != 1 {
		t.Errorf("expected 1 cycles file, got %d", len(hits[DomainCycles]))
	}
	if len(hits[DomainSleep]) != 1 {
		t.Errorf("expected 1 sleep file, got %d", len(hits[DomainSleep]))
	}
	for domain, paths := range hits {
		for _, p := range paths {
			if filepath.Base(p) == "random_notes.csv" {
				t.Errorf("unclassifiable file bucketed as %s", domain)
			}
		}
	}
}

func TestExtractRejectsNonZip(t *testing.T) {
	path := writeFile(t, t.TempDir(), "export.zip", "this is not a zip")
	err := Extract(path, t.TempDir())
	if !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("expected ErrInvalidArchive, got %v", err)
	}
}

func TestExtractRejectsEscapingEntry(t *testing.T) {
	zipPath := buildZip(t, map[string]string{
		"../evil.csv": "date\n2025-01-01\n",
	})
	err := Extract(zipPath, t.TempDir())
	if !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("expected ErrInvalidArchive for escaping entry, got %v", err)
	}
}

func TestNormalizePrefersCycles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "physiological_cycles.csv", cyclesCSV)
	// A legacy sleep file is present too; the consolidated format wins
	// and the legacy rows are ignored entirely.
	writeFile(t, dir, "sleeps.csv", "date,sleep_hours\n2025-03-20,9.9\n")

	samples, _, err := Normalize("u1", dir, testLogger())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	for _, s := range samples {
		if s.Date.String() == "2025-03-20" {
			t.Error("legacy sleep row leaked past the cycles format")
		}
	}
}

func TestNormalizeCyclesBucketing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "physiological_cycles.csv", cyclesCSV)

	samples, _, err := Normalize("u1", dir, testLogger())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	byDate := map[string]bool{}
	for _, s := range samples {
		byDate[s.Date.String()] = true
	}
	// 04:30 UTC at -05:00 is 23:30 the previous evening; 12:00 UTC is
	// 07:00 the same day.
	if !byDate["2025-03-14"] || !byDate["2025-03-15"] {
		t.Errorf("bucketing wrong, got dates %v", byDate)
	}

	for _, s := range samples {
		if s.Date.String() != "2025-03-14" {
			continue
		}
		if s.SleepHours == nil || *s.SleepHours != 7.0 {
			t.Errorf("asleep minutes not converted to hours: %v", s.SleepHours)
		}
		if s.SleepDebt == nil || *s.SleepDebt != 0.5 {
			t.Errorf("sleep debt minutes not converted to hours: %v", s.SleepDebt)
		}
		if s.Extra["energy_burned_(cal)"] != 2100.0 {
			t.Errorf("unmapped column not preserved: %v", s.Extra)
		}
	}
}

func TestNormalizeOffsetFallbackSpansFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "physiological_cycles.csv", cyclesCSV)
	// A second export chunk with no timezone column at all: its rows
	// borrow the first offset found anywhere in the batch.
	writeFile(t, dir, "2024_physiological_cycles.csv",
		"Cycle start time,Recovery score %\n2025-04-02 04:30:00,77\n")

	samples, _, err := Normalize("u1", dir, testLogger())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	byDate := map[string]bool{}
	for _, s := range samples {
		byDate[s.Date.String()] = true
	}
	// 04:30 UTC at the sibling file's -05:00 is the previous evening.
	if !byDate["2025-04-01"] {
		t.Errorf("offset-less row did not borrow the sibling file's offset, got dates %v", byDate)
	}
	if byDate["2025-04-02"] {
		t.Error("offset-less row bucketed on UTC instead of the batch offset")
	}
}

func TestNormalizeDedupSameDate(t *testing.T) {
	// Two cycles starting on the same local date: the higher recovery
	// score wins.
	csv := `Cycle start time,Timezone offset,Recovery score %,Day Strain
2025-03-15 10:00:00,+00:00,55,11.0
2025-03-15 16:00:00,+00:00,82,4.2
`
	dir := t.TempDir()
	writeFile(t, dir, "physiological_cycles.csv", csv)

	samples, _, err := Normalize("u1", dir, testLogger())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 deduped sample, got %d", len(samples))
	}
	if *samples[0].RecoveryScore != 82 {
		t.Errorf("dedup kept wrong cycle: recovery %f", *samples[0].RecoveryScore)
	}
}

func TestNormalizeDedupTieBreak(t *testing.T) {
	// Equal recovery scores: the earliest cycle start wins.
	csv := `Cycle start time,Timezone offset,Recovery score %,Day Strain
2025-03-15 16:00:00,+00:00,70,4.2
2025-03-15 10:00:00,+00:00,70,11.0
`
	dir := t.TempDir()
	writeFile(t, dir, "physiological_cycles.csv", csv)

	samples, _, err := Normalize("u1", dir, testLogger())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if *samples[0].StrainScore != 11.0 {
		t.Errorf("tie-break kept wrong cycle: strain %f", *samples[0].StrainScore)
	}
}

func TestNormalizeLegacyMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sleeps.csv", "date,sleep_hours\n2025-03-14,7.5\n2025-03-15,6.0\n")
	writeFile(t, dir, "recovery.csv", "date,recovery_score,hrv,resting_heart_rate\n2025-03-14,77,52,49\n")
	writeFile(t, dir, "strain.csv", "date,day_strain\n2025-03-14,13.1\n")
	writeFile(t, dir, "journal_entries.csv", "date,caffeine\n2025-03-14,yes\n")

	samples, _, err := Normalize("u1", dir, testLogger())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 merged samples, got %d", len(samples))
	}

	s := samples[0]
	if s.Date.String() != "2025-03-14" {
		t.Fatalf("expected first sample on 2025-03-14, got %s", s.Date)
	}
	if *s.SleepHours != 7.5 || *s.RecoveryScore != 77 || *s.StrainScore != 13.1 {
		t.Errorf("fields not merged: sleep=%v recovery=%v strain=%v", s.SleepHours, s.RecoveryScore, s.StrainScore)
	}
	if s.Extra["caffeine"] != "yes" {
		t.Errorf("journal extra missing: %v", s.Extra)
	}
	if samples[1].RecoveryScore != nil {
		t.Error("outer join invented a recovery score")
	}
}

func TestNormalizeWorkouts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sleeps.csv", "date,sleep_hours\n2025-03-14,7.5\n")
	writeFile(t, dir, "workouts.csv",
		"Workout start time,Workout end time,Duration (minutes),Sport,Strain,Calories\n"+
			"2025-03-14 18:00:00,2025-03-14 18:45:00,45,running,14.2,520\n"+
			"2025-03-14 06:00:00,,30,,,\n")

	_, workouts, err := Normalize("u1", dir, testLogger())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(workouts) != 2 {
		t.Fatalf("expected 2 workouts, got %d", len(workouts))
	}
	if workouts[0].SportType != "running" || workouts[0].DurationMinutes != 45 {
		t.Errorf("workout fields wrong: %+v", workouts[0])
	}
	if workouts[1].SportType != "unknown" {
		t.Errorf("missing sport should default to unknown, got %s", workouts[1].SportType)
	}
	// Archive exports carry no vendor workout id; never invent one.
	for _, w := range workouts {
		if w.SourceWorkoutID != "" {
			t.Errorf("archive workout got a fabricated source id %q", w.SourceWorkoutID)
		}
	}
}

func TestNormalizeNoCSVs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.txt", "nothing here")

	_, _, err := Normalize("u1", dir, testLogger())
	if !errors.Is(err, ErrNoCSVFiles) {
		t.Errorf("expected ErrNoCSVFiles, got %v", err)
	}
}

func TestNormalizeNoData(t *testing.T) {
	dir := t.TempDir()
	// Classifiable but empty of usable rows.
	writeFile(t, dir, "sleeps.csv", "date,sleep_hours\n")

	_, _, err := Normalize("u1", dir, testLogger())
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestReadTableEncodingFallback(t *testing.T) {
	dir := t.TempDir()
	// "Entraînement" in Latin-1: 0xEE is not valid UTF-8.
	raw := []byte("date,activity\n2025-03-14,Entra\xeenement\n")
	path := filepath.Join(dir, "journal.csv")
	if err := os.WriteFile(path, raw, 0640); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tab, err := readTable(path)
	if err != nil {
		t.Fatalf("readTable failed: %v", err)
	}
	if len(tab.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(tab.rows))
	}
	if got := tab.rows[0]["activity"]; got != "Entraînement" {
		t.Errorf("Latin-1 fallback mangled value: %q", got)
	}
}

func TestReadTableBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sleeps.csv", "\ufeffdate,sleep_hours\n2025-03-14,7.5\n")

	tab, err := readTable(path)
	if err != nil {
		t.Fatalf("readTable failed: %v", err)
	}
	if tab.findColumn("date") == "" {
		t.Errorf("BOM not stripped from first header: %v", tab.columns)
	}
}
