// ABOUTME: Wearable export archive handling: unzip, classify, normalize.
// ABOUTME: Turns a zip of domain CSVs into daily samples plus workouts.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/vitals/internal/models"
)

var (
	// ErrInvalidArchive means the upload was not a readable zip file.
	ErrInvalidArchive = errors.New("invalid zip archive")

	// ErrNoCSVFiles means the archive held nothing classifiable.
	ErrNoCSVFiles = errors.New("no CSV files found in archive: expected sleep, recovery, strain, workout, or physiological_cycles CSVs")

	// ErrNoData means CSVs were found but none yielded usable rows.
	ErrNoData = errors.New("no valid data found in archive CSV files")
)

// Domain identifies the kind of data a CSV file carries.
type Domain string

const (
	DomainCycles   Domain = "physiological_cycles"
	DomainSleep    Domain = "sleep"
	DomainRecovery Domain = "recovery"
	DomainStrain   Domain = "strain"
	DomainWorkouts Domain = "workouts"
	DomainJournal  Domain = "journal"
)

// classifiers maps filename keywords to domains, checked in order.
// First match wins, so the consolidated cycles file is never mistaken
// for a recovery file even though both names mention "cycles".
var classifiers = []struct {
	domain   Domain
	keywords []string
}{
	{DomainCycles, []string{"physiological_cycles"}},
	{DomainSleep, []string{"sleep"}},
	{DomainRecovery, []string{"recovery"}},
	{DomainStrain, []string{"strain"}},
	{DomainWorkouts, []string{"workout"}},
	{DomainJournal, []string{"journal", "entries"}},
}

// Extract unpacks the zip at zipPath into destDir. Entries escaping the
// destination are rejected.
func Extract(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("create extract directory: %w", err)
	}

	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("%w: entry %q escapes extraction directory", ErrInvalidArchive, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("create directory %s: %w", f.Name, err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name, err)
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}

// Classify walks dir and buckets every CSV file by filename keyword,
// case-insensitive. Unmatched CSVs are logged and ignored.
func Classify(dir string, log *slog.Logger) (map[Domain][]string, error) {
	hits := make(map[Domain][]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".csv") {
			return nil
		}
		name := strings.ToLower(d.Name())
		for _, c := range classifiers {
			for _, kw := range c.keywords {
				if strings.Contains(name, kw) {
					hits[c.domain] = append(hits[c.domain], path)
					return nil
				}
			}
		}
		log.Warn("unclassified CSV file ignored", "file", d.Name())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan extracted archive: %w", err)
	}
	return hits, nil
}

// Normalize turns an extracted archive directory into one row per
// calendar day plus the workout list. The consolidated cycles format is
// preferred when present; otherwise the legacy per-domain files are
// parsed and outer-joined on date. Individual bad files are skipped;
// the whole normalization fails only when nothing classifiable or
// nothing parsable remains.
func Normalize(userID, extractedDir string, log *slog.Logger) ([]*models.DailySample, []*models.Workout, error) {
	csvs, err := Classify(extractedDir, log)
	if err != nil {
		return nil, nil, err
	}

	total := 0
	for _, paths := range csvs {
		total += len(paths)
	}
	if total == 0 {
		return nil, nil, ErrNoCSVFiles
	}
	log.Info("classified archive CSVs",
		"cycles", len(csvs[DomainCycles]),
		"sleep", len(csvs[DomainSleep]),
		"recovery", len(csvs[DomainRecovery]),
		"strain", len(csvs[DomainStrain]),
		"workouts", len(csvs[DomainWorkouts]),
		"journal", len(csvs[DomainJournal]))

	journal := parseJournal(csvs[DomainJournal], log)

	var samples []*models.DailySample
	if len(csvs[DomainCycles]) > 0 {
		samples = parseCycles(csvs[DomainCycles], log)
		if len(samples) == 0 {
			return nil, nil, fmt.Errorf("%w: physiological cycles file present but unparsable", ErrNoData)
		}
		samples = mergeSamples(samples, journal)
	} else {
		samples = mergeSamples(
			parseSleep(csvs[DomainSleep], log),
			parseRecovery(csvs[DomainRecovery], log),
			parseStrain(csvs[DomainStrain], log),
			journal,
		)
	}
	if len(samples) == 0 {
		return nil, nil, ErrNoData
	}

	workouts := parseWorkouts(userID, csvs[DomainWorkouts], log)
	return samples, workouts, nil
}
