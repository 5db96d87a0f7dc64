// ABOUTME: Parser for the consolidated physiological-cycles CSV format.
// ABOUTME: One record per cycle, bucketed onto its local start date.
package archive

import (
	"log/slog"
	"sort"
	"time"

	"github.com/harperreed/vitals/internal/models"
)

// cycleRecord pairs a parsed sample with its cycle start for the
// deterministic dedup tie-break.
type cycleRecord struct {
	sample *models.DailySample
	start  time.Time
}

// parseCycles reads consolidated cycles files into daily samples. When
// multiple cycles land on the same calendar date, the one with the
// highest recovery score wins; equal (or both missing) scores fall back
// to the earliest cycle start.
func parseCycles(paths []string, log *slog.Logger) []*models.DailySample {
	type cyclesFile struct {
		path string
		t    *table
	}
	var files []cyclesFile
	for _, path := range paths {
		t, err := readTable(path)
		if err != nil {
			log.Error("skipping unreadable cycles file", "file", path, "error", err)
			continue
		}
		if len(t.rows) == 0 {
			log.Warn("cycles file is empty", "file", path)
			continue
		}
		files = append(files, cyclesFile{path: path, t: t})
	}

	// Offset fallback: the first offset found anywhere in the batch
	// stands in for records that lack one, including records in a
	// sibling file with no offset column at all.
	fallbackOffset := ""
	for _, f := range files {
		tzCol := f.t.columnContaining("timezone_offset")
		if tzCol == "" {
			continue
		}
		for _, row := range f.t.rows {
			if row[tzCol] != "" {
				fallbackOffset = row[tzCol]
				break
			}
		}
		if fallbackOffset != "" {
			break
		}
	}

	var records []cycleRecord
	for _, f := range files {
		path, t := f.path, f.t

		startCol := t.columnContaining("cycle_start")
		if startCol == "" {
			log.Warn("cycles file has no cycle start column", "file", path)
			continue
		}
		tzCol := t.columnContaining("timezone_offset")
		recCol := t.columnContaining("recovery_score")
		strainCol := t.columnContaining("day_strain")
		hrvCol := t.columnContaining("heart_rate_variability")
		rhrCol := t.columnContaining("resting_heart_rate")
		sleepCol := t.columnContaining("asleep_duration")
		debtCol := t.columnContaining("sleep_debt")
		consistencyCol := t.columnContaining("sleep_consistency")

		mapped := map[string]bool{
			startCol: true, tzCol: true, recCol: true, strainCol: true,
			hrvCol: true, rhrCol: true, sleepCol: true, debtCol: true,
			consistencyCol: true,
			"cycle_id":     true, "user_id": true, "created_at": true, "updated_at": true,
		}

		for _, row := range t.rows {
			start, err := parseTimestamp(row[startCol])
			if err != nil {
				log.Warn("skipping cycle row with bad start time", "file", path, "value", row[startCol])
				continue
			}
			s := &models.DailySample{
				Date:          models.LocalStartDate(start, row[tzCol], fallbackOffset),
				RecoveryScore: parseFloat(row[recCol]),
				StrainScore:   parseFloat(row[strainCol]),
				HRV:           parseFloat(row[hrvCol]),
				RestingHR:     parseFloat(row[rhrCol]),
			}
			// Stage durations are exported in minutes.
			if v := parseFloat(row[sleepCol]); v != nil {
				s.SleepHours = models.Float(*v / 60.0)
			}
			if v := parseFloat(row[debtCol]); v != nil {
				s.SleepDebt = models.Float(*v / 60.0)
			}
			s.ConsistencyScore = parseFloat(row[consistencyCol])

			for _, col := range t.columns {
				if mapped[col] || row[col] == "" {
					continue
				}
				if s.Extra == nil {
					s.Extra = make(map[string]any)
				}
				s.Extra[col] = extraValue(row[col])
			}
			records = append(records, cycleRecord{sample: s, start: start})
		}
	}
	return dedupCycles(records)
}

// dedupCycles keeps one record per date: highest recovery score first,
// then earliest cycle start. Records with no recovery score sort last.
func dedupCycles(records []cycleRecord) []*models.DailySample {
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		si, sj := -1.0, -1.0
		if ri.sample.RecoveryScore != nil {
			si = *ri.sample.RecoveryScore
		}
		if rj.sample.RecoveryScore != nil {
			sj = *rj.sample.RecoveryScore
		}
		if si != sj {
			return si > sj
		}
		return ri.start.Before(rj.start)
	})

	seen := make(map[models.Date]bool)
	var out []*models.DailySample
	for _, r := range records {
		if seen[r.sample.Date] {
			continue
		}
		seen[r.sample.Date] = true
		out = append(out, r.sample)
	}
	return out
}
