// ABOUTME: Parsers for the legacy multi-file export format.
// ABOUTME: Sleep, recovery, strain, workout, and journal CSVs.
package archive

import (
	"log/slog"

	"github.com/harperreed/vitals/internal/models"
)

// rowDate resolves the date column across its historical names. Returns
// a zero date when the file has no usable date column.
func rowDate(t *table, row map[string]string, extraCandidates ...string) (models.Date, bool) {
	candidates := append([]string{"date", "day"}, extraCandidates...)
	col := t.findColumn(candidates...)
	if col == "" {
		return models.Date{}, false
	}
	d, err := models.ParseDate(row[col])
	if err != nil {
		return models.Date{}, false
	}
	return d, true
}

func hasDateColumn(t *table, extraCandidates ...string) bool {
	candidates := append([]string{"date", "day"}, extraCandidates...)
	return t.findColumn(candidates...) != ""
}

// parseSleep reads legacy sleep files into samples carrying sleep_hours.
func parseSleep(paths []string, log *slog.Logger) []*models.DailySample {
	var out []*models.DailySample
	for _, path := range paths {
		t, err := readTable(path)
		if err != nil {
			log.Error("skipping unreadable sleep file", "file", path, "error", err)
			continue
		}
		if !hasDateColumn(t, "sleep_date") {
			log.Warn("sleep file has no date column, skipping", "file", path)
			continue
		}
		hoursCol := t.findColumn("sleep_hours", "hours_slept", "total_sleep", "sleep_duration", "total_sleep_time_hours")
		minutesCol := t.findColumn("sleep_minutes", "total_sleep_minutes")
		for _, row := range t.rows {
			date, ok := rowDate(t, row, "sleep_date")
			if !ok {
				continue
			}
			s := &models.DailySample{Date: date}
			if hoursCol != "" {
				s.SleepHours = parseFloat(row[hoursCol])
			} else if minutesCol != "" {
				if v := parseFloat(row[minutesCol]); v != nil {
					s.SleepHours = models.Float(*v / 60.0)
				}
			}
			out = append(out, s)
		}
	}
	return out
}

// parseRecovery reads legacy recovery files: recovery score, HRV, RHR.
func parseRecovery(paths []string, log *slog.Logger) []*models.DailySample {
	var out []*models.DailySample
	for _, path := range paths {
		t, err := readTable(path)
		if err != nil {
			log.Error("skipping unreadable recovery file", "file", path, "error", err)
			continue
		}
		if !hasDateColumn(t, "recovery_date", "cycle_date") {
			log.Warn("recovery file has no date column, skipping", "file", path)
			continue
		}
		recCol := t.findColumn("recovery_score", "recovery", "recovery_percentage")
		hrvCol := t.findColumn("hrv", "heart_rate_variability_(rmssd)", "hrv_rmssd", "hrv_score")
		rhrCol := t.findColumn("resting_heart_rate", "rhr", "resting_hr", "rhr_bpm")
		for _, row := range t.rows {
			date, ok := rowDate(t, row, "recovery_date", "cycle_date")
			if !ok {
				continue
			}
			out = append(out, &models.DailySample{
				Date:          date,
				RecoveryScore: parseFloat(row[recCol]),
				HRV:           parseFloat(row[hrvCol]),
				RestingHR:     parseFloat(row[rhrCol]),
			})
		}
	}
	return out
}

// parseStrain reads legacy strain files into samples carrying strain.
func parseStrain(paths []string, log *slog.Logger) []*models.DailySample {
	var out []*models.DailySample
	for _, path := range paths {
		t, err := readTable(path)
		if err != nil {
			log.Error("skipping unreadable strain file", "file", path, "error", err)
			continue
		}
		if !hasDateColumn(t, "strain_date") {
			log.Warn("strain file has no date column, skipping", "file", path)
			continue
		}
		strainCol := t.findColumn("strain", "strain_score", "day_strain", "strain_value")
		for _, row := range t.rows {
			date, ok := rowDate(t, row, "strain_date")
			if !ok {
				continue
			}
			out = append(out, &models.DailySample{
				Date:        date,
				StrainScore: parseFloat(row[strainCol]),
			})
		}
	}
	return out
}

// parseWorkouts reads workout files into Workout rows for userID.
func parseWorkouts(userID string, paths []string, log *slog.Logger) []*models.Workout {
	var out []*models.Workout
	for _, path := range paths {
		t, err := readTable(path)
		if err != nil {
			log.Error("skipping unreadable workout file", "file", path, "error", err)
			continue
		}
		dateCol := t.findColumn("date", "day", "workout_date", "start_date")
		startCol := t.findColumn("start_time", "start", "workout_start_time")
		endCol := t.findColumn("end_time", "end", "workout_end_time")
		if dateCol == "" && startCol == "" {
			log.Warn("workout file has no date or start column, skipping", "file", path)
			continue
		}
		durationCol := t.findColumn("duration", "duration_minutes", "duration_(minutes)")
		sportCol := t.findColumn("sport", "sport_type", "activity_name", "activity", "exercise_type")
		strainCol := t.findColumn("strain", "strain_score", "workout_strain")
		avgHRCol := t.findColumn("average_heart_rate", "avg_hr", "avg_heart_rate", "heart_rate_avg")
		maxHRCol := t.findColumn("max_heart_rate", "max_hr", "maximum_heart_rate", "heart_rate_max")
		caloriesCol := t.findColumn("calories", "calories_burned", "total_calories")

		for _, row := range t.rows {
			start, err := parseTimestamp(row[startCol])
			if err != nil {
				// Fall back to the date column when no start time exists.
				start, err = parseTimestamp(row[dateCol])
				if err != nil {
					continue
				}
			}
			end := start
			if e, eErr := parseTimestamp(row[endCol]); eErr == nil {
				end = e
			}
			duration := 0.0
			if v := parseFloat(row[durationCol]); v != nil {
				duration = *v
			}
			sport := "unknown"
			if sportCol != "" && row[sportCol] != "" {
				sport = row[sportCol]
			}
			w := models.NewWorkout(userID, start, end, duration, sport)
			w.Strain = parseFloat(row[strainCol])
			w.AvgHR = parseFloat(row[avgHRCol])
			w.MaxHR = parseFloat(row[maxHRCol])
			w.Calories = parseFloat(row[caloriesCol])
			out = append(out, w)
		}
	}
	return out
}

// parseJournal reads journal files into date-keyed extra bags.
func parseJournal(paths []string, log *slog.Logger) []*models.DailySample {
	var out []*models.DailySample
	for _, path := range paths {
		t, err := readTable(path)
		if err != nil {
			log.Error("skipping unreadable journal file", "file", path, "error", err)
			continue
		}
		if !hasDateColumn(t) {
			log.Warn("journal file has no date column, skipping", "file", path)
			continue
		}
		dateCol := t.findColumn("date", "day")
		for _, row := range t.rows {
			date, ok := rowDate(t, row)
			if !ok {
				continue
			}
			s := &models.DailySample{Date: date}
			for _, col := range t.columns {
				if col == dateCol || row[col] == "" {
					continue
				}
				if s.Extra == nil {
					s.Extra = make(map[string]any)
				}
				s.Extra[col] = extraValue(row[col])
			}
			out = append(out, s)
		}
	}
	return out
}
