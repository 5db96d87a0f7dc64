// ABOUTME: Transforms vendor API records into daily samples/workouts.
// ABOUTME: Joins recoveries and sleeps to cycles, buckets by local date.
package whoop

import (
	"log/slog"
	"time"

	"github.com/harperreed/vitals/internal/models"
)

const kilojouleToKcal = 0.239006

// BuildDailySamples joins recovery and sleep records to their cycles
// and produces one sample per calendar date. Dates resolve to the local
// date the cycle started, using the cycle's own timezone offset or the
// first offset found in the batch. Later cycles on the same date win,
// matching the vendor's ordering of one primary cycle per day.
func BuildDailySamples(cycles []CycleRecord, sleeps []SleepRecord, recoveries []RecoveryRecord, log *slog.Logger) []*models.DailySample {
	recoveryByCycle := make(map[int64]RecoveryRecord, len(recoveries))
	for _, r := range recoveries {
		recoveryByCycle[r.CycleID] = r
	}
	sleepByCycle := make(map[int64]SleepRecord, len(sleeps))
	for _, s := range sleeps {
		sleepByCycle[s.CycleID] = s
	}

	fallbackOffset := ""
	for _, c := range cycles {
		if c.TimezoneOffset != "" {
			fallbackOffset = c.TimezoneOffset
			break
		}
	}

	byDate := make(map[models.Date]*models.DailySample)
	var order []models.Date
	for _, cycle := range cycles {
		start, err := time.Parse(time.RFC3339, cycle.Start)
		if err != nil {
			log.Warn("skipping cycle with bad start time", "cycle", cycle.ID, "start", cycle.Start)
			continue
		}
		date := models.LocalStartDate(start, cycle.TimezoneOffset, fallbackOffset)

		s := &models.DailySample{Date: date, Extra: map[string]any{}}
		if cycle.Score != nil {
			s.StrainScore = models.Float(cycle.Score.Strain)
			s.Extra["calories"] = cycle.Score.Kilojoule * kilojouleToKcal
			s.Extra["average_heart_rate"] = cycle.Score.AverageHeartRate
			s.Extra["max_heart_rate"] = cycle.Score.MaxHeartRate
		}
		if rec, ok := recoveryByCycle[cycle.ID]; ok && rec.Score != nil {
			s.RecoveryScore = models.Float(rec.Score.RecoveryScore)
			s.HRV = models.Float(rec.Score.HRVRmssdMilli)
			s.RestingHR = models.Float(rec.Score.RestingHeartRate)
			s.Extra["spo2_percentage"] = rec.Score.SpO2Percentage
			s.Extra["skin_temp_celsius"] = rec.Score.SkinTempCelsius
		}
		if sl, ok := sleepByCycle[cycle.ID]; ok && sl.Score != nil {
			stage := sl.Score.StageSummary
			inBedMs := stage.TotalInBedTimeMilli
			s.SleepHours = models.Float(float64(inBedMs) / (1000 * 60 * 60))
			if needMs := sl.Score.SleepNeeded.BaselineMilli; needMs > inBedMs {
				s.SleepDebt = models.Float(float64(needMs-inBedMs) / (1000 * 60 * 60))
			} else {
				s.SleepDebt = models.Float(0)
			}
			s.ConsistencyScore = models.Float(sl.Score.SleepConsistencyPercentage)
			s.Extra["respiratory_rate"] = sl.Score.RespiratoryRate
			s.Extra["sleep_efficiency_percentage"] = sl.Score.SleepEfficiencyPercentage
			s.Extra["sleep_performance_percentage"] = sl.Score.SleepPerformancePercentage
			s.Extra["rem_sleep_min"] = float64(stage.TotalRemSleepTimeMilli) / (1000 * 60)
			s.Extra["deep_sleep_min"] = float64(stage.TotalSlowWaveSleepTimeMilli) / (1000 * 60)
			s.Extra["light_sleep_min"] = float64(stage.TotalLightSleepTimeMilli) / (1000 * 60)
			s.Extra["awake_time_min"] = float64(stage.TotalAwakeTimeMilli) / (1000 * 60)
		}

		if _, seen := byDate[date]; !seen {
			order = append(order, date)
		}
		byDate[date] = s
	}

	out := make([]*models.DailySample, 0, len(byDate))
	for _, d := range order {
		out = append(out, byDate[d])
	}
	return out
}

// BuildWorkouts converts vendor workout records for persistence.
func BuildWorkouts(userID string, records []WorkoutRecord, log *slog.Logger) []*models.Workout {
	var out []*models.Workout
	for _, rec := range records {
		start, err := time.Parse(time.RFC3339, rec.Start)
		if err != nil {
			log.Warn("skipping workout with bad start time", "workout", rec.ID, "start", rec.Start)
			continue
		}
		end := start
		if e, eErr := time.Parse(time.RFC3339, rec.End); eErr == nil {
			end = e
		}
		sport := rec.SportName
		if sport == "" {
			sport = "unknown"
		}
		w := models.NewWorkout(userID, start, end, end.Sub(start).Minutes(), sport)
		if rec.ID != "" {
			w.SourceWorkoutID = rec.ID
		}
		if rec.Score != nil {
			w.Strain = models.Float(rec.Score.Strain)
			w.AvgHR = models.Float(rec.Score.AverageHeartRate)
			w.MaxHR = models.Float(rec.Score.MaxHeartRate)
			w.Calories = models.Float(rec.Score.Kilojoule * kilojouleToKcal)
		}
		out = append(out, w)
	}
	return out
}
