// ABOUTME: Workout model for discrete exercise sessions.
// ABOUTME: Deduplicated on (user, start_time, duration, sport_type).
package models

import (
	"time"

	"github.com/google/uuid"
)

// Workout represents one exercise session. Rows are immutable after
// insertion; overlapping re-ingestion skips duplicates instead of
// updating.
type Workout struct {
	ID              uuid.UUID `json:"id" yaml:"id"`
	UserID          string    `json:"user_id" yaml:"user_id"`
	SourceWorkoutID string    `json:"source_workout_id,omitempty" yaml:"source_workout_id,omitempty"`
	Date            Date      `json:"date" yaml:"date"`
	StartTime       time.Time `json:"start_time" yaml:"start_time"`
	EndTime         time.Time `json:"end_time" yaml:"end_time"`
	DurationMinutes float64   `json:"duration_minutes" yaml:"duration_minutes"`
	SportType       string    `json:"sport_type" yaml:"sport_type"`
	AvgHR           *float64  `json:"avg_hr" yaml:"avg_hr"`
	MaxHR           *float64  `json:"max_hr" yaml:"max_hr"`
	Strain          *float64  `json:"strain" yaml:"strain"`
	Calories        *float64  `json:"calories" yaml:"calories"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// NewWorkout creates a Workout with a generated ID, dated on its start.
// SourceWorkoutID stays empty until a vendor record supplies one.
func NewWorkout(userID string, start, end time.Time, durationMinutes float64, sportType string) *Workout {
	return &Workout{
		ID:              uuid.New(),
		UserID:          userID,
		Date:            DateOf(start),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: durationMinutes,
		SportType:       sportType,
		CreatedAt:       time.Now(),
	}
}
