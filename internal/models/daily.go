// ABOUTME: DailyMetric row model and the DailySample interchange record.
// ABOUTME: One row per (user, date) with raw metrics plus derived features.
package models

import "time"

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// DailySample is one day's worth of normalized raw data from a single
// source (an archive file or an API fetch) before persistence. Nil
// fields mean the source had no value for that day.
type DailySample struct {
	Date             Date
	RecoveryScore    *float64
	StrainScore      *float64
	SleepHours       *float64
	HRV              *float64
	RestingHR        *float64
	SleepDebt        *float64
	ConsistencyScore *float64
	Extra            map[string]any
}

// Merge fills s's nil fields from other and folds other's Extra bag in.
// Existing non-nil values on s win, matching outer-join semantics where
// the first source to supply a field keeps it.
func (s *DailySample) Merge(other *DailySample) {
	if other == nil {
		return
	}
	if s.RecoveryScore == nil {
		s.RecoveryScore = other.RecoveryScore
	}
	if s.StrainScore == nil {
		s.StrainScore = other.StrainScore
	}
	if s.SleepHours == nil {
		s.SleepHours = other.SleepHours
	}
	if s.HRV == nil {
		s.HRV = other.HRV
	}
	if s.RestingHR == nil {
		s.RestingHR = other.RestingHR
	}
	if s.SleepDebt == nil {
		s.SleepDebt = other.SleepDebt
	}
	if s.ConsistencyScore == nil {
		s.ConsistencyScore = other.ConsistencyScore
	}
	if len(other.Extra) > 0 {
		if s.Extra == nil {
			s.Extra = make(map[string]any, len(other.Extra))
		}
		for k, v := range other.Extra {
			if _, ok := s.Extra[k]; !ok {
				s.Extra[k] = v
			}
		}
	}
}

// DailyMetric is the persisted row for one (user, date). Raw fields are
// written by ingestion upserts; derived fields by the feature engine.
type DailyMetric struct {
	ID     int64  `json:"id" yaml:"id"`
	UserID string `json:"user_id" yaml:"user_id"`
	Date   Date   `json:"date" yaml:"date"`

	// Raw metrics
	RecoveryScore *float64 `json:"recovery_score" yaml:"recovery_score"`
	StrainScore   *float64 `json:"strain_score" yaml:"strain_score"`
	SleepHours    *float64 `json:"sleep_hours" yaml:"sleep_hours"`
	HRV           *float64 `json:"hrv" yaml:"hrv"`
	RestingHR     *float64 `json:"resting_hr" yaml:"resting_hr"`
	WorkoutsCount int      `json:"workouts_count" yaml:"workouts_count"`

	Derived `yaml:",inline"`

	Extra     map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Derived holds the feature-engineered columns. All values are pure
// functions of the ordered raw history up to and including the row's
// date; baselines and z-scores use only strictly prior days.
type Derived struct {
	RecoveryBaseline7d  *float64 `json:"recovery_baseline_7d" yaml:"recovery_baseline_7d"`
	RecoveryBaseline30d *float64 `json:"recovery_baseline_30d" yaml:"recovery_baseline_30d"`
	RecoveryZScore      *float64 `json:"recovery_z_score" yaml:"recovery_z_score"`

	StrainBaseline7d  *float64 `json:"strain_baseline_7d" yaml:"strain_baseline_7d"`
	StrainBaseline30d *float64 `json:"strain_baseline_30d" yaml:"strain_baseline_30d"`
	StrainZScore      *float64 `json:"strain_z_score" yaml:"strain_z_score"`

	SleepBaseline7d  *float64 `json:"sleep_baseline_7d" yaml:"sleep_baseline_7d"`
	SleepBaseline30d *float64 `json:"sleep_baseline_30d" yaml:"sleep_baseline_30d"`
	SleepZScore      *float64 `json:"sleep_z_score" yaml:"sleep_z_score"`

	HRVBaseline7d  *float64 `json:"hrv_baseline_7d" yaml:"hrv_baseline_7d"`
	HRVBaseline30d *float64 `json:"hrv_baseline_30d" yaml:"hrv_baseline_30d"`
	HRVZScore      *float64 `json:"hrv_z_score" yaml:"hrv_z_score"`

	RHRBaseline7d  *float64 `json:"rhr_baseline_7d" yaml:"rhr_baseline_7d"`
	RHRBaseline30d *float64 `json:"rhr_baseline_30d" yaml:"rhr_baseline_30d"`
	RHRZScore      *float64 `json:"rhr_z_score" yaml:"rhr_z_score"`

	AcuteChronicRatio *float64 `json:"acute_chronic_ratio" yaml:"acute_chronic_ratio"`
	SleepDebt         *float64 `json:"sleep_debt" yaml:"sleep_debt"`
	ConsistencyScore  *float64 `json:"consistency_score" yaml:"consistency_score"`
}
