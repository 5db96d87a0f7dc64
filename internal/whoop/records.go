// ABOUTME: Wire types for the vendor API's v2 collection endpoints.
// ABOUTME: Cycles, sleeps, recoveries, and workouts plus OAuth tokens.
package whoop

// TokenResponse is the OAuth token endpoint payload for both the
// authorization-code and refresh-token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// CycleRecord is one physiological cycle (roughly one day).
type CycleRecord struct {
	ID             int64       `json:"id"`
	Start          string      `json:"start"`
	End            string      `json:"end"`
	TimezoneOffset string      `json:"timezone_offset"`
	ScoreState     string      `json:"score_state"`
	Score          *CycleScore `json:"score"`
}

// CycleScore carries the day's strain and energy figures.
type CycleScore struct {
	Strain           float64 `json:"strain"`
	Kilojoule        float64 `json:"kilojoule"`
	AverageHeartRate float64 `json:"average_heart_rate"`
	MaxHeartRate     float64 `json:"max_heart_rate"`
}

// RecoveryRecord is the recovery assessment attached to a cycle.
type RecoveryRecord struct {
	CycleID    int64          `json:"cycle_id"`
	SleepID    string         `json:"sleep_id"`
	ScoreState string         `json:"score_state"`
	Score      *RecoveryScore `json:"score"`
}

// RecoveryScore holds the recovery percentage and its inputs.
type RecoveryScore struct {
	RecoveryScore    float64 `json:"recovery_score"`
	HRVRmssdMilli    float64 `json:"hrv_rmssd_milli"`
	RestingHeartRate float64 `json:"resting_heart_rate"`
	SpO2Percentage   float64 `json:"spo2_percentage"`
	SkinTempCelsius  float64 `json:"skin_temp_celsius"`
}

// SleepRecord is one scored sleep, keyed back to its cycle.
type SleepRecord struct {
	ID         string      `json:"id"`
	CycleID    int64       `json:"cycle_id"`
	Start      string      `json:"start"`
	End        string      `json:"end"`
	ScoreState string      `json:"score_state"`
	Score      *SleepScore `json:"score"`
}

// SleepScore holds stage durations and quality percentages.
type SleepScore struct {
	StageSummary               StageSummary `json:"stage_summary"`
	SleepNeeded                SleepNeeded  `json:"sleep_needed"`
	RespiratoryRate            float64      `json:"respiratory_rate"`
	SleepEfficiencyPercentage  float64      `json:"sleep_efficiency_percentage"`
	SleepPerformancePercentage float64      `json:"sleep_performance_percentage"`
	SleepConsistencyPercentage float64      `json:"sleep_consistency_percentage"`
}

// StageSummary is the per-stage sleep duration breakdown, all in
// milliseconds.
type StageSummary struct {
	TotalInBedTimeMilli         int64 `json:"total_in_bed_time_milli"`
	TotalAwakeTimeMilli         int64 `json:"total_awake_time_milli"`
	TotalLightSleepTimeMilli    int64 `json:"total_light_sleep_time_milli"`
	TotalSlowWaveSleepTimeMilli int64 `json:"total_slow_wave_sleep_time_milli"`
	TotalRemSleepTimeMilli      int64 `json:"total_rem_sleep_time_milli"`
}

// SleepNeeded is the vendor's computed sleep-need baseline.
type SleepNeeded struct {
	BaselineMilli int64 `json:"baseline_milli"`
}

// WorkoutRecord is one discrete exercise session.
type WorkoutRecord struct {
	ID         string        `json:"id"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
	SportName  string        `json:"sport_name"`
	ScoreState string        `json:"score_state"`
	Score      *WorkoutScore `json:"score"`
}

// WorkoutScore holds the session's strain and heart-rate figures.
type WorkoutScore struct {
	Strain           float64 `json:"strain"`
	AverageHeartRate float64 `json:"average_heart_rate"`
	MaxHeartRate     float64 `json:"max_heart_rate"`
	Kilojoule        float64 `json:"kilojoule"`
}
