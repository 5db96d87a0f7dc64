// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Tables for daily metrics, workouts, ingestion runs, tokens.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		recovery_score REAL,
		strain_score REAL,
		sleep_hours REAL,
		hrv REAL,
		resting_hr REAL,
		workouts_count INTEGER DEFAULT 0,
		recovery_baseline_7d REAL,
		recovery_baseline_30d REAL,
		recovery_z_score REAL,
		strain_baseline_7d REAL,
		strain_baseline_30d REAL,
		strain_z_score REAL,
		sleep_baseline_7d REAL,
		sleep_baseline_30d REAL,
		sleep_z_score REAL,
		hrv_baseline_7d REAL,
		hrv_baseline_30d REAL,
		hrv_z_score REAL,
		rhr_baseline_7d REAL,
		rhr_baseline_30d REAL,
		rhr_z_score REAL,
		acute_chronic_ratio REAL,
		sleep_debt REAL,
		consistency_score REAL,
		extra TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, date)
	);

	CREATE TABLE IF NOT EXISTS workouts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source_workout_id TEXT,
		date TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		duration_minutes REAL NOT NULL,
		sport_type TEXT NOT NULL,
		avg_hr REAL,
		max_hr REAL,
		strain REAL,
		calories REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ingestion_runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		data_source TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS tokens (
		user_id TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		token_type TEXT,
		last_sync_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_daily_user_date ON daily_metrics(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_workouts_user_date ON workouts(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_workouts_dedup ON workouts(user_id, start_time, duration_minutes, sport_type);
	CREATE INDEX IF NOT EXISTS idx_runs_user ON ingestion_runs(user_id, created_at DESC);
	`

	_, err := d.db.Exec(schema)
	return err
}
