// ABOUTME: IngestionRun model tracking one ingestion attempt.
// ABOUTME: Terminal once completed or failed; drives reset safety.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// DataSource identifies where an ingestion run's data came from. Only
// archive runs may clear existing data first: an archive is a full
// export, while an API sync carries a recent window only.
type DataSource string

const (
	SourceArchive DataSource = "archive"
	SourceAPI     DataSource = "api"
)

// IngestionRun records one ingestion attempt for observability.
type IngestionRun struct {
	ID           uuid.UUID  `json:"id" yaml:"id"`
	UserID       string     `json:"user_id" yaml:"user_id"`
	Source       string     `json:"source" yaml:"source"`
	Status       RunStatus  `json:"status" yaml:"status"`
	DataSource   DataSource `json:"data_source" yaml:"data_source"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// NewIngestionRun creates a run in the processing state. Source is the
// stored archive path for archive runs, or "api" for API syncs.
func NewIngestionRun(userID, source string, dataSource DataSource) *IngestionRun {
	return &IngestionRun{
		ID:         uuid.New(),
		UserID:     userID,
		Source:     source,
		Status:     RunProcessing,
		DataSource: dataSource,
		CreatedAt:  time.Now(),
	}
}
