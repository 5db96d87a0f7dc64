// ABOUTME: Engine capability interface for feature computation.
// ABOUTME: Lets callers wire a no-op engine when features are disabled.
package features

import "github.com/harperreed/vitals/internal/models"

// Engine computes derived columns over a user's date-ordered daily rows.
// Implementations mutate the rows' Derived fields in place and return
// the number of rows touched. Raw fields are never altered.
type Engine interface {
	Recompute(rows []*models.DailyMetric) int
}

// NoopEngine satisfies Engine without computing anything. It is selected
// at wiring time when feature computation is disabled.
type NoopEngine struct{}

// Recompute does nothing and reports zero rows touched.
func (NoopEngine) Recompute(rows []*models.DailyMetric) int {
	return 0
}
