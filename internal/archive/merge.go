// ABOUTME: Outer-join merge of per-domain daily samples on date.
// ABOUTME: Earlier sample sets win on conflicting fields; extras merge.
package archive

import (
	"sort"

	"github.com/harperreed/vitals/internal/models"
)

// mergeSamples combines sample sets into one row per calendar date.
// Field conflicts resolve in favor of the earliest set that supplied a
// value, matching the domain precedence the caller passes sets in.
// Extra bags are merged key-wise. The result is ordered by date.
func mergeSamples(sets ...[]*models.DailySample) []*models.DailySample {
	byDate := make(map[models.Date]*models.DailySample)
	for _, set := range sets {
		for _, s := range set {
			if s == nil || s.Date.IsZero() {
				continue
			}
			if existing, ok := byDate[s.Date]; ok {
				existing.Merge(s)
			} else {
				copied := *s
				byDate[s.Date] = &copied
			}
		}
	}

	out := make([]*models.DailySample, 0, len(byDate))
	for _, s := range byDate {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
