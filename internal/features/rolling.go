// ABOUTME: Rolling feature engine: trailing baselines, z-scores, load
// ABOUTME: ratios, sleep debt, and consistency over a daily series.
package features

import (
	"math"
	"sort"

	"github.com/harperreed/vitals/internal/models"
)

// TargetSleepHours is the nightly sleep target used for sleep debt.
const TargetSleepHours = 8.0

const (
	shortWindow       = 7
	longWindow        = 28
	sleepDebtWindow   = 7
	consistencyWindow = 14

	sleepDebtMinSamples   = 3
	consistencyMinSamples = 5
)

// RollingEngine computes trailing statistics over a user's daily rows.
// Baselines and z-scores are shifted one day so a row's derived values
// never depend on the row's own raw values. Recomputation over the same
// history is deterministic.
type RollingEngine struct{}

// NewRollingEngine returns the standard feature engine.
func NewRollingEngine() *RollingEngine {
	return &RollingEngine{}
}

// Recompute fills in derived columns for every row. Rows are sorted by
// date first; the caller's slice order is normalized as a side effect.
func (e *RollingEngine) Recompute(rows []*models.DailyMetric) int {
	if len(rows) == 0 {
		return 0
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	recovery := collect(rows, func(m *models.DailyMetric) *float64 { return m.RecoveryScore })
	strain := collect(rows, func(m *models.DailyMetric) *float64 { return m.StrainScore })
	sleep := collect(rows, func(m *models.DailyMetric) *float64 { return m.SleepHours })
	hrv := collect(rows, func(m *models.DailyMetric) *float64 { return m.HRV })
	rhr := collect(rows, func(m *models.DailyMetric) *float64 { return m.RestingHR })

	type metricSeries struct {
		values []*float64
		set    func(d *models.Derived, mean7, mean30, z *float64)
	}
	series := []metricSeries{
		{recovery, func(d *models.Derived, mean7, mean30, z *float64) {
			d.RecoveryBaseline7d, d.RecoveryBaseline30d, d.RecoveryZScore = mean7, mean30, z
		}},
		{strain, func(d *models.Derived, mean7, mean30, z *float64) {
			d.StrainBaseline7d, d.StrainBaseline30d, d.StrainZScore = mean7, mean30, z
		}},
		{sleep, func(d *models.Derived, mean7, mean30, z *float64) {
			d.SleepBaseline7d, d.SleepBaseline30d, d.SleepZScore = mean7, mean30, z
		}},
		{hrv, func(d *models.Derived, mean7, mean30, z *float64) {
			d.HRVBaseline7d, d.HRVBaseline30d, d.HRVZScore = mean7, mean30, z
		}},
		{rhr, func(d *models.Derived, mean7, mean30, z *float64) {
			d.RHRBaseline7d, d.RHRBaseline30d, d.RHRZScore = mean7, mean30, z
		}},
	}

	for _, s := range series {
		mean7 := rollingMeanShifted(s.values, shortWindow)
		mean30 := rollingMeanShifted(s.values, longWindow)
		std7 := rollingStdShifted(s.values, shortWindow)
		for i, row := range rows {
			s.set(&row.Derived, mean7[i], mean30[i], zscore(s.values[i], mean7[i], std7[i]))
		}
	}

	acute := rollingMeanShifted(strain, shortWindow)
	chronic := rollingMeanShifted(strain, longWindow)
	debt := sleepDebt(sleep)
	consistency := consistencyScore(sleep)
	for i, row := range rows {
		row.AcuteChronicRatio = acuteChronicRatio(acute[i], chronic[i])
		row.Derived.SleepDebt = debt[i]
		row.Derived.ConsistencyScore = consistency[i]
	}
	return len(rows)
}

func collect(rows []*models.DailyMetric, get func(*models.DailyMetric) *float64) []*float64 {
	out := make([]*float64, len(rows))
	for i, r := range rows {
		out[i] = get(r)
	}
	return out
}

// minSamples mirrors the half-window sample requirement: a trailing
// statistic is only produced once at least max(3, window/2) observed
// values are available in the window.
func minSamples(window int) int {
	if half := window / 2; half > 3 {
		return half
	}
	return 3
}

// windowValues gathers the non-nil values in the trailing window ending
// at index end (inclusive). Indexes before the series start simply
// shrink the window.
func windowValues(values []*float64, end, window int) []float64 {
	if end < 0 {
		return nil
	}
	start := end - window + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, window)
	for i := start; i <= end; i++ {
		if values[i] != nil {
			out = append(out, *values[i])
		}
	}
	return out
}

// rollingMeanShifted is the trailing mean excluding the current day:
// the value at index i covers indexes [i-window, i-1].
func rollingMeanShifted(values []*float64, window int) []*float64 {
	need := minSamples(window)
	out := make([]*float64, len(values))
	for i := range values {
		vals := windowValues(values, i-1, window)
		if len(vals) < need {
			continue
		}
		out[i] = models.Float(mean(vals))
	}
	return out
}

// rollingStdShifted is the trailing population standard deviation
// excluding the current day.
func rollingStdShifted(values []*float64, window int) []*float64 {
	need := minSamples(window)
	out := make([]*float64, len(values))
	for i := range values {
		vals := windowValues(values, i-1, window)
		if len(vals) < need {
			continue
		}
		out[i] = models.Float(stddev(vals))
	}
	return out
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64) float64 {
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}

func zscore(value, mean7, std7 *float64) *float64 {
	if value == nil || mean7 == nil || std7 == nil || *std7 == 0 {
		return nil
	}
	return models.Float((*value - *mean7) / *std7)
}

func acuteChronicRatio(acute, chronic *float64) *float64 {
	if acute == nil || chronic == nil || *chronic == 0 {
		return nil
	}
	ratio := *acute / *chronic
	if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return nil
	}
	return models.Float(ratio)
}

// sleepDebt is the trailing 7-day sum of the nightly shortfall below the
// target. The window includes the current day: tonight's short sleep is
// tonight's debt.
func sleepDebt(sleep []*float64) []*float64 {
	shortfall := make([]*float64, len(sleep))
	for i, v := range sleep {
		if v == nil {
			continue
		}
		s := TargetSleepHours - *v
		if s < 0 {
			s = 0
		}
		shortfall[i] = models.Float(s)
	}
	out := make([]*float64, len(sleep))
	for i := range shortfall {
		vals := windowValues(shortfall, i, sleepDebtWindow)
		if len(vals) < sleepDebtMinSamples {
			continue
		}
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		out[i] = models.Float(sum)
	}
	return out
}

// consistencyScore maps trailing sleep-hour variability onto a 0-100
// scale. Too few samples counts as zero variance, scoring 100.
func consistencyScore(sleep []*float64) []*float64 {
	out := make([]*float64, len(sleep))
	for i := range sleep {
		vals := windowValues(sleep, i, consistencyWindow)
		std := 0.0
		if len(vals) >= consistencyMinSamples {
			std = stddev(vals)
		}
		score := 100 - std*10
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		out[i] = models.Float(score)
	}
	return out
}
