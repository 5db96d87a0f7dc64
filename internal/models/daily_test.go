// ABOUTME: Tests for DailySample merge semantics.
// ABOUTME: First source to supply a field keeps it.
package models

import "testing"

func TestDailySampleMerge(t *testing.T) {
	a := &DailySample{
		Date:          Date{Year: 2025, Month: 3, Day: 14},
		RecoveryScore: Float(80),
		Extra:         map[string]any{"spo2_percentage": 97.0},
	}
	b := &DailySample{
		Date:          a.Date,
		RecoveryScore: Float(50),
		SleepHours:    Float(7.5),
		Extra:         map[string]any{"spo2_percentage": 90.0, "respiratory_rate": 14.2},
	}

	a.Merge(b)

	if *a.RecoveryScore != 80 {
		t.Errorf("existing recovery overwritten: got %f", *a.RecoveryScore)
	}
	if a.SleepHours == nil || *a.SleepHours != 7.5 {
		t.Errorf("sleep not filled from other: got %v", a.SleepHours)
	}
	if a.Extra["spo2_percentage"] != 97.0 {
		t.Errorf("existing extra overwritten: got %v", a.Extra["spo2_percentage"])
	}
	if a.Extra["respiratory_rate"] != 14.2 {
		t.Errorf("extra not folded in: got %v", a.Extra["respiratory_rate"])
	}
}

func TestDailySampleMergeNil(t *testing.T) {
	a := &DailySample{Date: Date{Year: 2025, Month: 3, Day: 14}}
	a.Merge(nil)
	if a.Extra != nil {
		t.Error("merge with nil should be a no-op")
	}
}
