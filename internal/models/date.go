// ABOUTME: Calendar date type and timezone-offset-aware date resolution.
// ABOUTME: Buckets wearable cycles onto the local date the cycle started.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a timezone-less calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date from the formats seen in wearable exports:
// plain dates, dates with times, and full RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"01/02/2006",
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight UTC on the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// MarshalJSON renders the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses a "YYYY-MM-DD" (or timestamp) string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML renders the date as a "YYYY-MM-DD" string.
func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// ParseUTCOffset parses a "+HH:MM" / "-HH:MM" timezone offset string.
func ParseUTCOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("invalid timezone offset %q", s)
	}
	sign := time.Duration(1)
	if s[0] == '-' {
		sign = -1
	}
	parts := strings.Split(s[1:], ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid timezone offset %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timezone offset %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timezone offset %q: %w", s, err)
	}
	return sign * (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute), nil
}

// LocalStartDate resolves the calendar date a cycle belongs to: the local
// date the cycle started, not the date it ended. The start timestamp is
// shifted by the record's own offset when present, else by fallbackOffset
// (the first offset seen anywhere in the batch), else taken as already
// local. A session starting 23:30 and ending 07:00 the next morning is
// attributed to the day it began.
func LocalStartDate(start time.Time, offset, fallbackOffset string) Date {
	for _, o := range []string{offset, fallbackOffset} {
		if o == "" {
			continue
		}
		d, err := ParseUTCOffset(o)
		if err != nil {
			continue
		}
		return DateOf(start.UTC().Add(d))
	}
	return DateOf(start)
}
