// ABOUTME: Tolerant CSV reading: encoding fallback and header variants.
// ABOUTME: Normalizes column names to lowercase snake_case.
package archive

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// table is a parsed CSV with normalized column names.
type table struct {
	columns []string
	rows    []map[string]string
}

// readTable reads a CSV file, attempting UTF-8 first, then Latin-1,
// then a lossy decode that drops invalid bytes.
func readTable(path string) (*table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data := raw
	if !utf8.Valid(raw) {
		if decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(raw); decErr == nil {
			data = decoded
		} else {
			data = bytes.ToValidUTF8(raw, nil)
		}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return &table{}, nil
	}

	cols := make([]string, len(records[0]))
	for i, c := range records[0] {
		cols[i] = normalizeColumn(c)
	}
	t := &table{columns: cols}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = strings.TrimSpace(rec[i])
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// normalizeColumn lowercases, trims, and snake_cases a header name.
func normalizeColumn(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	// Strip a UTF-8 BOM that some exports put before the first header.
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ReplaceAll(name, " ", "_")
}

// findColumn returns the first column exactly matching one of the
// candidate names, or "".
func (t *table) findColumn(candidates ...string) string {
	for _, want := range candidates {
		for _, c := range t.columns {
			if c == want {
				return c
			}
		}
	}
	return ""
}

// columnContaining returns the first column whose name contains the
// substring, or "".
func (t *table) columnContaining(substr string) string {
	for _, c := range t.columns {
		if strings.Contains(c, substr) {
			return c
		}
	}
	return ""
}

// parseFloat parses a numeric cell, tolerating thousands separators.
// Returns nil for empty or unparsable cells.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// timestampLayouts covers the formats wearable exports use for
// timestamps, with and without timezone designators.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp parses a timestamp cell. Timestamps with no zone are
// returned in UTC so later offset math is well-defined.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// extraValue converts a cell to the value stored in the extra bag:
// numbers stay numeric, timestamps are ISO-formatted, everything else
// is kept verbatim.
func extraValue(s string) any {
	if v := parseFloat(s); v != nil {
		return *v
	}
	if t, err := parseTimestamp(s); err == nil && strings.ContainsAny(s, ":T") {
		return t.Format(time.RFC3339)
	}
	return s
}
