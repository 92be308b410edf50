// Package database provides database helper functions
package database

import (
	"database/sql"
	"strings"
	"time"
)

// timestampLayouts are the formats the sqlite and libsql drivers hand back
// for TEXT timestamp columns.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a stored timestamp, returning the zero time when it cannot.
func ParseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ParseNullTimestamp parses an optional timestamp column.
func ParseNullTimestamp(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := ParseTimestamp(value.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// FormatTimestamp renders a time for storage.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NullableString maps an empty string to SQL NULL.
func NullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// Placeholders returns "?, ?, ..." for n bound parameters.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
