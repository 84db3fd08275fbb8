package models

import "time"

// Field-map helpers for converting between typed models and the loosely
// typed document snapshots the change feed delivers. Timestamps travel as
// RFC3339Nano strings; absent or mistyped values decode to zero values.

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldTime(fields map[string]any, key string) time.Time {
	s, ok := fields[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Timestamp formats a time the way document field maps store it. Write
// paths that build partial field maps by hand use this to stay consistent
// with Fields().
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timeField(t time.Time) string {
	return Timestamp(t)
}
