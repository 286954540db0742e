package db

import "time"

// TimeLayout is the wall-clock format used for all persisted timestamps.
// Timestamps are stored in local time, not UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Now returns the current local time formatted for storage
func Now() string {
	return time.Now().Format(TimeLayout)
}

// ParseTime parses a stored timestamp back into a time.Time.
// Returns the zero time for empty or malformed values.
func ParseTime(s string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTime formats a time.Time for storage
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
