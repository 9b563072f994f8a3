package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, date-only and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// MonthStart returns midnight of the first day of t's month, in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// DaysToEndOfMonth is the number of whole days left after t's day in its month.
func DaysToEndOfMonth(t time.Time) int {
	return DaysInMonth(t) - t.Day()
}

// MonthKey formats t as YYYY-MM for per-month grouping.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// DaysBetween returns whole days from a to b, truncated toward zero.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
