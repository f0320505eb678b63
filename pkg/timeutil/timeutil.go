// Package timeutil provides UTC calendar-day helpers.
// Codeforces reports unix seconds and every daily aggregate is keyed by a UTC date,
// so all helpers here normalize to UTC.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Common date/time formats.
const (
	// DateFormat is the ISO date format used for aggregate keys and API payloads.
	DateFormat = "2006-01-02"

	// DateTimeFormat is the format used in human readable messages.
	DateTimeFormat = "2006-01-02 15:04"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// FromUnix converts unix seconds to a UTC time.
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// StartOfDay returns 00:00:00 UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayOf returns the UTC calendar day of a unix timestamp in seconds.
func DayOf(sec int64) time.Time {
	return StartOfDay(FromUnix(sec))
}

// DaysAgo returns the instant exactly n days before now.
// The result is not truncated to a day boundary.
func DaysAgo(now time.Time, n int) time.Time {
	return now.UTC().Add(-time.Duration(n) * 24 * time.Hour)
}

// DaysSince calculates the number of whole days since the given time.
func DaysSince(t time.Time) int {
	return int(Now().Sub(t.UTC()).Hours() / 24)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// FormatDateTimeStr formats a time as datetime string in UTC.
func FormatDateTimeStr(t time.Time) string {
	return t.UTC().Format(DateTimeFormat)
}

// ParseDate parses a YYYY-MM-DD string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.UTC)
}

// MaxUnix returns the latest of the given unix timestamps as a UTC time.
// Returns nil when no timestamps are given.
func MaxUnix(secs []int64) *time.Time {
	if len(secs) == 0 {
		return nil
	}
	max := secs[0]
	for _, s := range secs[1:] {
		if s > max {
			max = s
		}
	}
	t := FromUnix(max)
	return &t
}
