package util

import (
	"fmt"
	"strconv"
	"time"
)

// SessionLayout is the ISO date format used for trading sessions.
const SessionLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
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
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseSession parses an ISO date ("2015-05-05") or any ParseTime format and
// truncates it to the UTC session date.
func ParseSession(s string) (time.Time, error) {
	if t, err := time.Parse(SessionLayout, s); err == nil {
		return t, nil
	}
	if t, ok := ParseTime(s); ok {
		return SessionOf(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid session date %q, want YYYY-MM-DD", s)
}

// ParseSessionRange parses an inclusive start/end pair.
func ParseSessionRange(start, end string) (time.Time, time.Time, error) {
	from, err := ParseSession(start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	to, err := ParseSession(end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return from, to, nil
}

// SessionOf returns midnight UTC of the calendar date t falls on in UTC.
func SessionOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatSession renders a session as YYYY-MM-DD.
func FormatSession(t time.Time) string {
	return t.UTC().Format(SessionLayout)
}
