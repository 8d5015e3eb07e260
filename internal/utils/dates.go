package utils

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates (ISO yyyy-mm-dd).
const DateLayout = "2006-01-02"

// ParseDate converts a yyyy-mm-dd formatted string into midnight UTC of that day.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format, expected yyyy-mm-dd: %q", dateStr)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// DaysBetween counts whole calendar days from start to end. Negative when end
// is before start.
func DaysBetween(start, end time.Time) int {
	s := StartOfDay(start)
	e := StartOfDay(end)
	// Round instead of truncating so a DST shift does not lose a day.
	return int((e.Sub(s) + 12*time.Hour) / (24 * time.Hour))
}

// FormatDate renders t as yyyy-mm-dd.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
