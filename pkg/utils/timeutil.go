package utils

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts used by the calendar endpoint and its callers.
const (
	CalendarDateLayout = "02/01/2006" // dd/mm/yyyy, as accepted on the CLI and API
	APIDateLayout      = "2006-01-02" // as posted to the paging endpoint
)

// ParseCalendarDate parses a "dd/mm/yyyy" date as UTC midnight.
func ParseCalendarDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(CalendarDateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want dd/mm/yyyy): %w", s, err)
	}
	return t, nil
}

// FormatCalendarDate formats t as "dd/mm/yyyy" in UTC.
func FormatCalendarDate(t time.Time) string {
	return t.UTC().Format(CalendarDateLayout)
}

// FormatAPIDate formats t as "yyyy-mm-dd" in UTC.
func FormatAPIDate(t time.Time) string {
	return t.UTC().Format(APIDateLayout)
}

// DayFromUnix converts an epoch-seconds day boundary to UTC midnight of
// that day. The calendar source reports boundaries in GMT.
func DayFromUnix(sec int64) time.Time {
	return TruncateDay(time.Unix(sec, 0))
}

// TruncateDay returns UTC midnight of the day containing t.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns UTC midnight of the current day.
func Today() time.Time {
	return TruncateDay(time.Now())
}

// ResolveRange parses an optional from/to pair. Empty from falls back to
// defFrom, empty to falls back to today. from must not be after to.
func ResolveRange(from, to, defFrom string) (time.Time, time.Time, error) {
	if strings.TrimSpace(from) == "" {
		from = defFrom
	}
	start, err := ParseCalendarDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := Today()
	if strings.TrimSpace(to) != "" {
		if end, err = ParseCalendarDate(to); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s is after to %s",
			FormatCalendarDate(start), FormatCalendarDate(end))
	}
	return start, end, nil
}

// News sentiment timestamps.
const (
	NewsTimeLayout  = "20060102T150405" // time_published in feed items
	NewsQueryLayout = "20060102T1504"   // time_from / time_to query params
)

// ParseNewsTime parses a feed item's time_published value as UTC.
func ParseNewsTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(NewsTimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid news timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatNewsQueryTime formats t as "yyyymmddThhmm" in UTC.
func FormatNewsQueryTime(t time.Time) string {
	return t.UTC().Format(NewsQueryLayout)
}
