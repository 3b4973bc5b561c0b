package tasks

import (
	"strings"
	"time"
)

// Layouts seen across the integrations: RFC 3339 from Calendar, date-only
// from Calendar all-day events and Jira due dates, and Jira's resolution
// timestamps whose zone offset has no colon.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseISO parses an ISO-8601 timestamp or date. Failure is an expected
// outcome for malformed source data, never an error.
func parseISO(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// MostRecentMonday returns Monday 00:00:00 of the week containing now.
func MostRecentMonday(now time.Time) time.Time {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, monday.Location())
}
