package extract

import (
	"strings"
	"time"
)

var spaceRun = strings.NewReplacer("  ", " ")

// Timestamp parses a captured timestamp string with the registry entry's
// layout. Layouts without a year (classic syslog) are completed with the
// year of now; if that lands more than a day in the future the previous
// year is used instead. Returns false when the value does not parse.
func Timestamp(value, layout string, now time.Time) (time.Time, bool) {
	if layout == "" {
		return time.Time{}, false
	}

	// syslog pads single-digit days with a second space
	value = collapseSpaces(value)

	ts, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, false
	}

	if ts.Year() == 0 {
		ts = ts.AddDate(now.Year(), 0, 0)
		if ts.After(now.Add(24 * time.Hour)) {
			ts = ts.AddDate(-1, 0, 0)
		}
	}

	return ts.UTC(), true
}

// ISOTimestamp parses an ISO-8601 timestamp as found in JSON payloads and
// Fluent Bit batches. A trailing "Z" and explicit offsets are both accepted;
// zone-less values are taken as UTC.
func ISOTimestamp(value string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = spaceRun.Replace(s)
	}
	return s
}
