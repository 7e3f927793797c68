package utils

import (
	"fmt"
	"time"
)

// TimestampLayout is the UTC layout used for every timestamp the service emits.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 with or without a zone. Zoneless values are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported layout", value)
}

// FormatTimestamp renders t in UTC with a literal Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DurationSeconds returns the absolute distance between two timestamps in seconds.
func DurationSeconds(start, end time.Time) float64 {
	if end.Before(start) {
		start, end = end, start
	}
	return end.Sub(start).Seconds()
}
