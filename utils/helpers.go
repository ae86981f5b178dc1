package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

func IsValidInterval(interval string) bool {
	switch interval {
	case "Minute", "Hour", "Day", "Week", "Month", "Quarter", "Year":
		return true
	default:
		return false
	}
}

// NormalizeInterval accepts "day", "DAY" or "Day".
func NormalizeInterval(interval string) string {
	if interval == "" {
		return ""
	}
	lower := strings.ToLower(interval)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsSlug reports whether s is a lowercase, hyphen-separated URL slug.
func IsSlug(s string) bool {
	return len(s) <= 200 && slugPattern.MatchString(s)
}

const DefaultRangeDays = 7

// ParseTimeRange reads RFC3339 start/end query values. Empty start defaults
// to DefaultRangeDays before end; empty end defaults to now.
func ParseTimeRange(startParam, endParam string, now time.Time) (start, end time.Time, err error) {
	end = now.UTC()
	if endParam != "" {
		end, err = time.Parse(time.RFC3339, endParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'end' timestamp format, use RFC3339 (e.g. 2006-01-02T15:04:05Z)")
		}
	}

	start = end.Add(-DefaultRangeDays * 24 * time.Hour)
	if startParam != "" {
		start, err = time.Parse(time.RFC3339, startParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'start' timestamp format, use RFC3339 (e.g. 2006-01-02T15:04:05Z)")
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("'start' must not be after 'end'")
	}
	return start, end, nil
}

// ParseLimit reads a positive integer limit, capped at max. Empty yields def.
func ParseLimit(param string, def, max uint64) (uint64, error) {
	if param == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(param, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid 'limit' parameter, must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
