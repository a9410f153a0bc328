package search

import (
	"regexp"
	"strconv"
	"time"
)

var dateQueryPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`)

// ParseDateQuery parses a DD/MM/YY query into midnight of that day in loc.
// Two-digit years are taken as 20YY. Dates that do not exist on the calendar,
// such as 31/02/25, are rejected rather than rolled over.
func ParseDateQuery(s string, loc *time.Location) (time.Time, bool) {
	m := dateQueryPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	year += 2000

	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}

	if loc == nil {
		loc = time.Local
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}
