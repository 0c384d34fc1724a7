package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timestampMatcher recognizes one timestamp convention.
// match returns false when raw is not in that convention or names an impossible instant.
type timestampMatcher struct {
	name  string
	match func(raw string) (time.Time, bool)
}

var (
	yearFirstDotted = regexp.MustCompile(`^(\d{4})\.(\d{2})\.(\d{2})\s+(\d{2}):(\d{2})(?::(\d{2}))?(?:\.(\d{1,3}))?$`)
	dayFirstDotted  = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})\s+(\d{2}):(\d{2})(?::(\d{2}))?(?:\.(\d{1,3}))?$`)
	dashed          = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})\s+(\d{2}):(\d{2})(?::(\d{2}))?$`)
)

// isoLayouts are tried in order by the fallback matcher. Zone-less layouts are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// timestampMatchers is the fixed priority order. The year-first dotted form must run
// before the day-first one: the two differ only in where the four-digit group sits.
var timestampMatchers = []timestampMatcher{
	{name: "YYYY.MM.DD", match: matchYearFirstDotted},
	{name: "DD.MM.YYYY", match: matchDayFirstDotted},
	{name: "YYYY-MM-DD", match: matchDashed},
	{name: "ISO-8601", match: matchISO},
}

// DecodeTimestamp converts a raw file timestamp into a UTC instant.
// Every component is read as UTC; no zone is inferred from the host.
func DecodeTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrMalformedTimestamp)
	}
	for _, m := range timestampMatchers {
		if t, ok := m.match(s); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
}

func matchYearFirstDotted(s string) (time.Time, bool) {
	g := yearFirstDotted.FindStringSubmatch(s)
	if g == nil {
		return time.Time{}, false
	}
	return buildUTC(g[1], g[2], g[3], g[4], g[5], g[6], g[7])
}

func matchDayFirstDotted(s string) (time.Time, bool) {
	g := dayFirstDotted.FindStringSubmatch(s)
	if g == nil {
		return time.Time{}, false
	}
	return buildUTC(g[3], g[2], g[1], g[4], g[5], g[6], g[7])
}

func matchDashed(s string) (time.Time, bool) {
	g := dashed.FindStringSubmatch(s)
	if g == nil {
		return time.Time{}, false
	}
	return buildUTC(g[1], g[2], g[3], g[4], g[5], g[6], "")
}

func matchISO(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// buildUTC assembles an instant from decimal components and rejects
// values that time.Date would silently normalize, such as 31 February.
func buildUTC(year, month, day, hour, minute, second, millis string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	h, _ := strconv.Atoi(hour)
	mi, _ := strconv.Atoi(minute)

	var sec, ms int
	if second != "" {
		sec, _ = strconv.Atoi(second)
	}
	if millis != "" {
		// ".5" is five hundred milliseconds
		ms, _ = strconv.Atoi((millis + "00")[:3])
	}

	if mo < 1 || mo > 12 || h > 23 || mi > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, h, mi, sec, ms*int(time.Millisecond), time.UTC)
	if t.Day() != d || t.Month() != time.Month(mo) {
		return time.Time{}, false
	}
	return t, true
}

// IsWeekend reports whether t falls on Saturday or Sunday in UTC
func IsWeekend(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}
