// Package duration parses human-friendly duration strings. It accepts
// everything time.ParseDuration does and adds calendar units (days,
// weeks, months, years) plus spelled-out unit names, so a retention
// period can be written as "30 days" or "2w" instead of "720h".
//
// Calendar units are fixed-width approximations: a day is 24 hours, a
// week 7 days, a month 30 days, a year 365 days.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

// calendarHours maps calendar unit spellings to their size in hours.
var calendarHours = map[string]int64{
	"y": 365 * 24, "yr": 365 * 24, "yrs": 365 * 24, "year": 365 * 24, "years": 365 * 24,
	"mo": 30 * 24, "mos": 30 * 24, "month": 30 * 24, "months": 30 * 24,
	"w": 7 * 24, "wk": 7 * 24, "wks": 7 * 24, "week": 7 * 24, "weeks": 7 * 24,
	"d": 24, "day": 24, "days": 24,
}

// wordUnits maps spelled-out clock units to the short forms
// time.ParseDuration understands.
var wordUnits = map[string]string{
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
	"millisecond": "ms", "milliseconds": "ms",
	"microsecond": "us", "microseconds": "us",
	"nanosecond": "ns", "nanoseconds": "ns",
}

var (
	calendarPattern = regexp.MustCompile(`(?i)(\d+)\s*(years?|yrs?|y|months?|mos?|mo|weeks?|wks?|w|days?|d)`)
	wordPattern     = regexp.MustCompile(`(?i)(\d+)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?|milliseconds?|microseconds?|nanoseconds?)`)
)

// Parse converts a duration string to a time.Duration. Calendar units
// are folded into hours, spelled-out clock units are shortened, and the
// result is handed to time.ParseDuration. Whitespace between a number
// and its unit is optional.
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	s = strings.TrimSpace(s)

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var hours int64
	rest := calendarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := calendarPattern.FindStringSubmatch(match)
		if len(parts) == 3 {
			n, _ := strconv.ParseInt(parts[1], 10, 64)
			if mult, ok := calendarHours[strings.ToLower(parts[2])]; ok {
				hours += n * mult
			}
		}
		return ""
	})

	rest = wordPattern.ReplaceAllStringFunc(rest, func(match string) string {
		parts := wordPattern.FindStringSubmatch(match)
		if len(parts) == 3 {
			if short, ok := wordUnits[strings.ToLower(parts[2])]; ok {
				return parts[1] + short
			}
		}
		return match
	})

	// time.ParseDuration rejects spaces between components.
	rest = strings.Join(strings.Fields(rest), "")

	var spec string
	if hours > 0 {
		spec = fmt.Sprintf("%dh", hours)
	}
	spec += rest
	if spec == "" {
		spec = "0s"
	}

	d, err := time.ParseDuration(spec)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// Format renders a duration using the largest applicable units, largest
// first, omitting zero components: 31 days prints as "1mo1d", 90
// minutes as "1h30m".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var b strings.Builder
	for _, step := range []struct {
		unit time.Duration
		name string
	}{
		{Year, "y"}, {Month, "mo"}, {Week, "w"}, {Day, "d"},
		{time.Hour, "h"}, {time.Minute, "m"}, {time.Second, "s"},
		{time.Millisecond, "ms"}, {time.Microsecond, "µs"}, {time.Nanosecond, "ns"},
	} {
		if n := d / step.unit; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, step.name)
			d -= n * step.unit
		}
	}

	if b.Len() == 0 {
		return "0s"
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}
