// Package timeutil provides media timecode parsing and formatting.
//
// Accepted input forms (fractional seconds optional in each):
//   - "90" or "90.5": plain seconds
//   - "MM:SS" e.g. "01:30"
//   - "HH:MM:SS" e.g. "01:02:03.250"
//
// Output uses the canonical "HH:MM:SS.mmm" form.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// ParseTimecode converts a timecode string to seconds.
func ParseTimecode(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, models.NewError(models.KindValidation, "timecode is empty")
	}

	parts := strings.Split(trimmed, ":")
	if len(parts) > 3 {
		return 0, models.NewError(models.KindValidation, "invalid timecode %q: too many segments", s)
	}

	var total float64
	for i, part := range parts {
		// Only the final segment may carry a fraction, but ParseFloat
		// accepts it anywhere; reject fractions on non-second segments.
		if i < len(parts)-1 && strings.Contains(part, ".") {
			return 0, models.NewError(models.KindValidation, "invalid timecode %q: fractional minutes or hours", s)
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, models.NewError(models.KindValidation, "invalid timecode %q", s)
		}
		if v < 0 {
			return 0, models.NewError(models.KindValidation, "invalid timecode %q: negative segment", s)
		}
		total = total*60 + v
	}

	// Minute and second segments must stay below 60 in multi-part forms.
	if len(parts) > 1 {
		for _, part := range parts[1:] {
			v, _ := strconv.ParseFloat(part, 64)
			if v >= 60 {
				return 0, models.NewError(models.KindValidation, "invalid timecode %q: segment out of range", s)
			}
		}
	}

	return total, nil
}

// FormatTimecode converts seconds to the canonical "HH:MM:SS.mmm" form.
// Negative values are clamped to zero.
func FormatTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	totalMillis -= hours * 3_600_000
	minutes := totalMillis / 60_000
	totalMillis -= minutes * 60_000
	secs := totalMillis / 1000
	millis := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}

// ClipWindow validates a start/end timecode pair against a maximum duration
// policy and returns the parsed bounds in seconds.
func ClipWindow(startTC, endTC string, maxDuration time.Duration) (start, end float64, err error) {
	start, err = ParseTimecode(startTC)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseTimecode(endTC)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, models.NewError(models.KindValidation, "end time %q must be after start time %q", endTC, startTC)
	}
	if d := end - start; d > maxDuration.Seconds() {
		return 0, 0, models.NewError(models.KindValidation,
			"clip duration %.1fs exceeds the maximum of %.0fs", d, maxDuration.Seconds())
	}
	return start, end, nil
}
