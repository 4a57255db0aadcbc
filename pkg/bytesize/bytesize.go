// Package bytesize formats byte counts as human-readable strings using
// binary (1024-based) units.
package bytesize

import (
	"fmt"
	"strings"
)

// Size is a byte count.
type Size int64

// Binary size constants.
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
	PB Size = 1024 * TB
)

// Format renders a size using the largest unit that yields a value of
// at least one. Whole numbers print without decimals; fractional values
// keep up to two places with trailing zeros trimmed.
func Format(s Size) string {
	if s == 0 {
		return "0B"
	}

	negative := s < 0
	if negative {
		s = -s
	}

	var out string
	switch {
	case s >= PB:
		out = scaled(float64(s)/float64(PB), "PB")
	case s >= TB:
		out = scaled(float64(s)/float64(TB), "TB")
	case s >= GB:
		out = scaled(float64(s)/float64(GB), "GB")
	case s >= MB:
		out = scaled(float64(s)/float64(MB), "MB")
	case s >= KB:
		out = scaled(float64(s)/float64(KB), "KB")
	default:
		out = fmt.Sprintf("%dB", s)
	}

	if negative {
		return "-" + out
	}
	return out
}

func scaled(value float64, unit string) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d%s", int64(value), unit)
	}
	formatted := strings.TrimRight(fmt.Sprintf("%.2f", value), "0")
	formatted = strings.TrimRight(formatted, ".")
	return formatted + unit
}

// Bytes returns the size in bytes.
func (s Size) Bytes() int64 {
	return int64(s)
}

// String returns the formatted size.
func (s Size) String() string {
	return Format(s)
}
