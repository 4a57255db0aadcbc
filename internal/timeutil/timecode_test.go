package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/models"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"90", 90, false},
		{"90.5", 90.5, false},
		{"0", 0, false},
		{"01:30", 90, false},
		{"1:05", 65, false},
		{"01:30.250", 90.25, false},
		{"01:02:03", 3723, false},
		{"01:02:03.500", 3723.5, false},
		{"00:00:00", 0, false},
		{" 45 ", 45, false},
		{"", 0, true},
		{"  ", 0, true},
		{"abc", 0, true},
		{"1:2:3:4", 0, true},
		{"-5", 0, true},
		{"01:-30", 0, true},
		{"01:75", 0, true},
		{"01:60:00", 0, true},
		{"1.5:30", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimecode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, models.IsKind(err, models.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormatTimecode(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{90, "00:01:30.000"},
		{90.25, "00:01:30.250"},
		{3723.5, "01:02:03.500"},
		{0.0015, "00:00:00.002"},
		{-7, "00:00:00.000"},
		{86399.999, "23:59:59.999"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimecode(tt.seconds))
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, seconds := range []float64{0, 1.5, 59.999, 61, 3599, 3600.25, 7261.75} {
		formatted := FormatTimecode(seconds)
		parsed, err := ParseTimecode(formatted)
		require.NoError(t, err, formatted)
		assert.InDelta(t, seconds, parsed, 0.001, formatted)
	}
}

func TestClipWindow(t *testing.T) {
	maxDur := 600 * time.Second

	start, end, err := ClipWindow("00:01:00", "00:02:30", maxDur)
	require.NoError(t, err)
	assert.Equal(t, 60.0, start)
	assert.Equal(t, 150.0, end)

	// End must be strictly after start.
	_, _, err = ClipWindow("00:02:00", "00:02:00", maxDur)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, _, err = ClipWindow("00:02:00", "00:01:00", maxDur)
	assert.Error(t, err)

	// Duration capped by policy.
	_, _, err = ClipWindow("00:00:00", "00:10:01", maxDur)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the maximum")

	// Exactly at the cap is allowed.
	_, _, err = ClipWindow("00:00:00", "00:10:00", maxDur)
	assert.NoError(t, err)

	// Parse failures surface as validation errors.
	_, _, err = ClipWindow("bogus", "00:01:00", maxDur)
	assert.True(t, models.IsKind(err, models.KindValidation))
}
