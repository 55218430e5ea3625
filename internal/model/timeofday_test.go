package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day time.Weekday, hour, minute int) time.Time {
	// 2025-06-02 is a Monday.
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(day-time.Monday)).
		Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestParseClockRange(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "normal range", value: "06:00-11:59"},
		{name: "wrapping range", value: "22:00-02:00"},
		{name: "bad hour", value: "24:00-02:00", wantErr: true},
		{name: "bad minute", value: "06:60-11:00", wantErr: true},
		{name: "missing end", value: "06:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseClockRange(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, r.String())
		})
	}
}

func TestClockRangeContains(t *testing.T) {
	day, err := ParseClockRange("09:00-17:00")
	require.NoError(t, err)
	assert.True(t, day.Contains(at(time.Monday, 9, 0)), "inclusive start")
	assert.True(t, day.Contains(at(time.Monday, 17, 0)), "inclusive end")
	assert.False(t, day.Contains(at(time.Monday, 17, 1)))
	assert.False(t, day.Contains(at(time.Monday, 8, 59)))

	night, err := ParseClockRange("22:00-02:00")
	require.NoError(t, err)
	assert.True(t, night.Contains(at(time.Monday, 23, 30)), "before midnight")
	assert.True(t, night.Contains(at(time.Monday, 1, 0)), "after midnight")
	assert.False(t, night.Contains(at(time.Monday, 12, 0)))
}

func TestParseTimeSpec(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		timestamp time.Time
		want      bool
		wantErr   bool
	}{
		{name: "morning bucket hit", value: "morning", timestamp: at(time.Monday, 8, 30), want: true},
		{name: "morning bucket miss", value: "morning", timestamp: at(time.Monday, 12, 0), want: false},
		{name: "afternoon bucket", value: "Afternoon", timestamp: at(time.Monday, 14, 0), want: true},
		{name: "evening bucket", value: "evening", timestamp: at(time.Monday, 19, 0), want: true},
		{name: "night wraps midnight", value: "night", timestamp: at(time.Monday, 2, 0), want: true},
		{name: "weekend on saturday", value: "weekend", timestamp: at(time.Saturday, 10, 0), want: true},
		{name: "weekend on tuesday", value: "weekend", timestamp: at(time.Tuesday, 10, 0), want: false},
		{name: "weekday on tuesday", value: "weekday", timestamp: at(time.Tuesday, 10, 0), want: true},
		{name: "explicit range", value: "06:00-09:00", timestamp: at(time.Monday, 7, 0), want: true},
		{name: "empty rejected", value: "", wantErr: true},
		{name: "gibberish rejected", value: "brunch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseTimeSpec(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.Contains(tt.timestamp))
		})
	}
}

func TestTimeOfDayBucket(t *testing.T) {
	assert.Equal(t, "morning", TimeOfDayBucket(at(time.Monday, 6, 0)))
	assert.Equal(t, "afternoon", TimeOfDayBucket(at(time.Monday, 12, 0)))
	assert.Equal(t, "evening", TimeOfDayBucket(at(time.Monday, 20, 59)))
	assert.Equal(t, "night", TimeOfDayBucket(at(time.Monday, 3, 0)))
}

func TestDayOfWeekValue(t *testing.T) {
	assert.Equal(t, "monday", DayOfWeekValue(at(time.Monday, 12, 0)))
	assert.Equal(t, "sunday", DayOfWeekValue(at(time.Sunday, 12, 0)))
}
