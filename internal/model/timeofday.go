package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ClockRange is a minute-granularity window within a day. A range whose End
// is before its Start wraps midnight.
type ClockRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

var clockRangeRe = regexp.MustCompile(`^(\d{2}):(\d{2})-(\d{2}):(\d{2})$`)

// ParseClockRange parses an "HH:MM-HH:MM" range.
func ParseClockRange(value string) (ClockRange, error) {
	m := clockRangeRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ClockRange{}, fmt.Errorf("invalid time range %q, expected HH:MM-HH:MM", value)
	}
	start, err := parseClock(m[1], m[2])
	if err != nil {
		return ClockRange{}, err
	}
	end, err := parseClock(m[3], m[4])
	if err != nil {
		return ClockRange{}, err
	}
	return ClockRange{Start: start, End: end}, nil
}

func parseClock(hh, mm string) (int, error) {
	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(mm)
	if hour > 23 {
		return 0, fmt.Errorf("hour %d out of range", hour)
	}
	if minute > 59 {
		return 0, fmt.Errorf("minute %d out of range", minute)
	}
	return hour*60 + minute, nil
}

// Contains reports whether the timestamp falls inside the range, inclusive
// at both ends.
func (r ClockRange) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	if r.End < r.Start {
		return minute >= r.Start || minute <= r.End
	}
	return minute >= r.Start && minute <= r.End
}

// String renders the range back to HH:MM-HH:MM form.
func (r ClockRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}

// Symbolic time-of-day buckets accepted as time pattern values.
var timeBuckets = map[string]ClockRange{
	"morning":   {Start: 6 * 60, End: 11*60 + 59},
	"afternoon": {Start: 12 * 60, End: 16*60 + 59},
	"evening":   {Start: 17 * 60, End: 20*60 + 59},
	"night":     {Start: 21 * 60, End: 5*60 + 59},
}

// TimeSpec is the parsed form of a time pattern value: a symbolic bucket,
// a weekend/weekday selector, or an explicit clock range.
type TimeSpec struct {
	Bucket  string
	Weekend bool
	Weekday bool
	Range   *ClockRange
}

// ParseTimeSpec parses a time pattern value.
func ParseTimeSpec(value string) (TimeSpec, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		return TimeSpec{}, fmt.Errorf("time value cannot be empty")
	case "weekend":
		return TimeSpec{Weekend: true}, nil
	case "weekday":
		return TimeSpec{Weekday: true}, nil
	}
	if _, ok := timeBuckets[v]; ok {
		return TimeSpec{Bucket: v}, nil
	}
	r, err := ParseClockRange(v)
	if err != nil {
		return TimeSpec{}, fmt.Errorf("time value %q is not a bucket, weekend/weekday, or HH:MM-HH:MM range", value)
	}
	return TimeSpec{Range: &r}, nil
}

// Contains reports whether the timestamp satisfies the spec.
func (s TimeSpec) Contains(t time.Time) bool {
	switch {
	case s.Weekend:
		return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
	case s.Weekday:
		return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
	case s.Bucket != "":
		return timeBuckets[s.Bucket].Contains(t)
	case s.Range != nil:
		return s.Range.Contains(t)
	}
	return false
}

// TimeOfDayBucket returns the symbolic bucket a timestamp falls into.
func TimeOfDayBucket(t time.Time) string {
	for name, r := range timeBuckets {
		if r.Contains(t) {
			return name
		}
	}
	return "night"
}

// DayOfWeekValue returns the lowercase day name for a timestamp.
func DayOfWeekValue(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}
