package pace

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ISODate is the date layout used everywhere in the calendar.
const ISODate = "2006-01-02"

// ParseClock converts "h:mm:ss", "m:ss" or a bare seconds string into seconds.
func ParseClock(clock string) (int, error) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return 0, fmt.Errorf("empty time string")
	}

	parts := strings.Split(clock, ":")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, fmt.Errorf("invalid time %q: %w", clock, err)
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2], nil
	case 2:
		return nums[0]*60 + nums[1], nil
	case 1:
		return nums[0], nil
	default:
		return 0, fmt.Errorf("invalid time %q", clock)
	}
}

// FormatClock renders seconds as "h:mm:ss", or "m:ss" when under an hour.
func FormatClock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPace renders seconds-per-km as "m:ss".
func FormatPace(secPerKm int) string {
	if secPerKm <= 0 {
		return "--"
	}
	return fmt.Sprintf("%d:%02d", secPerKm/60, secPerKm%60)
}

// PerKm computes rounded seconds-per-km for a run, 0 when distance is not positive.
func PerKm(durationSec int, km float64) int {
	if km <= 0 || durationSec <= 0 {
		return 0
	}
	return int(math.Round(float64(durationSec) / km))
}

// WeekRange returns the Monday 00:00:00 and Sunday 23:59:59.999999999
// bounds of the week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	day := (int(t.Weekday()) + 6) % 7 // Monday = 0
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -day)
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}

// StartOfNextWeek returns the Monday strictly after t, at midnight.
func StartOfNextWeek(t time.Time) time.Time {
	day := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 7-day)
}

// WeeksBetween returns ceil((to-from)/7d), clamped at zero.
func WeeksBetween(from, to time.Time) int {
	diff := to.Sub(from)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / (24 * 7)))
}
