// Package stats aggregates the run log and derives training reference data.
package stats

import (
	"math"
	"time"

	"marathon-trainer/internal/pace"
	"marathon-trainer/internal/trainer"
)

// Totals is an aggregate over a set of logged runs.
type Totals struct {
	Km    float64
	Sec   int
	Count int
}

// Weekly sums the runs falling inside the Monday-Sunday week containing date.
func Weekly(runs []trainer.LoggedRun, date time.Time) Totals {
	start, end := pace.WeekRange(date)
	var t Totals
	for _, r := range runs {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05", r.DateTime, date.Location())
		if err != nil {
			if ts, err = time.Parse(time.RFC3339, r.DateTime); err != nil {
				continue
			}
		}
		if ts.Before(start) || ts.After(end) {
			continue
		}
		t.Km += r.ActualKm
		t.Sec += r.ActualTimeSec
		t.Count++
	}
	return t
}

// Lifetime sums the entire run log.
func Lifetime(runs []trainer.LoggedRun) Totals {
	var t Totals
	for _, r := range runs {
		t.Km += r.ActualKm
		t.Sec += r.ActualTimeSec
	}
	t.Count = len(runs)
	return t
}

// HRZone is one heart-rate training zone.
type HRZone struct {
	Label string
	Low   int
	High  int
}

// HRZones derives the five classic zones from max heart rate, nil when
// max HR is unknown.
func HRZones(maxHR int) []HRZone {
	if maxHR <= 0 {
		return nil
	}
	pct := func(f float64) int { return int(math.Round(float64(maxHR) * f)) }
	return []HRZone{
		{"Z1", pct(0.5), pct(0.6)},
		{"Z2", pct(0.6), pct(0.7)},
		{"Z3", pct(0.7), pct(0.8)},
		{"Z4", pct(0.8), pct(0.9)},
		{"Z5", pct(0.9), maxHR},
	}
}

// Countdown is the time remaining until the race, floored at zero.
type Countdown struct {
	Days    int
	Hours   int
	Minutes int
}

// UntilRace computes the countdown from now to the race start.
func UntilRace(race trainer.RaceGoal, now time.Time) (Countdown, bool) {
	dt, ok := race.Date()
	if !ok {
		return Countdown{}, false
	}
	diff := int(dt.Sub(now).Seconds())
	if diff < 0 {
		diff = 0
	}
	c := Countdown{Days: diff / 86400}
	diff -= c.Days * 86400
	c.Hours = diff / 3600
	diff -= c.Hours * 3600
	c.Minutes = diff / 60
	return c, true
}
