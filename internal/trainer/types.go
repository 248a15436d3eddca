package trainer

import (
	"math"
	"time"
)

// WorkoutType classifies a planned session.
type WorkoutType string

const (
	TypeEasy     WorkoutType = "easy"
	TypeLong     WorkoutType = "long"
	TypeTempo    WorkoutType = "tempo"
	TypeInterval WorkoutType = "interval"
	TypeRecovery WorkoutType = "recovery"

	// TypeRun is the fallback classification for free-text workouts that
	// name no recognizable type. Not accepted by the plan validator.
	TypeRun WorkoutType = "run"
)

// ValidType reports whether t is one of the five planable workout types.
func ValidType(t WorkoutType) bool {
	switch t {
	case TypeEasy, TypeLong, TypeTempo, TypeInterval, TypeRecovery:
		return true
	}
	return false
}

// DefaultNotes returns the stock note for a workout type.
func DefaultNotes(t WorkoutType) string {
	switch t {
	case TypeEasy:
		return "Easy Z2"
	case TypeLong:
		return "Long Z2"
	default:
		return "Quality Z3-4"
	}
}

// RaceGoal describes the target race. Any one of distance, time and pace can
// be derived from the other two.
type RaceGoal struct {
	Name            string  `json:"name"`
	DateTime        *string `json:"dateTime"` // RFC 3339, nil when unset
	TargetKm        float64 `json:"targetKm"`
	TargetTimeSec   *int    `json:"targetTimeSec"`
	TargetPaceSecKm *int    `json:"targetPaceSecPerKm"`
}

// Date returns the race day, or false when no race date is set.
func (r RaceGoal) Date() (time.Time, bool) {
	if r.DateTime == nil || *r.DateTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *r.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FillMissingTarget derives whichever of distance, time or pace is absent
// from the two that are present. No-op when fewer than two are set.
func (r *RaceGoal) FillMissingTarget() {
	d, t, p := r.TargetKm, r.TargetTimeSec, r.TargetPaceSecKm
	switch {
	case d > 0 && t != nil && p == nil:
		pace := int(math.Round(float64(*t) / d))
		r.TargetPaceSecKm = &pace
	case d > 0 && p != nil && t == nil:
		total := int(math.Round(float64(*p) * d))
		r.TargetTimeSec = &total
	case t != nil && p != nil && d == 0 && *p > 0:
		r.TargetKm = math.Round(float64(*t)/float64(*p)*100) / 100
	}
}

// TrainingParameters is the user-edited source of truth for plan generation.
type TrainingParameters struct {
	Race             RaceGoal `json:"race"`
	WeeklyGoalKm     float64  `json:"weeklyGoalKm"`
	MaxHR            *int     `json:"maxHr"`
	RunsPerWeek      int      `json:"runsPerWeek"`
	TaperWeeks       int      `json:"taperWeeks"`
	LongestRunEverKm *float64 `json:"longestRunEverKm"`
}

// Normalized returns a copy with runs-per-week and taper clamped into their
// legal ranges and zero values replaced by the defaults.
func (p TrainingParameters) Normalized() TrainingParameters {
	if p.RunsPerWeek == 0 {
		p.RunsPerWeek = 4
	}
	if p.TaperWeeks == 0 {
		p.TaperWeeks = 2
	}
	p.RunsPerWeek = clampInt(p.RunsPerWeek, 1, 7)
	p.TaperWeeks = clampInt(p.TaperWeeks, 1, 4)
	if p.WeeklyGoalKm <= 0 {
		p.WeeklyGoalKm = 40
	}
	return p
}

// SafetyCap is the maximum distance allowed for any single run: the longest
// run ever plus a small margin, bounded to [20,25] km. 25 when unknown.
func (p TrainingParameters) SafetyCap() float64 {
	if p.LongestRunEverKm == nil || *p.LongestRunEverKm <= 0 {
		return 25
	}
	capKm := math.Round(*p.LongestRunEverKm + 3)
	if capKm < 20 {
		capKm = 20
	}
	if capKm > 25 {
		capKm = 25
	}
	return capKm
}

// PlannedWorkout is one dated session in the calendar. Identity is the
// (Date, Type) pair.
type PlannedWorkout struct {
	ID             string      `json:"id"`
	Date           string      `json:"date"` // ISO YYYY-MM-DD
	Type           WorkoutType `json:"type"`
	PlannedKm      float64     `json:"plannedKm"`
	PlannedTimeSec *int        `json:"plannedTimeSec"`
	Notes          string      `json:"notes"`
	Pace           string      `json:"pace,omitempty"` // "m:ss" per km, optional
}

// LoggedRun is a completed run. Never auto-mutated; deleted explicitly.
type LoggedRun struct {
	ID            string  `json:"id"`
	DateTime      string  `json:"dateTime"` // ISO timestamp
	ActualKm      float64 `json:"actualKm"`
	ActualTimeSec int     `json:"actualTimeSec"`
	Notes         string  `json:"notes"`
}

// Date returns the calendar-day part of the run timestamp.
func (r LoggedRun) Date() string {
	if len(r.DateTime) < 10 {
		return r.DateTime
	}
	return r.DateTime[:10]
}

// PersonalRecord is the best time for one canonical distance.
type PersonalRecord struct {
	DistKm  float64 `json:"distKm"`
	TimeSec *int    `json:"timeSec"`
}

// RecordTargets are the canonical record distances in km.
var RecordTargets = []float64{1, 5, 10, 21.1, 42.2}

// DefaultRecords returns an unset record slot per canonical distance.
func DefaultRecords() []PersonalRecord {
	recs := make([]PersonalRecord, 0, len(RecordTargets))
	for _, d := range RecordTargets {
		recs = append(recs, PersonalRecord{DistKm: d})
	}
	return recs
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
