package coach

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"marathon-trainer/internal/pace"
	"marathon-trainer/internal/trainer"
)

var (
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	paceRe    = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// Validate checks a parsed payload against the plan window and the training
// parameters. Every violation is reported independently; an empty slice
// means the plan is acceptable. The strings are written for humans; the
// dialogue flow feeds them back to the model verbatim when asking for a
// corrected plan.
func Validate(payload *PlanPayload, start, race time.Time, params trainer.TrainingParameters) []string {
	if payload == nil || payload.Workouts == nil {
		return []string{"Missing 'workouts' array."}
	}
	params = params.Normalized()
	capKm := params.SafetyCap()

	var errs []string
	seen := map[string]bool{}
	var prev time.Time
	havePrev := false

	for i, w := range payload.Workouts {
		var day time.Time
		if !isoDateRe.MatchString(w.Date) {
			errs = append(errs, fmt.Sprintf("Item %d has invalid date '%s'", i, w.Date))
		} else {
			day, _ = time.Parse(pace.ISODate, w.Date)
			if day.Before(start) || day.After(race) {
				errs = append(errs, fmt.Sprintf("Item %d date out of range %s", i, w.Date))
			}
			if havePrev && prev.After(day) {
				errs = append(errs, fmt.Sprintf("Item %d not sorted by date", i))
			}
			if seen[w.Date] {
				errs = append(errs, fmt.Sprintf("Duplicate date %s", w.Date))
			}
			seen[w.Date] = true
			prev, havePrev = day, true
		}

		if !trainer.ValidType(trainer.WorkoutType(w.Type)) {
			errs = append(errs, fmt.Sprintf("Item %d has invalid type '%s'", i, w.Type))
		}
		if w.Km < 0 || math.IsNaN(w.Km) {
			errs = append(errs, fmt.Sprintf("Item %d has invalid km '%g'", i, w.Km))
		}
		if w.Km > capKm {
			errs = append(errs, fmt.Sprintf("Item %d km %g exceeds cap %g", i, w.Km, capKm))
		}
		if !paceRe.MatchString(w.Pace) {
			errs = append(errs, fmt.Sprintf("Item %d has invalid pace '%s'", i, w.Pace))
		}
	}

	weeks := pace.WeeksBetween(start, race)
	if weeks < 1 {
		weeks = 1
	}
	minCount := int(math.Floor(float64(weeks) * float64(params.RunsPerWeek) * 0.6))
	maxCount := int(math.Ceil(float64(weeks) * float64(params.RunsPerWeek) * 1.5))
	if len(payload.Workouts) < minCount {
		errs = append(errs, fmt.Sprintf("Too few workouts (%d < %d)", len(payload.Workouts), minCount))
	}
	if len(payload.Workouts) > maxCount {
		errs = append(errs, fmt.Sprintf("Too many workouts (%d > %d)", len(payload.Workouts), maxCount))
	}
	return errs
}
