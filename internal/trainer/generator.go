package trainer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"marathon-trainer/internal/pace"
)

// The scheduling tables below encode training policy, not computation.
// Changing them is a coaching decision; keep them literal.

// preferredDays orders weekdays by desirability for a run. 0 = Monday.
var preferredDays = []int{1, 3, 5, 6, 0, 2, 4} // Tue, Thu, Sat, Sun, Mon, Wed, Fri

// weekTemplates maps runs-per-week to the workout types of the scheduled
// days, in weekday order.
var weekTemplates = map[int][]WorkoutType{
	1: {TypeLong},
	2: {TypeTempo, TypeLong},
	3: {TypeEasy, TypeTempo, TypeLong},
	4: {TypeEasy, TypeTempo, TypeEasy, TypeLong},
	5: {TypeInterval, TypeEasy, TypeTempo, TypeEasy, TypeLong},
	6: {TypeInterval, TypeEasy, TypeTempo, TypeEasy, TypeLong, TypeEasy},
	7: {TypeInterval, TypeEasy, TypeEasy, TypeTempo, TypeEasy, TypeLong, TypeEasy},
}

// taperFactors maps taper length to the volume multipliers of the final
// weeks, indexed by weeks remaining: entry 0 is race week.
var taperFactors = map[int][]float64{
	1: {0.6},
	2: {0.7, 0.5},
	3: {0.8, 0.6, 0.4},
	4: {0.85, 0.7, 0.55, 0.4},
}

// DefaultPlanWeeks is the planning horizon used when no race date is set.
const DefaultPlanWeeks = 12

// RunDays returns the weekday indices (0 = Monday) hosting n runs,
// ascending.
func RunDays(n int) []int {
	if n < 1 {
		n = 1
	}
	if n > len(preferredDays) {
		n = len(preferredDays)
	}
	days := append([]int(nil), preferredDays[:n]...)
	sort.Ints(days)
	return days
}

// PlanWeeks returns the number of training weeks from today until the race,
// or the default horizon when no race date is set.
func PlanWeeks(params TrainingParameters, today time.Time) int {
	race, ok := params.Race.Date()
	if !ok {
		return DefaultPlanWeeks
	}
	return pace.WeeksBetween(today, race)
}

// Generate produces a dated workout calendar from the training parameters.
// Workouts start on the Monday after today and run through race week, with
// the configured taper applied to the final weeks. Pure function of its
// inputs.
func Generate(params TrainingParameters, today time.Time) []PlannedWorkout {
	params = params.Normalized()

	weeks := PlanWeeks(params, today)
	start := pace.StartOfNextWeek(today)
	capKm := params.SafetyCap()
	factors := taperFactors[params.TaperWeeks]

	longStart := math.Max(8, math.Round(params.WeeklyGoalKm/3))
	longRun := longStart

	days := RunDays(params.RunsPerWeek)
	types := weekTemplates[params.RunsPerWeek]

	var plan []PlannedWorkout
	for w := 0; w < weeks; w++ {
		weekStart := start.AddDate(0, 0, w*7)
		remaining := weeks - 1 - w
		isTaper := remaining < params.TaperWeeks

		factor := 1.0
		if isTaper {
			if remaining < len(factors) {
				factor = factors[remaining]
			} else {
				factor = 0.6
			}
		}

		longToday := math.Min(capKm, math.Max(8, math.Round(longRun*factor)))
		easyKm := math.Max(5, math.Round(longToday*0.4))
		workoutKm := math.Max(6, math.Round(longToday*0.5))

		for j, dayIdx := range days {
			t := types[j]
			km := easyKm
			switch t {
			case TypeLong:
				km = longToday
			case TypeTempo, TypeInterval:
				km = workoutKm
			}
			date := weekStart.AddDate(0, 0, dayIdx).Format(pace.ISODate)
			plan = append(plan, PlannedWorkout{
				ID:        WorkoutID(date, t),
				Date:      date,
				Type:      t,
				PlannedKm: km,
				Notes:     DefaultNotes(t),
			})
		}

		if !isTaper {
			if (w+1)%4 == 0 {
				longRun = math.Max(longStart, math.Round(longRun*0.87))
			} else {
				longRun += 2
			}
		}
	}
	return plan
}

// WorkoutID derives the stable identity of a planned workout from its
// natural key.
func WorkoutID(date string, t WorkoutType) string {
	return fmt.Sprintf("pl_%s_%s", date, t)
}

// Summarize renders a plan as per-week totals with one line per workout,
// for chat and CLI display.
func Summarize(plan []PlannedWorkout) string {
	byWeek := map[string][]PlannedWorkout{}
	for _, p := range plan {
		d, err := time.Parse(pace.ISODate, p.Date)
		if err != nil {
			continue
		}
		ws, _ := pace.WeekRange(d)
		key := ws.Format(pace.ISODate)
		byWeek[key] = append(byWeek[key], p)
	}

	weeks := make([]string, 0, len(byWeek))
	for ws := range byWeek {
		weeks = append(weeks, ws)
	}
	sort.Strings(weeks)

	var b strings.Builder
	for _, ws := range weeks {
		items := byWeek[ws]
		sort.Slice(items, func(i, j int) bool { return items[i].Date < items[j].Date })
		var km float64
		for _, it := range items {
			km += it.PlannedKm
		}
		fmt.Fprintf(&b, "Week of %s: %g km\n", ws, km)
		for _, it := range items {
			fmt.Fprintf(&b, "  %s  %s  %g km\n", it.Date, it.Type, it.PlannedKm)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
