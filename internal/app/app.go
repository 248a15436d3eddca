// Package app wires the store, the local generator, the coach dialogue and
// the metrics sink into the operations the CLI and the bot expose.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"marathon-trainer/internal/coach"
	"marathon-trainer/internal/config"
	"marathon-trainer/internal/llm"
	"marathon-trainer/internal/metrics"
	"marathon-trainer/internal/pace"
	"marathon-trainer/internal/stats"
	"marathon-trainer/internal/store"
	"marathon-trainer/internal/trainer"
)

// recentRunSamples bounds how much run history travels in a coach prompt.
const recentRunSamples = 10

// App holds the application's dependencies. Coach and metrics may be nil
// when no provider or metrics sink is configured; every operation degrades
// to local behavior.
type App struct {
	Store   *store.Store
	Coach   *coach.Coach
	Metrics *metrics.Store
	Cfg     *config.Config

	// Now is swappable for tests.
	Now func() time.Time
}

// NewApp creates and initializes a new App instance.
func NewApp(st *store.Store, c *coach.Coach, m *metrics.Store, cfg *config.Config) *App {
	return &App{Store: st, Coach: c, Metrics: m, Cfg: cfg, Now: time.Now}
}

// GenerateLocalPlan builds a deterministic plan from the stored parameters
// and merges it into the calendar.
func (a *App) GenerateLocalPlan() (string, error) {
	params := a.Store.Params()
	plan := trainer.Generate(params, a.Now())
	if len(plan) == 0 {
		return "No plan to generate: the race date is in the past.", nil
	}
	added, updated := a.Store.ApplyPlan(plan)
	if err := a.Store.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Plan updated: %d workouts added, %d updated.\n\n%s",
		added, updated, trainer.Summarize(a.Store.Plan())), nil
}

// BuildAIPlan runs the coach dialogue and merges the result into the
// calendar. On failure the calendar is untouched and the reply explains
// what went wrong; a transport error additionally falls back to the local
// generator so the user always ends up with a plan.
func (a *App) BuildAIPlan(ctx context.Context) (string, error) {
	if a.Coach == nil {
		msg, err := a.GenerateLocalPlan()
		if err != nil {
			return "", err
		}
		return "No AI provider configured; generated locally instead.\n\n" + msg, nil
	}

	req := coach.PlanRequest{
		Params: a.Store.Params(),
		Recent: a.recentRuns(),
		Today:  a.Now(),
	}

	started := a.Now()
	res, err := a.Coach.BuildPlan(ctx, req)
	a.recordCall(ctx, "plan", res, started, err)
	if err != nil {
		log.Printf("coach unreachable, falling back to local generator: %v", err)
		msg, lerr := a.GenerateLocalPlan()
		if lerr != nil {
			return "", lerr
		}
		return "The coach was unreachable; generated locally instead.\n\n" + msg, nil
	}

	if res.State != coach.StateDone {
		var b strings.Builder
		b.WriteString("The coach could not produce a valid plan after ")
		fmt.Fprintf(&b, "%d attempts. Your calendar is unchanged.\n", res.Attempts)
		for _, p := range res.Problems {
			b.WriteString("- " + p + "\n")
		}
		// Salvage what the prose mentions, if anything.
		if loose := coach.ParseFreeText(res.RawText, a.Store.Params().Normalized().RunsPerWeek, a.Now()); len(loose) > 0 {
			fmt.Fprintf(&b, "\nI could read %d workouts from the reply text; save the reply and import it to use them anyway.", len(loose))
		}
		return b.String(), nil
	}

	added, updated := a.Store.ApplyPlan(res.Workouts)
	if err := a.Store.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Coach plan applied after %d attempt(s): %d added, %d updated.\n\n%s",
		res.Attempts, added, updated, trainer.Summarize(a.Store.Plan())), nil
}

// Chat dispatches a free-form message: plan-shaped requests run the plan
// dialogue, everything else gets advice.
func (a *App) Chat(ctx context.Context, text string) (string, error) {
	if coach.WantsPlan(text) {
		return a.BuildAIPlan(ctx)
	}
	return a.Advise(ctx, text)
}

// Advise answers a question with the coach, or with the deterministic
// fallback when no provider is configured or the provider fails.
func (a *App) Advise(ctx context.Context, text string) (string, error) {
	params := a.Store.Params()
	if a.Coach == nil {
		return coach.LocalAdvice(params, a.Now()), nil
	}

	req := coach.PlanRequest{Params: params, Recent: a.recentRuns(), Today: a.Now()}
	started := a.Now()
	resp, err := a.Coach.Advise(ctx, text, req)
	if a.Metrics != nil {
		outcome := "done"
		if err != nil {
			outcome = "error"
		}
		if merr := a.Metrics.RecordUsage(ctx, "advice", outcome, 1,
			[]llm.TokenUsage{resp.Usage}, a.Now().Sub(started)); merr != nil {
			log.Printf("failed to record metrics: %v", merr)
		}
	}
	if err != nil {
		log.Printf("advice request failed: %v", err)
		return coach.LocalAdvice(params, a.Now()), nil
	}
	return resp.Content, nil
}

// ImportPlanText runs the free-text heuristic over a saved coach reply and
// merges whatever it can read into the calendar. The manual escape hatch
// for replies the strict pipeline rejected.
func (a *App) ImportPlanText(text string) (string, error) {
	items := coach.ParseFreeText(text, a.Store.Params().Normalized().RunsPerWeek, a.Now())
	if len(items) == 0 {
		return "", fmt.Errorf("no workouts with distances found in the text")
	}
	added, updated := a.Store.ApplyPlan(items)
	if err := a.Store.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Imported %d workouts: %d added, %d updated.", len(items), added, updated), nil
}

// LogRun appends a run to the log, recomputes records, and persists.
func (a *App) LogRun(dateTime string, km float64, timeSec int, notes string) (trainer.LoggedRun, error) {
	if km <= 0 {
		return trainer.LoggedRun{}, fmt.Errorf("distance must be positive, got %g", km)
	}
	if dateTime == "" {
		dateTime = a.Now().Format("2006-01-02T15:04:05")
	}
	run := a.Store.AddRun(dateTime, km, timeSec, notes)
	a.Store.RecomputeRecords()
	if err := a.Store.Save(); err != nil {
		return trainer.LoggedRun{}, err
	}
	return run, nil
}

// CompleteDay marks the planned workout on date as done.
func (a *App) CompleteDay(date string, timeSec int) (string, error) {
	run, err := a.Store.CompleteDay(date, timeSec)
	if err != nil {
		return "", err
	}
	a.Store.RecomputeRecords()
	if err := a.Store.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Done: %.1f km on %s.", run.ActualKm, run.Date()), nil
}

// DeleteRun removes a run and recomputes records.
func (a *App) DeleteRun(id string) error {
	if !a.Store.DeleteRun(id) {
		return fmt.Errorf("no run with id %s", id)
	}
	a.Store.RecomputeRecords()
	return a.Store.Save()
}

// EditWorkout hand-places a single workout on a date, replacing whatever
// the calendar had there.
func (a *App) EditWorkout(date, typ string, km float64, notes string) (string, error) {
	w := trainer.PlannedWorkout{Date: date, Type: trainer.WorkoutType(typ), PlannedKm: km, Notes: notes}
	if err := a.Store.PutWorkout(w); err != nil {
		return "", err
	}
	if err := a.Store.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Workout on %s set to %s, %.1f km.", date, typ, km), nil
}

// RemoveWorkout deletes the planned workout(s) on a date.
func (a *App) RemoveWorkout(date string) (string, error) {
	n := a.Store.DeleteWorkout(date)
	if n == 0 {
		return "", fmt.Errorf("no planned workout on %s", date)
	}
	if err := a.Store.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed %d workout(s) on %s.", n, date), nil
}

// Uncomplete reverts a completion: the run logged for that date is deleted
// and records are rebuilt from what remains.
func (a *App) Uncomplete(date string) (string, error) {
	if !a.Store.Uncomplete(date) {
		return "", fmt.Errorf("no logged run on %s", date)
	}
	a.Store.RecomputeRecords()
	if err := a.Store.Save(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Completion on %s reverted.", date), nil
}

// SetRunTime corrects the duration of a logged run, typically one created
// by a completion without a stopwatch time.
func (a *App) SetRunTime(id string, timeSec int) error {
	if err := a.Store.SetRunTime(id, timeSec); err != nil {
		return err
	}
	a.Store.RecomputeRecords()
	return a.Store.Save()
}

// SetRecord hand-edits the time for one canonical record distance; nil
// clears the slot. The next recompute overrides it only where a logged run
// covers the distance.
func (a *App) SetRecord(distKm float64, timeSec *int) error {
	if err := a.Store.SetRecord(distKm, timeSec); err != nil {
		return err
	}
	return a.Store.Save()
}

// Overview renders the dashboard text: countdown, weekly progress, the next
// workouts and lifetime totals.
func (a *App) Overview() string {
	st := a.Store.Snapshot()
	now := a.Now()
	var b strings.Builder

	if cd, ok := stats.UntilRace(st.Race, now); ok {
		name := st.Race.Name
		if name == "" {
			name = "race day"
		}
		fmt.Fprintf(&b, "%d days, %d hours until %s.\n", cd.Days, cd.Hours, name)
	}

	week := stats.Weekly(st.Runs, now)
	fmt.Fprintf(&b, "This week: %.1f / %.0f km across %d runs.\n", week.Km, st.WeeklyGoalKm, week.Count)

	upcoming := a.upcoming(st.Plan, now, 5)
	if len(upcoming) > 0 {
		b.WriteString("\nNext up:\n")
		for _, w := range upcoming {
			line := fmt.Sprintf("  %s  %-8s %5.1f km", w.Date, w.Type, w.PlannedKm)
			if w.Pace != "" {
				line += "  @ " + w.Pace + "/km"
			}
			b.WriteString(line + "\n")
		}
	}

	life := stats.Lifetime(st.Runs)
	fmt.Fprintf(&b, "\nLifetime: %.1f km in %d runs (%s).\n", life.Km, life.Count, pace.FormatClock(life.Sec))
	return b.String()
}

// RecordsText renders the personal records table.
func (a *App) RecordsText() string {
	var b strings.Builder
	b.WriteString("Personal records:\n")
	for _, r := range a.Store.Records() {
		if r.TimeSec == nil {
			fmt.Fprintf(&b, "  %6.1f km   --\n", r.DistKm)
			continue
		}
		fmt.Fprintf(&b, "  %6.1f km   %s  (%s/km)\n",
			r.DistKm, pace.FormatClock(*r.TimeSec), pace.FormatPace(pace.PerKm(*r.TimeSec, r.DistKm)))
	}
	return b.String()
}

// StatsText renders weekly totals, HR zones when a max HR is set, and the
// race countdown.
func (a *App) StatsText() string {
	st := a.Store.Snapshot()
	now := a.Now()
	var b strings.Builder

	week := stats.Weekly(st.Runs, now)
	fmt.Fprintf(&b, "Week: %.1f km, %d runs, %s total.\n", week.Km, week.Count, pace.FormatClock(week.Sec))
	life := stats.Lifetime(st.Runs)
	fmt.Fprintf(&b, "Lifetime: %.1f km, %d runs.\n", life.Km, life.Count)

	if st.MaxHR != nil {
		b.WriteString("\nHR zones:\n")
		for _, z := range stats.HRZones(*st.MaxHR) {
			fmt.Fprintf(&b, "  %s  %3d-%3d bpm\n", z.Label, z.Low, z.High)
		}
	}
	if cd, ok := stats.UntilRace(st.Race, now); ok {
		fmt.Fprintf(&b, "\nRace in %d days.\n", cd.Days)
	}
	return b.String()
}

// Export writes the snapshot to path.
func (a *App) Export(path string) error {
	blob, err := a.Store.Export()
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

// Import replaces the state with a snapshot read from path.
func (a *App) Import(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}
	if err := a.Store.Import(blob); err != nil {
		return err
	}
	return a.Store.Save()
}

// recentRuns returns the newest runs, oldest first, for prompt context.
func (a *App) recentRuns() []trainer.LoggedRun {
	runs := a.Store.Runs()
	sort.Slice(runs, func(i, j int) bool { return runs[i].DateTime < runs[j].DateTime })
	if len(runs) > recentRunSamples {
		runs = runs[len(runs)-recentRunSamples:]
	}
	return runs
}

func (a *App) upcoming(plan []trainer.PlannedWorkout, now time.Time, n int) []trainer.PlannedWorkout {
	today := now.Format(pace.ISODate)
	var out []trainer.PlannedWorkout
	for _, w := range plan {
		if w.Date >= today {
			out = append(out, w)
			if len(out) == n {
				break
			}
		}
	}
	return out
}

func (a *App) recordCall(ctx context.Context, kind string, res coach.PlanResult, started time.Time, err error) {
	if a.Metrics == nil {
		return
	}
	outcome := string(res.State)
	if err != nil {
		outcome = "error"
	}
	if merr := a.Metrics.RecordUsage(ctx, kind, outcome, res.Attempts, res.Usage, a.Now().Sub(started)); merr != nil {
		log.Printf("failed to record metrics: %v", merr)
	}
}
