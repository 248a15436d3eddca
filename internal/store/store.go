// Package store persists the whole training state as a single JSON
// snapshot on disk and owns every mutation of it. All methods are safe for
// concurrent use; reads return copies so callers can never alias the
// guarded state.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"marathon-trainer/internal/records"
	"marathon-trainer/internal/trainer"
)

// UIState remembers which overview sections the user keeps open.
type UIState struct {
	SectionsOpen map[string]bool `json:"sectionsOpen"`
}

// State is the full snapshot shape. The JSON keys are stable; exported
// snapshots from older versions load without migration.
type State struct {
	Race             trainer.RaceGoal         `json:"race"`
	WeeklyGoalKm     float64                  `json:"weeklyGoalKm"`
	MaxHR            *int                     `json:"maxHr"`
	RunsPerWeek      int                      `json:"runsPerWeek"`
	TaperWeeks       int                      `json:"taperWeeks"`
	LongestRunEverKm *float64                 `json:"longestRunEverKm"`
	Records          []trainer.PersonalRecord `json:"records"`
	Plan             []trainer.PlannedWorkout `json:"plan"`
	Runs             []trainer.LoggedRun      `json:"runs"`
	UI               UIState                  `json:"ui"`
}

func defaultState() State {
	return State{
		WeeklyGoalKm: 40,
		RunsPerWeek:  4,
		TaperWeeks:   2,
		Records:      trainer.DefaultRecords(),
		UI:           UIState{SectionsOpen: map[string]bool{"plan": true, "log": true}},
	}
}

// Store guards one State and the file it lives in.
type Store struct {
	mu    sync.Mutex
	path  string
	state State
}

// Open loads the snapshot at path, falling back to a fresh default state
// when the file is missing or unreadable as JSON. A corrupt file is moved
// aside before the next save so its bytes survive for manual recovery.
func Open(path string) (*Store, error) {
	s := &Store{path: path, state: defaultState()}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		log.Printf("State file %s is not valid JSON (%v); starting from defaults", path, err)
		if rerr := os.Rename(path, path+".corrupt"); rerr != nil {
			log.Printf("Could not move the corrupt state file aside: %v", rerr)
		}
		return s, nil
	}
	backfill(&st)
	s.state = st
	return s, nil
}

// backfill repairs partial snapshots: older exports may lack records slots
// or the ui block entirely.
func backfill(st *State) {
	if len(st.Records) == 0 {
		st.Records = trainer.DefaultRecords()
	} else {
		have := map[float64]bool{}
		for _, r := range st.Records {
			have[r.DistKm] = true
		}
		for _, d := range trainer.RecordTargets {
			if !have[d] {
				st.Records = append(st.Records, trainer.PersonalRecord{DistKm: d})
			}
		}
		sort.Slice(st.Records, func(i, j int) bool { return st.Records[i].DistKm < st.Records[j].DistKm })
	}
	if st.UI.SectionsOpen == nil {
		st.UI.SectionsOpen = map[string]bool{"plan": true, "log": true}
	}
	if st.RunsPerWeek == 0 {
		st.RunsPerWeek = 4
	}
	if st.TaperWeeks == 0 {
		st.TaperWeeks = 2
	}
	if st.WeeklyGoalKm == 0 {
		st.WeeklyGoalKm = 40
	}
	sortPlan(st.Plan)
}

// Save writes the snapshot atomically: temp file in the same directory,
// then rename.
func (s *Store) Save() error {
	s.mu.Lock()
	blob, err := json.MarshalIndent(s.state, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Params assembles the training parameters from the snapshot.
func (s *Store) Params() trainer.TrainingParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return trainer.TrainingParameters{
		Race:             s.state.Race,
		WeeklyGoalKm:     s.state.WeeklyGoalKm,
		MaxHR:            s.state.MaxHR,
		RunsPerWeek:      s.state.RunsPerWeek,
		TaperWeeks:       s.state.TaperWeeks,
		LongestRunEverKm: s.state.LongestRunEverKm,
	}
}

// SetRace replaces the race goal, deriving the missing target figure.
func (s *Store) SetRace(race trainer.RaceGoal) {
	race.FillMissingTarget()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Race = race
}

// SetWeeklyGoal sets the weekly distance goal in km.
func (s *Store) SetWeeklyGoal(km float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.WeeklyGoalKm = km
}

// SetMaxHR sets the maximum heart rate; nil clears it.
func (s *Store) SetMaxHR(bpm *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MaxHR = bpm
}

// SetRunsPerWeek sets the weekly run count, clamped to [1,7].
func (s *Store) SetRunsPerWeek(n int) {
	if n < 1 {
		n = 1
	}
	if n > 7 {
		n = 7
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RunsPerWeek = n
}

// SetTaperWeeks sets the taper length, clamped to [1,4].
func (s *Store) SetTaperWeeks(n int) {
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TaperWeeks = n
}

// SetLongestRunEver sets the longest-ever run distance; nil clears it.
func (s *Store) SetLongestRunEver(km *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LongestRunEverKm = km
}

// Plan returns a copy of the calendar, sorted by date.
func (s *Store) Plan() []trainer.PlannedWorkout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trainer.PlannedWorkout(nil), s.state.Plan...)
}

// ApplyPlan merges generated workouts into the calendar. Identity is the
// (date, type) pair: matching entries are updated in place, new ones
// inserted, and entries the incoming plan does not mention are preserved.
// Applying the same plan twice changes nothing. Returns the number of
// entries added and updated.
func (s *Store) ApplyPlan(items []trainer.PlannedWorkout) (added, updated int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := map[string]int{}
	for i, w := range s.state.Plan {
		index[planKey(w.Date, w.Type)] = i
	}
	for _, w := range items {
		if w.ID == "" {
			w.ID = trainer.WorkoutID(w.Date, w.Type)
		}
		if i, ok := index[planKey(w.Date, w.Type)]; ok {
			if s.state.Plan[i] != w {
				s.state.Plan[i] = w
				updated++
			}
			continue
		}
		s.state.Plan = append(s.state.Plan, w)
		index[planKey(w.Date, w.Type)] = len(s.state.Plan) - 1
		added++
	}
	sortPlan(s.state.Plan)
	return added, updated
}

// PutWorkout upserts a manually edited workout. The manual editor works a
// day at a time, so any other workout on the same date is replaced.
func (s *Store) PutWorkout(w trainer.PlannedWorkout) error {
	if w.Date == "" {
		return errors.New("workout needs a date")
	}
	if !trainer.ValidType(w.Type) {
		return fmt.Errorf("invalid workout type %q", w.Type)
	}
	if w.ID == "" {
		w.ID = trainer.WorkoutID(w.Date, w.Type)
	}
	if w.Notes == "" {
		w.Notes = trainer.DefaultNotes(w.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Plan[:0]
	for _, p := range s.state.Plan {
		if p.Date != w.Date {
			kept = append(kept, p)
		}
	}
	s.state.Plan = append(kept, w)
	sortPlan(s.state.Plan)
	return nil
}

// DeleteWorkout removes every planned workout on the given date. Returns
// how many were removed.
func (s *Store) DeleteWorkout(date string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Plan[:0]
	removed := 0
	for _, p := range s.state.Plan {
		if p.Date == date {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.state.Plan = kept
	return removed
}

// WorkoutOn returns the first planned workout on a date.
func (s *Store) WorkoutOn(date string) (trainer.PlannedWorkout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.Plan {
		if p.Date == date {
			return p, true
		}
	}
	return trainer.PlannedWorkout{}, false
}

// Runs returns a copy of the run log.
func (s *Store) Runs() []trainer.LoggedRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trainer.LoggedRun(nil), s.state.Runs...)
}

// RunOn returns the first logged run on a calendar date.
func (s *Store) RunOn(date string) (trainer.LoggedRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.state.Runs {
		if r.Date() == date {
			return r, true
		}
	}
	return trainer.LoggedRun{}, false
}

// AddRun appends a logged run and bumps the longest-ever distance when the
// run exceeds it. Record recomputation is the caller's concern.
func (s *Store) AddRun(dateTime string, km float64, timeSec int, notes string) trainer.LoggedRun {
	run := trainer.LoggedRun{
		ID:            "run_" + uuid.NewString(),
		DateTime:      dateTime,
		ActualKm:      km,
		ActualTimeSec: timeSec,
		Notes:         notes,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Runs = append(s.state.Runs, run)
	if s.state.LongestRunEverKm == nil || km > *s.state.LongestRunEverKm {
		v := km
		s.state.LongestRunEverKm = &v
	}
	return run
}

// DeleteRun removes a run by id. The longest-ever distance is never
// lowered; it reflects history, not the current log.
func (s *Store) DeleteRun(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Runs[:0]
	found := false
	for _, r := range s.state.Runs {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	s.state.Runs = kept
	return found
}

// CompleteDay logs a run for the planned workout on date, copying the
// planned distance. timeSec may be zero when the user skipped the stopwatch.
// Already-completed days are left alone.
func (s *Store) CompleteDay(date string, timeSec int) (trainer.LoggedRun, error) {
	w, ok := s.WorkoutOn(date)
	if !ok {
		return trainer.LoggedRun{}, fmt.Errorf("no planned workout on %s", date)
	}
	if r, done := s.RunOn(date); done {
		return r, nil
	}
	return s.AddRun(date+"T12:00:00", w.PlannedKm, timeSec, w.Notes), nil
}

// SetRunTime updates the duration of an existing run.
func (s *Store) SetRunTime(id string, timeSec int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Runs {
		if s.state.Runs[i].ID == id {
			s.state.Runs[i].ActualTimeSec = timeSec
			return nil
		}
	}
	return fmt.Errorf("no run with id %s", id)
}

// Uncomplete deletes the logged run on a date, reverting a completion.
func (s *Store) Uncomplete(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Runs[:0]
	found := false
	for _, r := range s.state.Runs {
		if !found && r.Date() == date {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	s.state.Runs = kept
	return found
}

// Records returns a copy of the personal records.
func (s *Store) Records() []trainer.PersonalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trainer.PersonalRecord(nil), s.state.Records...)
}

// SetRecord manually sets (or clears, with nil) the time for one canonical
// distance.
func (s *Store) SetRecord(distKm float64, timeSec *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Records {
		if s.state.Records[i].DistKm == distKm {
			s.state.Records[i].TimeSec = timeSec
			return nil
		}
	}
	return fmt.Errorf("no record slot for %g km", distKm)
}

// RecomputeRecords rebuilds the records from the run log, keeping manual
// entries only where no logged run covers the distance.
func (s *Store) RecomputeRecords() []trainer.PersonalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Records = records.Recompute(s.state.Runs, s.state.Records)
	return append([]trainer.PersonalRecord(nil), s.state.Records...)
}

// Export returns the snapshot as indented JSON, the same shape Save writes.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.state, "", "  ")
}

// Import replaces the state with a previously exported snapshot.
func (s *Store) Import(blob []byte) error {
	var st State
	if err := json.Unmarshal(blob, &st); err != nil {
		return fmt.Errorf("import is not valid JSON: %w", err)
	}
	backfill(&st)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}

func planKey(date string, t trainer.WorkoutType) string {
	return date + "|" + string(t)
}

func sortPlan(plan []trainer.PlannedWorkout) {
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].Date != plan[j].Date {
			return plan[i].Date < plan[j].Date
		}
		return plan[i].Type < plan[j].Type
	})
}

func copyState(st State) State {
	out := st
	out.Records = append([]trainer.PersonalRecord(nil), st.Records...)
	out.Plan = append([]trainer.PlannedWorkout(nil), st.Plan...)
	out.Runs = append([]trainer.LoggedRun(nil), st.Runs...)
	out.UI.SectionsOpen = make(map[string]bool, len(st.UI.SectionsOpen))
	for k, v := range st.UI.SectionsOpen {
		out.UI.SectionsOpen[k] = v
	}
	return out
}

// DefaultPath returns the conventional state location under the user's home
// directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "marathon-trainer.json"
	}
	return filepath.Join(home, ".marathon-trainer", "state.json")
}
