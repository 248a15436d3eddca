package store

import (
	"os"
	"path/filepath"
	"testing"

	"marathon-trainer/internal/trainer"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestOpenMissingFileGivesDefaults(t *testing.T) {
	s := tempStore(t)
	st := s.Snapshot()
	if st.RunsPerWeek != 4 || st.TaperWeeks != 2 || st.WeeklyGoalKm != 40 {
		t.Errorf("Unexpected defaults: %+v", st)
	}
	if len(st.Records) != len(trainer.RecordTargets) {
		t.Errorf("Expected %d record slots, got %d", len(trainer.RecordTargets), len(st.Records))
	}
	if !st.UI.SectionsOpen["plan"] {
		t.Error("Expected the plan section open by default")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.SetWeeklyGoal(55)
	s.SetRunsPerWeek(5)
	s.AddRun("2026-01-02T18:00:00", 8, 2760, "evening loop")
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	again, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	st := again.Snapshot()
	if st.WeeklyGoalKm != 55 || st.RunsPerWeek != 5 {
		t.Errorf("Settings not persisted: %+v", st)
	}
	if len(st.Runs) != 1 || st.Runs[0].ActualKm != 8 {
		t.Errorf("Runs not persisted: %+v", st.Runs)
	}
}

func TestOpenCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{definitely not json}"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed on a corrupt file: %v", err)
	}
	st := s.Snapshot()
	if st.WeeklyGoalKm != 40 || st.RunsPerWeek != 4 || len(st.Runs) != 0 {
		t.Errorf("Expected a default state, got %+v", st)
	}

	// The unreadable bytes are preserved next to the new state.
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("Corrupt file was not moved aside: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save after corrupt open failed: %v", err)
	}
	if _, err := Open(path); err != nil {
		t.Errorf("Reopen after save failed: %v", err)
	}
}

func TestOpenBackfillsPartialSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	partial := `{"weeklyGoalKm": 42, "records": [{"distKm": 5, "timeSec": 1500}]}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	st := s.Snapshot()
	if len(st.Records) != len(trainer.RecordTargets) {
		t.Fatalf("Expected backfill to %d record slots, got %d", len(trainer.RecordTargets), len(st.Records))
	}
	if st.Records[1].DistKm != 5 || st.Records[1].TimeSec == nil || *st.Records[1].TimeSec != 1500 {
		t.Errorf("Existing record lost in backfill: %+v", st.Records)
	}
	if st.UI.SectionsOpen == nil || st.RunsPerWeek != 4 {
		t.Errorf("Defaults not backfilled: %+v", st)
	}
}

func TestApplyPlanUpsertAndIdempotence(t *testing.T) {
	s := tempStore(t)
	first := []trainer.PlannedWorkout{
		{Date: "2026-01-06", Type: trainer.TypeEasy, PlannedKm: 5, Notes: "Easy Z2"},
		{Date: "2026-01-11", Type: trainer.TypeLong, PlannedKm: 13, Notes: "Long Z2"},
	}
	added, updated := s.ApplyPlan(first)
	if added != 2 || updated != 0 {
		t.Fatalf("First apply: added=%d updated=%d, want 2/0", added, updated)
	}

	// Same plan again: nothing changes.
	added, updated = s.ApplyPlan(first)
	if added != 0 || updated != 0 {
		t.Errorf("Idempotent apply: added=%d updated=%d, want 0/0", added, updated)
	}

	// Changed distance on an existing (date, type) and one new entry.
	second := []trainer.PlannedWorkout{
		{Date: "2026-01-06", Type: trainer.TypeEasy, PlannedKm: 6, Notes: "Easy Z2"},
		{Date: "2026-01-08", Type: trainer.TypeTempo, PlannedKm: 7, Notes: "Quality Z3-4"},
	}
	added, updated = s.ApplyPlan(second)
	if added != 1 || updated != 1 {
		t.Errorf("Merge apply: added=%d updated=%d, want 1/1", added, updated)
	}

	plan := s.Plan()
	if len(plan) != 3 {
		t.Fatalf("Expected 3 workouts after merge, got %d", len(plan))
	}
	// Sorted by date, untouched long run preserved.
	dates := []string{plan[0].Date, plan[1].Date, plan[2].Date}
	want := []string{"2026-01-06", "2026-01-08", "2026-01-11"}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("Plan order = %v, want %v", dates, want)
		}
	}
	if plan[0].PlannedKm != 6 {
		t.Errorf("Updated distance = %g, want 6", plan[0].PlannedKm)
	}
	if plan[0].ID == "" {
		t.Error("ApplyPlan should assign ids to entries without one")
	}
}

func TestPutWorkoutReplacesSameDay(t *testing.T) {
	s := tempStore(t)
	s.ApplyPlan([]trainer.PlannedWorkout{
		{Date: "2026-01-06", Type: trainer.TypeEasy, PlannedKm: 5},
	})

	err := s.PutWorkout(trainer.PlannedWorkout{Date: "2026-01-06", Type: trainer.TypeTempo, PlannedKm: 7})
	if err != nil {
		t.Fatalf("PutWorkout failed: %v", err)
	}

	plan := s.Plan()
	if len(plan) != 1 || plan[0].Type != trainer.TypeTempo {
		t.Errorf("Expected the tempo workout to replace the easy one, got %+v", plan)
	}
	if plan[0].Notes != "Quality Z3-4" {
		t.Errorf("Expected default notes, got %q", plan[0].Notes)
	}

	if err := s.PutWorkout(trainer.PlannedWorkout{Date: "2026-01-07", Type: "sprint"}); err == nil {
		t.Error("Expected an error for an invalid type")
	}
	if err := s.PutWorkout(trainer.PlannedWorkout{Type: trainer.TypeEasy}); err == nil {
		t.Error("Expected an error for a missing date")
	}
}

func TestDeleteWorkout(t *testing.T) {
	s := tempStore(t)
	s.ApplyPlan([]trainer.PlannedWorkout{
		{Date: "2026-01-06", Type: trainer.TypeEasy, PlannedKm: 5},
		{Date: "2026-01-08", Type: trainer.TypeTempo, PlannedKm: 7},
	})
	if n := s.DeleteWorkout("2026-01-06"); n != 1 {
		t.Errorf("DeleteWorkout removed %d, want 1", n)
	}
	if n := s.DeleteWorkout("2026-01-06"); n != 0 {
		t.Errorf("Second delete removed %d, want 0", n)
	}
	if len(s.Plan()) != 1 {
		t.Errorf("Expected 1 workout left, got %d", len(s.Plan()))
	}
}

func TestAddRunRaisesLongestEver(t *testing.T) {
	s := tempStore(t)
	s.AddRun("2026-01-02T18:00:00", 8, 2760, "")
	st := s.Snapshot()
	if st.LongestRunEverKm == nil || *st.LongestRunEverKm != 8 {
		t.Fatalf("LongestRunEverKm = %v, want 8", st.LongestRunEverKm)
	}

	s.AddRun("2026-01-04T09:00:00", 15, 5400, "")
	s.AddRun("2026-01-05T09:00:00", 5, 1500, "")
	st = s.Snapshot()
	if *st.LongestRunEverKm != 15 {
		t.Errorf("LongestRunEverKm = %g, want 15 (never lowered)", *st.LongestRunEverKm)
	}

	run := st.Runs[0]
	if run.ID == "" || run.Date() != "2026-01-02" {
		t.Errorf("Unexpected run identity: %+v", run)
	}
}

func TestDeleteRunKeepsLongestEver(t *testing.T) {
	s := tempStore(t)
	run := s.AddRun("2026-01-04T09:00:00", 15, 5400, "")
	if !s.DeleteRun(run.ID) {
		t.Fatal("DeleteRun reported not found")
	}
	if s.DeleteRun(run.ID) {
		t.Error("Second delete should report not found")
	}
	st := s.Snapshot()
	if len(st.Runs) != 0 {
		t.Errorf("Expected empty log, got %d runs", len(st.Runs))
	}
	if st.LongestRunEverKm == nil || *st.LongestRunEverKm != 15 {
		t.Errorf("LongestRunEverKm = %v, want 15 preserved after delete", st.LongestRunEverKm)
	}
}

func TestCompleteDayAndUncomplete(t *testing.T) {
	s := tempStore(t)
	s.ApplyPlan([]trainer.PlannedWorkout{
		{Date: "2026-01-06", Type: trainer.TypeEasy, PlannedKm: 5, Notes: "Easy Z2"},
	})

	run, err := s.CompleteDay("2026-01-06", 1800)
	if err != nil {
		t.Fatalf("CompleteDay failed: %v", err)
	}
	if run.ActualKm != 5 || run.ActualTimeSec != 1800 || run.Date() != "2026-01-06" {
		t.Errorf("Unexpected completion run: %+v", run)
	}

	// Completing twice returns the existing run, no duplicate.
	again, err := s.CompleteDay("2026-01-06", 0)
	if err != nil {
		t.Fatalf("Second CompleteDay failed: %v", err)
	}
	if again.ID != run.ID || len(s.Runs()) != 1 {
		t.Errorf("Expected the existing run back, got %+v (%d runs)", again, len(s.Runs()))
	}

	if err := s.SetRunTime(run.ID, 1750); err != nil {
		t.Fatalf("SetRunTime failed: %v", err)
	}
	if r, _ := s.RunOn("2026-01-06"); r.ActualTimeSec != 1750 {
		t.Errorf("Run time = %d, want 1750", r.ActualTimeSec)
	}

	if !s.Uncomplete("2026-01-06") {
		t.Fatal("Uncomplete reported nothing removed")
	}
	if len(s.Runs()) != 0 {
		t.Error("Expected empty log after uncomplete")
	}

	if _, err := s.CompleteDay("2026-02-01", 0); err == nil {
		t.Error("Expected an error completing a day with no workout")
	}
}

func TestSetRecordAndRecompute(t *testing.T) {
	s := tempStore(t)
	manual := 1320
	if err := s.SetRecord(5, &manual); err != nil {
		t.Fatalf("SetRecord failed: %v", err)
	}
	if err := s.SetRecord(7, &manual); err == nil {
		t.Error("Expected an error for a non-canonical distance")
	}

	// A faster logged 5k overwrites the manual entry.
	s.AddRun("2026-01-04T09:00:00", 5.0, 1290, "")
	recs := s.RecomputeRecords()
	var fiveK *trainer.PersonalRecord
	for i := range recs {
		if recs[i].DistKm == 5 {
			fiveK = &recs[i]
		}
	}
	if fiveK == nil || fiveK.TimeSec == nil || *fiveK.TimeSec != 1290 {
		t.Errorf("5k record = %+v, want 1290", fiveK)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := tempStore(t)
	s.SetWeeklyGoal(60)
	s.AddRun("2026-01-02T18:00:00", 8, 2760, "loop")
	s.ApplyPlan([]trainer.PlannedWorkout{
		{Date: "2026-01-06", Type: trainer.TypeEasy, PlannedKm: 5},
	})

	blob, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	other := tempStore(t)
	if err := other.Import(blob); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	st := other.Snapshot()
	if st.WeeklyGoalKm != 60 || len(st.Runs) != 1 || len(st.Plan) != 1 {
		t.Errorf("Round trip lost data: %+v", st)
	}

	if err := other.Import([]byte("nope")); err == nil {
		t.Error("Expected an error importing invalid JSON")
	}
}
