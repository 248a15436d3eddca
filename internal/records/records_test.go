package records

import (
	"testing"

	"marathon-trainer/internal/trainer"
)

func run(km float64, sec int) trainer.LoggedRun {
	return trainer.LoggedRun{ID: "r", DateTime: "2026-01-10T12:00:00", ActualKm: km, ActualTimeSec: sec}
}

func find(recs []trainer.PersonalRecord, dist float64) trainer.PersonalRecord {
	for _, r := range recs {
		if r.DistKm == dist {
			return r
		}
	}
	return trainer.PersonalRecord{}
}

func TestRecomputeKeepsMinimumWithinTolerance(t *testing.T) {
	runs := []trainer.LoggedRun{
		run(10.05, 2700), // within 1% of 10 km
		run(9.96, 2650),  // also within 1%, faster
	}

	recs := Recompute(runs, trainer.DefaultRecords())
	ten := find(recs, 10)
	if ten.TimeSec == nil || *ten.TimeSec != 2650 {
		t.Errorf("Expected 10 km record 2650, got %v", ten.TimeSec)
	}
}

func TestRecomputeIgnoresOutOfToleranceRuns(t *testing.T) {
	recs := Recompute([]trainer.LoggedRun{run(10.2, 2500)}, trainer.DefaultRecords())
	if ten := find(recs, 10); ten.TimeSec != nil {
		t.Errorf("Run 2%% off target should not set the record, got %v", *ten.TimeSec)
	}
}

func TestRecomputeOverwritesManualEntry(t *testing.T) {
	manual := 3600
	existing := trainer.DefaultRecords()
	for i := range existing {
		if existing[i].DistKm == 5 {
			existing[i].TimeSec = &manual
		}
	}

	recs := Recompute([]trainer.LoggedRun{run(5.0, 1500)}, existing)
	five := find(recs, 5)
	if five.TimeSec == nil || *five.TimeSec != 1500 {
		t.Errorf("Expected recompute to overwrite manual entry with 1500, got %v", five.TimeSec)
	}
}

func TestRecomputePreservesUnmatchedManualEntry(t *testing.T) {
	manual := 300
	existing := trainer.DefaultRecords()
	for i := range existing {
		if existing[i].DistKm == 1 {
			existing[i].TimeSec = &manual
		}
	}

	recs := Recompute([]trainer.LoggedRun{run(5.0, 1500)}, existing)
	one := find(recs, 1)
	if one.TimeSec == nil || *one.TimeSec != 300 {
		t.Errorf("Record without matching runs should keep its manual value, got %v", one.TimeSec)
	}
}

func TestRecomputeWithEmptyExistingUsesDefaults(t *testing.T) {
	recs := Recompute(nil, nil)
	if len(recs) != len(trainer.RecordTargets) {
		t.Fatalf("Expected %d record slots, got %d", len(trainer.RecordTargets), len(recs))
	}
}
