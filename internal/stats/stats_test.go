package stats

import (
	"testing"
	"time"

	"marathon-trainer/internal/trainer"
)

func TestWeekly(t *testing.T) {
	runs := []trainer.LoggedRun{
		{ID: "1", DateTime: "2026-01-06T12:00:00", ActualKm: 5, ActualTimeSec: 1500},
		{ID: "2", DateTime: "2026-01-08T12:00:00", ActualKm: 10, ActualTimeSec: 3000},
		{ID: "3", DateTime: "2026-01-12T12:00:00", ActualKm: 7, ActualTimeSec: 2100}, // next week
	}

	// Wednesday in the week of Mon 2026-01-05 .. Sun 2026-01-11.
	got := Weekly(runs, time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC))
	if got.Km != 15 || got.Sec != 4500 || got.Count != 2 {
		t.Errorf("Weekly = {%g %d %d}, want {15 4500 2}", got.Km, got.Sec, got.Count)
	}
}

func TestWeeklyIncludesSundayEvening(t *testing.T) {
	runs := []trainer.LoggedRun{
		{ID: "1", DateTime: "2026-01-11T23:30:00", ActualKm: 8, ActualTimeSec: 2400},
	}
	got := Weekly(runs, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	if got.Count != 1 {
		t.Errorf("Sunday-evening run should fall inside the week, got count %d", got.Count)
	}
}

func TestLifetime(t *testing.T) {
	runs := []trainer.LoggedRun{
		{ID: "1", DateTime: "2025-06-01T12:00:00", ActualKm: 5, ActualTimeSec: 1500},
		{ID: "2", DateTime: "2026-01-08T12:00:00", ActualKm: 10, ActualTimeSec: 3000},
	}
	got := Lifetime(runs)
	if got.Km != 15 || got.Sec != 4500 || got.Count != 2 {
		t.Errorf("Lifetime = {%g %d %d}, want {15 4500 2}", got.Km, got.Sec, got.Count)
	}
}

func TestHRZones(t *testing.T) {
	zones := HRZones(190)
	if len(zones) != 5 {
		t.Fatalf("Expected 5 zones, got %d", len(zones))
	}
	if zones[1].Label != "Z2" || zones[1].Low != 114 || zones[1].High != 133 {
		t.Errorf("Z2 = %+v, want {Z2 114 133}", zones[1])
	}
	if zones[4].High != 190 {
		t.Errorf("Z5 should top out at max HR, got %d", zones[4].High)
	}
	if HRZones(0) != nil {
		t.Error("Expected nil zones for unknown max HR")
	}
}

func TestUntilRace(t *testing.T) {
	dt := "2026-04-12T09:00:00Z"
	race := trainer.RaceGoal{DateTime: &dt}
	now := time.Date(2026, 4, 10, 7, 30, 0, 0, time.UTC)

	c, ok := UntilRace(race, now)
	if !ok {
		t.Fatal("Expected countdown for a set race date")
	}
	if c.Days != 2 || c.Hours != 1 || c.Minutes != 30 {
		t.Errorf("Countdown = %+v, want {2 1 30}", c)
	}

	if _, ok := UntilRace(trainer.RaceGoal{}, now); ok {
		t.Error("Expected no countdown without a race date")
	}

	past, _ := UntilRace(race, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	if past.Days != 0 || past.Hours != 0 || past.Minutes != 0 {
		t.Errorf("Past race should clamp at zero, got %+v", past)
	}
}
