package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"marathon-trainer/internal/llm"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	s := NewStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndDailyUsage(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	err := s.Record(ctx, CoachCall{
		Kind: "plan", Model: "gemini-2.5-flash", Outcome: "done",
		Attempts: 2, PromptTokens: 900, CompletionTokens: 400, LatencyMS: 1200,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	err = s.Record(ctx, CoachCall{
		Kind: "advice", Model: "gemini-2.5-flash", Outcome: "done",
		PromptTokens: 300, CompletionTokens: 150,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	usage, err := s.GetDailyUsage(ctx, 7)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("Expected 1 day of usage, got %d", len(usage))
	}
	if usage[0].Calls != 2 || usage[0].TotalPrompt != 1200 || usage[0].TotalCompletion != 550 {
		t.Errorf("Unexpected rollup: %+v", usage[0])
	}
	// date() must be able to parse the stored timestamps.
	if want := time.Now().UTC().Format("2006-01-02"); usage[0].Date != want {
		t.Errorf("Rollup day = %q, want %q", usage[0].Date, want)
	}
}

func TestRecordUsageSumsAttempts(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	err := s.RecordUsage(ctx, "plan", "failed", 2, []llm.TokenUsage{
		{PromptTokens: 500, CompletionTokens: 200, Model: "llama-3.3-70b-versatile"},
		{PromptTokens: 550, CompletionTokens: 210, Model: "llama-3.3-70b-versatile"},
	}, 3*time.Second)
	if err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	usage, err := s.GetDailyUsage(ctx, 1)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if len(usage) != 1 || usage[0].Calls != 1 || usage[0].TotalPrompt != 1050 {
		t.Errorf("Expected one summed call, got %+v", usage)
	}

	// A transport error carries no usage but the call still lands in the
	// ledger.
	if err := s.RecordUsage(ctx, "plan", "error", 1, nil, 0); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}
	usage, err = s.GetDailyUsage(ctx, 1)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if usage[0].Calls != 2 || usage[0].TotalPrompt != 1050 {
		t.Errorf("Errored call missing from the ledger: %+v", usage)
	}
}

func TestCleanup(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	old := CoachCall{Kind: "plan", Model: "m", Outcome: "done", Timestamp: time.Now().UTC().AddDate(0, 0, -40)}
	recent := CoachCall{Kind: "plan", Model: "m", Outcome: "done"}
	if err := s.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, recent); err != nil {
		t.Fatal(err)
	}

	n, err := s.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Cleanup removed %d rows, want 1", n)
	}
}
