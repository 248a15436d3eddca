package acceptance_tests

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"marathon-trainer/internal/app"
	"marathon-trainer/internal/coach"
	"marathon-trainer/internal/config"
	"marathon-trainer/internal/llm"
	"marathon-trainer/internal/store"
	"marathon-trainer/internal/trainer"
)

// --- Mock LLM Client ---
type mockLLMClient struct {
	generateContentCalls int
}

func (m *mockLLMClient) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	m.generateContentCalls++
	return llm.ContentResponse{Content: "Here is your plan:\n```json\n{\"workouts\": [" +
		"{\"date\": \"2026-01-06\", \"type\": \"easy\", \"km\": 5, \"pace\": \"5:30\"}," +
		"{\"date\": \"2026-01-08\", \"type\": \"tempo\", \"km\": 7, \"pace\": \"4:50\"}," +
		"{\"date\": \"2026-01-11\", \"type\": \"long\", \"km\": 13, \"pace\": \"5:40\"}]}\n```",
		Usage: llm.TokenUsage{PromptTokens: 800, CompletionTokens: 300},
	}, nil
}

// --- Acceptance Test ---
func TestFullWorkflow(t *testing.T) {
	// 1. Fresh state in a temp dir.
	statePath := filepath.Join(t.TempDir(), "state.json")
	st, err := store.Open(statePath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	llmClient := &mockLLMClient{}
	a := app.NewApp(st, coach.New(llmClient), nil, &config.Config{})
	a.Now = func() time.Time { return time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC) }

	// 2. Configure the race and training parameters.
	raceDate := "2026-01-18T09:00:00Z"
	st.SetRace(trainer.RaceGoal{Name: "City Half", DateTime: &raceDate, TargetKm: 21.1})
	st.SetRunsPerWeek(2)
	st.SetWeeklyGoal(30)

	// 3. Ask the coach for a plan.
	msg, err := a.Chat(context.Background(), "build me a training plan")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(msg, "Coach plan applied") {
		t.Fatalf("Expected an applied plan, got: %s", msg)
	}
	if llmClient.generateContentCalls != 1 {
		t.Errorf("Expected 1 LLM call, got %d", llmClient.generateContentCalls)
	}
	if len(st.Plan()) != 3 {
		t.Fatalf("Expected 3 workouts in the calendar, got %d", len(st.Plan()))
	}

	// 4. Complete the first workout and log an extra run.
	if _, err := a.CompleteDay("2026-01-06", 1700); err != nil {
		t.Fatalf("CompleteDay failed: %v", err)
	}
	if _, err := a.LogRun("2026-01-03T08:00:00", 10, 2700, "test race"); err != nil {
		t.Fatalf("LogRun failed: %v", err)
	}

	// 5. Records picked up the 10k, the overview reflects everything.
	var tenK *trainer.PersonalRecord
	for _, r := range st.Records() {
		if r.DistKm == 10 {
			rec := r
			tenK = &rec
		}
	}
	if tenK == nil || tenK.TimeSec == nil || *tenK.TimeSec != 2700 {
		t.Errorf("Expected a 10k record of 2700s, got %+v", tenK)
	}

	overview := a.Overview()
	for _, want := range []string{"City Half", "This week:", "Lifetime:"} {
		if !strings.Contains(overview, want) {
			t.Errorf("Overview missing %q:\n%s", want, overview)
		}
	}

	// 6. State survives a reload from disk.
	again, err := store.Open(statePath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	if len(again.Plan()) != 3 || len(again.Runs()) != 2 {
		t.Errorf("Reloaded state has %d workouts and %d runs, want 3 and 2",
			len(again.Plan()), len(again.Runs()))
	}
}
