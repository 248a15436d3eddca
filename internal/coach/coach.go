// Package coach turns the text-generation collaborator into dated training
// plans: prompt building, response parsing and repair, validation, and the
// bounded retry dialogue.
package coach

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"marathon-trainer/internal/llm"
	"marathon-trainer/internal/pace"
	"marathon-trainer/internal/trainer"
)

//go:embed plan_prompt.md
var planPrompt string

//go:embed advice_prompt.md
var advicePrompt string

// maxPlanAttempts bounds the dialogue: the initial request plus exactly one
// automated re-prompt.
const maxPlanAttempts = 2

// BuildState labels where a plan dialogue ended up, or is.
type BuildState string

const (
	StateRequesting BuildState = "requesting"
	StateValidating BuildState = "validating"
	StateRetrying   BuildState = "retrying"
	StateDone       BuildState = "done"
	StateFailed     BuildState = "failed"
)

// Coach drives the plan dialogue against a text generator.
type Coach struct {
	gen llm.TextGenerator
}

// New creates a Coach backed by the given generator.
func New(gen llm.TextGenerator) *Coach {
	return &Coach{gen: gen}
}

// PlanRequest carries everything the prompt needs.
type PlanRequest struct {
	Params trainer.TrainingParameters
	Recent []trainer.LoggedRun // most recent runs, oldest first
	Today  time.Time
}

// PlanResult is the outcome of one BuildPlan dialogue. State is StateDone or
// StateFailed; on failure Problems explains why and the calendar is left for
// the caller to preserve. RawText always holds the last model reply so the
// caller can offer free-text parsing as a manual fallback.
type PlanResult struct {
	State    BuildState
	Workouts []trainer.PlannedWorkout
	Attempts int
	RawText  string
	Problems []string
	Usage    []llm.TokenUsage
}

var wantsPlanRe = regexp.MustCompile(`(?i)plan|json|calendar|schedule`)

// WantsPlan reports whether a chat message is asking for a structured plan
// rather than general advice.
func WantsPlan(text string) bool {
	return wantsPlanRe.MatchString(text)
}

// PlanWindow returns the inclusive date range a generated plan must cover:
// the Monday after today through race day, or the default horizon when no
// race date is set.
func PlanWindow(params trainer.TrainingParameters, today time.Time) (time.Time, time.Time) {
	start := pace.StartOfNextWeek(today)
	if race, ok := params.Race.Date(); ok {
		return start, race
	}
	return start, start.AddDate(0, 0, trainer.DefaultPlanWeeks*7-1)
}

// BuildPlan runs the plan dialogue as a bounded state machine:
// Requesting -> Validating -> Done, or one Retrying round (feeding either a
// JSON-only reminder or the validation errors back to the model) before
// Failed. A returned error means the transport failed; the caller then
// falls back to the local generator.
func (c *Coach) BuildPlan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	params := req.Params.Normalized()
	start, race := PlanWindow(params, req.Today)

	prompt, err := c.renderPlanPrompt(params, req.Recent, start, race)
	if err != nil {
		return PlanResult{State: StateFailed}, err
	}

	res := PlanResult{State: StateRequesting}
	followUp := ""

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		res.State = StateRequesting

		resp, err := c.gen.GenerateContent(ctx, prompt+followUp)
		if err != nil {
			res.State = StateFailed
			return res, fmt.Errorf("coach request failed: %w", err)
		}
		res.RawText = resp.Content
		res.Usage = append(res.Usage, resp.Usage)

		payload := ParsePlanPayload(resp.Content)
		if payload == nil {
			if attempt == maxPlanAttempts {
				res.State = StateFailed
				res.Problems = []string{"The model did not return valid JSON."}
				return res, nil
			}
			res.State = StateRetrying
			followUp = "\n\nReminder: JSON only. No extra text."
			continue
		}

		res.State = StateValidating
		problems := Validate(payload, start, race, params)
		if len(problems) == 0 {
			res.State = StateDone
			res.Workouts = payload.Plan()
			return res, nil
		}
		if attempt == maxPlanAttempts {
			res.State = StateFailed
			res.Problems = problems
			return res, nil
		}
		res.State = StateRetrying
		followUp = "\n\nYour previous JSON had these issues:\n- " + strings.Join(problems, "\n- ") +
			"\n\nPlease fix them and return ONLY the corrected JSON block."
	}
}

// Advise answers a free-form question with the user's training context
// attached. On transport failure the caller shows the error and falls back
// to LocalAdvice.
func (c *Coach) Advise(ctx context.Context, text string, req PlanRequest) (llm.ContentResponse, error) {
	userCtx, err := userContextJSON(req.Params, req.Recent)
	if err != nil {
		return llm.ContentResponse{}, err
	}

	tmpl, err := template.New("advice").Parse(advicePrompt)
	if err != nil {
		return llm.ContentResponse{}, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		UserContext string
		Request     string
	}{userCtx, text}); err != nil {
		return llm.ContentResponse{}, err
	}

	resp, err := c.gen.GenerateContent(ctx, buf.String())
	if err != nil {
		return llm.ContentResponse{}, fmt.Errorf("coach request failed: %w", err)
	}
	return resp, nil
}

// LocalAdvice is the deterministic fallback used when the collaborator is
// unreachable or unconfigured.
func LocalAdvice(params trainer.TrainingParameters, today time.Time) string {
	params = params.Normalized()
	weeks := trainer.PlanWeeks(params, today)
	return fmt.Sprintf(
		"I'll build a progressive plan for %d weeks, %d runs/week with a %d-week taper. Run the local generator to create it.",
		weeks, params.RunsPerWeek, params.TaperWeeks)
}

type planPromptData struct {
	Start       string
	Race        string
	RunsPerWeek int
	TaperWeeks  int
	MaxSingle   float64
	UserContext string
}

func (c *Coach) renderPlanPrompt(params trainer.TrainingParameters, recent []trainer.LoggedRun, start, race time.Time) (string, error) {
	userCtx, err := userContextJSON(params, recent)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("plan").Parse(planPrompt)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, planPromptData{
		Start:       start.Format(pace.ISODate),
		Race:        race.Format(pace.ISODate),
		RunsPerWeek: params.RunsPerWeek,
		TaperWeeks:  params.TaperWeeks,
		MaxSingle:   params.SafetyCap(),
		UserContext: userCtx,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

type runSample struct {
	Date    string  `json:"date"`
	Km      float64 `json:"km"`
	TimeSec int     `json:"timeSec"`
}

func userContextJSON(params trainer.TrainingParameters, recent []trainer.LoggedRun) (string, error) {
	samples := make([]runSample, 0, len(recent))
	for _, r := range recent {
		samples = append(samples, runSample{Date: r.Date(), Km: r.ActualKm, TimeSec: r.ActualTimeSec})
	}

	blob, err := json.Marshal(struct {
		Race             trainer.RaceGoal `json:"race"`
		WeeklyGoalKm     float64          `json:"weeklyGoalKm"`
		MaxHR            *int             `json:"maxHr"`
		RunsPerWeek      int              `json:"runsPerWeek"`
		TaperWeeks       int              `json:"taperWeeks"`
		LongestRunEverKm *float64         `json:"longestRunEverKm"`
		RecentSamples    []runSample      `json:"recentSamples"`
	}{
		Race:             params.Race,
		WeeklyGoalKm:     params.WeeklyGoalKm,
		MaxHR:            params.MaxHR,
		RunsPerWeek:      params.RunsPerWeek,
		TaperWeeks:       params.TaperWeeks,
		LongestRunEverKm: params.LongestRunEverKm,
		RecentSamples:    samples,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal user context: %w", err)
	}
	return string(blob), nil
}
