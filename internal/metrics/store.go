package metrics

import (
	"context"
	"database/sql"
	"time"

	"marathon-trainer/internal/llm"
)

// CoachCall records metadata for a single collaborator request.
type CoachCall struct {
	Kind             string // "plan" or "advice"
	Model            string
	Outcome          string // "done", "failed", "error"
	Attempts         int
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// Store handles persistence of coach-call metrics to SQLite.
type Store struct {
	db *sql.DB
}

// timeLayout is what sqlite's date() and comparison operators understand;
// binding a raw time.Time through the driver stores a format they do not.
const timeLayout = "2006-01-02 15:04:05"

// NewStore wraps an existing metrics database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a call record.
func (s *Store) Record(ctx context.Context, c CoachCall) error {
	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coach_calls (kind, model, outcome, attempts, prompt_tokens, completion_tokens, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Kind, c.Model, c.Outcome, c.Attempts, c.PromptTokens, c.CompletionTokens, c.LatencyMS,
		ts.UTC().Format(timeLayout))
	return err
}

// RecordUsage sums the per-attempt usage of one dialogue into a single call
// record. Failed transports leave the token counts at zero; the call itself
// is still in the ledger.
func (s *Store) RecordUsage(ctx context.Context, kind, outcome string, attempts int, usage []llm.TokenUsage, latency time.Duration) error {
	var prompt, completion int
	model := ""
	for _, u := range usage {
		prompt += u.PromptTokens
		completion += u.CompletionTokens
		if u.Model != "" {
			model = u.Model
		}
	}
	return s.Record(ctx, CoachCall{
		Kind:             kind,
		Model:            model,
		Outcome:          outcome,
		Attempts:         attempts,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		LatencyMS:        latency.Milliseconds(),
	})
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	Calls           int
	TotalPrompt     int
	TotalCompletion int
}

// GetDailyUsage retrieves per-day totals for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day,
		       COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0)
		FROM coach_calls
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since.Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.Calls, &u.TotalPrompt, &u.TotalCompletion); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM coach_calls WHERE timestamp < ?`, threshold.Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
