package coach

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"marathon-trainer/internal/pace"
	"marathon-trainer/internal/trainer"
)

// PlanPayload is the structured shape the model is asked to return inside a
// fenced JSON block.
type PlanPayload struct {
	Workouts []PlanEntry `json:"workouts"`
}

// PlanEntry is one workout as emitted by the model.
type PlanEntry struct {
	Date string  `json:"date"`
	Type string  `json:"type"`
	Km   float64 `json:"km"`
	Pace string  `json:"pace"`
}

var (
	fencedJSONRe  = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	fenceOpenRe   = regexp.MustCompile("(?i)```json")
	trailingComma = regexp.MustCompile(`,(\s*[\]}])`)
	workoutsKeyRe = regexp.MustCompile(`"workouts"\s*:`)
)

// ParsePlanPayload recovers a PlanPayload from free text that should contain
// a fenced JSON block. It tolerates prose around the fence, a missing
// closing fence, and JSON cut off mid-array. Returns nil when no usable
// JSON is found; callers then fall back to ParseFreeText or surface the
// failure.
func ParsePlanPayload(text string) *PlanPayload {
	if text == "" {
		return nil
	}

	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if p := unmarshalOrRepair(m[1]); p != nil {
			return p
		}
	}

	// Fence opened but never closed: repair everything after it.
	if loc := fenceOpenRe.FindStringIndex(text); loc != nil {
		body := strings.TrimSpace(fenceOpenRe.ReplaceAllString(text[loc[0]:], ""))
		if p := unmarshalOrRepair(body); p != nil {
			return p
		}
	}

	// No fence at all: try from the first brace.
	if i := strings.Index(text, "{"); i >= 0 {
		if p := unmarshalOrRepair(text[i:]); p != nil {
			return p
		}
	}
	return nil
}

func unmarshalOrRepair(src string) *PlanPayload {
	var p PlanPayload
	if err := json.Unmarshal([]byte(src), &p); err == nil && p.Workouts != nil {
		return &p
	}
	repaired := RepairJSON(src)
	if repaired == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(repaired), &p); err == nil && p.Workouts != nil {
		return &p
	}
	return nil
}

// RepairJSON salvages a plan object from malformed or truncated JSON. It
// strips fence markers, drops trailing commas, and truncates the
// "workouts" array at the last completely-closed object, tolerating a
// response that was cut off mid-array. When no clean truncation point
// exists it falls back to balancing bracket counts.
func RepairJSON(src string) string {
	if src == "" {
		return ""
	}
	s := fenceOpenRe.ReplaceAllString(src, "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "{"); i > 0 {
		s = s[i:]
	}
	s = trailingComma.ReplaceAllString(s, "$1")

	keyLoc := workoutsKeyRe.FindStringIndex(s)
	if keyLoc == nil {
		return s
	}
	arrStart := strings.Index(s[keyLoc[1]:], "[")
	if arrStart == -1 {
		return s
	}
	arrStart += keyLoc[1]

	// Scan the array tracking nesting and string literals separately so a
	// brace inside a notes string cannot fool the truncation point.
	i := arrStart + 1
	depthArr, depthObj := 1, 0
	inStr, esc := false, false
	lastGood := -1

	for i < len(s) {
		ch := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			i++
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '[':
			depthArr++
		case ']':
			depthArr--
			if depthArr == 0 {
				// Array closed cleanly; reconstruction re-adds the bracket.
				lastGood = i
				i = len(s)
				continue
			}
		case '{':
			depthObj++
		case '}':
			depthObj--
			if depthArr == 1 && depthObj == 0 {
				j := i + 1
				for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
					j++
				}
				if j < len(s) && s[j] == ',' {
					j++
				}
				lastGood = j
			}
		}
		i++
	}

	if lastGood > -1 {
		head := s[:arrStart+1]
		body := strings.TrimRight(s[arrStart+1:lastGood], " \t\r\n")
		body = strings.TrimSuffix(body, ",")
		return head + body + "] }"
	}

	// No complete object found: trim to the last closer and balance counts.
	last := strings.LastIndexAny(s, "}]")
	if last > -1 {
		s = s[:last+1]
	}
	openCurly, closeCurly := strings.Count(s, "{"), strings.Count(s, "}")
	openBrack, closeBrack := strings.Count(s, "["), strings.Count(s, "]")
	if openBrack > closeBrack {
		s += strings.Repeat("]", openBrack-closeBrack)
	}
	if openCurly > closeCurly {
		s += strings.Repeat("}", openCurly-closeCurly)
	}
	return s
}

var kmRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*km`)

var weekHeadingRe = regexp.MustCompile(`(?i)^\s*\*?\s*weeks?\s*\d+`)

// parseKm extracts a "<number> km" distance from a line, comma decimals
// accepted. Returns false when the line has none.
func parseKm(line string) (float64, bool) {
	m := kmRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// inferType classifies a free-text workout line by keyword, in priority
// order.
func inferType(line string) trainer.WorkoutType {
	s := strings.ToLower(line)
	switch {
	case strings.Contains(s, "long"):
		return trainer.TypeLong
	case strings.Contains(s, "interval"):
		return trainer.TypeInterval
	case strings.Contains(s, "tempo"), strings.Contains(s, "threshold"):
		return trainer.TypeTempo
	case strings.Contains(s, "recovery"):
		return trainer.TypeRecovery
	case strings.Contains(s, "easy"), strings.Contains(s, "base"):
		return trainer.TypeEasy
	}
	return trainer.TypeRun
}

// splitWeekBlocks groups lines into per-week buckets at "week N" headings.
// Text without headings becomes a single block.
func splitWeekBlocks(text string) [][]string {
	lines := strings.Split(text, "\n")
	var blocks [][]string
	var cur []string
	for _, ln := range lines {
		ln = strings.TrimSuffix(ln, "\r")
		if weekHeadingRe.MatchString(ln) && len(cur) > 0 {
			blocks = append(blocks, cur)
			cur = nil
		}
		cur = append(cur, ln)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	if len(blocks) == 0 {
		return [][]string{lines}
	}
	return blocks
}

// ParseFreeText extracts a dated workout list from a prose plan with no
// usable JSON. Week blocks are spread one per calendar week starting from
// the Monday after now, each truncated to runsPerWeek entries and scheduled
// on the generator's preferred weekdays. Returns nil when no distance is
// found anywhere.
func ParseFreeText(text string, runsPerWeek int, now time.Time) []trainer.PlannedWorkout {
	if text == "" || !kmRe.MatchString(text) {
		return nil
	}
	if runsPerWeek < 1 {
		runsPerWeek = 1
	}
	if runsPerWeek > 7 {
		runsPerWeek = 7
	}

	start := pace.StartOfNextWeek(now)
	dayIdx := trainer.RunDays(runsPerWeek)

	var items []trainer.PlannedWorkout
	for w, block := range splitWeekBlocks(text) {
		var entries []trainer.PlannedWorkout
		for _, ln := range block {
			km, ok := parseKm(ln)
			if !ok {
				continue
			}
			entries = append(entries, trainer.PlannedWorkout{
				Type:      inferType(ln),
				PlannedKm: math.Max(0, math.Round(km*10)/10),
			})
		}
		if len(entries) == 0 {
			continue
		}
		if len(entries) > runsPerWeek {
			entries = entries[:runsPerWeek]
		}

		weekStart := start.AddDate(0, 0, w*7)
		for j := range entries {
			date := weekStart.AddDate(0, 0, dayIdx[j]).Format(pace.ISODate)
			entries[j].ID = trainer.WorkoutID(date, entries[j].Type)
			entries[j].Date = date
			entries[j].Notes = trainer.DefaultNotes(entries[j].Type)
		}
		items = append(items, entries...)
	}
	return items
}

// Plan converts a validated payload into calendar entries, rounding
// distances to one decimal.
func (p *PlanPayload) Plan() []trainer.PlannedWorkout {
	items := make([]trainer.PlannedWorkout, 0, len(p.Workouts))
	for _, w := range p.Workouts {
		t := trainer.WorkoutType(w.Type)
		items = append(items, trainer.PlannedWorkout{
			ID:        trainer.WorkoutID(w.Date, t),
			Date:      w.Date,
			Type:      t,
			PlannedKm: math.Max(0, math.Round(w.Km*10)/10),
			Notes:     trainer.DefaultNotes(t),
			Pace:      w.Pace,
		})
	}
	return items
}
