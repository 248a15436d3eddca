// Package records derives personal-best times from the run log.
package records

import (
	"math"

	"marathon-trainer/internal/trainer"
)

// distanceTolerance is the relative window around a canonical distance
// within which a run still counts for that record.
const distanceTolerance = 0.01

// Recompute scans the run log and returns the best time per canonical
// distance. A record is left unset when no run matches; any hand-entered
// value for a distance that does match is overwritten.
func Recompute(runs []trainer.LoggedRun, existing []trainer.PersonalRecord) []trainer.PersonalRecord {
	best := map[float64]*int{}
	for _, target := range trainer.RecordTargets {
		best[target] = nil
	}

	for _, run := range runs {
		if run.ActualKm <= 0 || run.ActualTimeSec <= 0 {
			continue
		}
		for _, target := range trainer.RecordTargets {
			if math.Abs(run.ActualKm-target)/target > distanceTolerance {
				continue
			}
			if best[target] == nil || run.ActualTimeSec < *best[target] {
				sec := run.ActualTimeSec
				best[target] = &sec
			}
		}
	}

	if len(existing) == 0 {
		existing = trainer.DefaultRecords()
	}
	updated := make([]trainer.PersonalRecord, len(existing))
	copy(updated, existing)
	for i := range updated {
		if sec, ok := best[updated[i].DistKm]; ok && sec != nil {
			updated[i].TimeSec = sec
		}
	}
	return updated
}
