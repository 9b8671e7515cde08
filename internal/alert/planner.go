package alert

import (
	"time"

	"obligo/internal/occurrence/models"
)

// DueAlerts derives the tiers that should fire for an occurrence at one
// instant, given the set of tiers already fired. Pure: no I/O, no clock
// reads, no mutation of its inputs.
//
// Rules:
//   - A submitted occurrence fires nothing; tiers it never reached are
//     discarded, not fired retroactively.
//   - A tier fires once its activation time has passed, so an evaluation
//     run that missed a threshold still surfaces it.
//   - previouslyFired suppresses re-firing. Combined with the store's
//     first-writer-wins marking this gives at-most-once per tier.
func DueAlerts(occ *models.Occurrence, now time.Time, previouslyFired map[Tier]bool) []Tier {
	if occ.Submitted() {
		return nil
	}

	var due []Tier
	for _, tier := range Tiers {
		if previouslyFired[tier] {
			continue
		}
		if !now.Before(tier.ActivationTime(occ.Deadline)) {
			due = append(due, tier)
		}
	}
	return due
}
