// Package classify derives urgency tiers and compliance outcomes from an
// occurrence's deadline and submission state. This is pure domain logic - no
// I/O, no side effects. Results are a read-time projection and are never
// persisted; callers pass "now" explicitly (requestcontext.Now) so a request
// sees one consistent classification.
package classify

import "time"

// Tier drives UI emphasis and alerting for unsubmitted occurrences.
type Tier string

const (
	TierNone     Tier = "none"
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Outcome is the compliance state. PENDING/OVERDUE are wall-clock dependent;
// ON_TIME/LATE are fixed permanently the moment a submission is recorded and
// never change afterwards (corrections do not reopen them).
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeOverdue Outcome = "overdue"
	OutcomeOnTime  Outcome = "on_time"
	OutcomeLate    Outcome = "late"
)

// Input is the minimal occurrence state classification depends on.
type Input struct {
	// EnforceableDeadline is dueDate + gracePeriodDays, the actual cutoff.
	EnforceableDeadline time.Time
	// SubmittedAt is set once the occurrence has its authoritative
	// submission. Nil means not submitted.
	SubmittedAt *time.Time
}

// Result is the derived classification.
type Result struct {
	Tier    Tier    `json:"urgency_tier"`
	Outcome Outcome `json:"compliance_outcome"`
	// DaysToDeadline counts whole calendar days from now to the
	// enforceable deadline; negative means overdue.
	DaysToDeadline int `json:"days_to_deadline"`
	// DaysDeviation is submittedAt minus the deadline in whole days;
	// <= 0 means on time. Only set for submitted occurrences.
	DaysDeviation *int `json:"days_deviation,omitempty"`
}

// Classify computes the projection for one occurrence at one instant.
// Calling it twice with the same inputs yields identical results.
func Classify(in Input, now time.Time) Result {
	days := wholeDays(now, in.EnforceableDeadline)
	result := Result{DaysToDeadline: days}

	if in.SubmittedAt == nil {
		if days >= 0 {
			result.Outcome = OutcomePending
		} else {
			result.Outcome = OutcomeOverdue
		}
		result.Tier = pendingTier(days)
		return result
	}

	// Submitted: outcome is a function of the submission instant alone,
	// independent of now. No further alerting once submitted.
	deviation := wholeDays(in.EnforceableDeadline, *in.SubmittedAt)
	if deviation <= 0 {
		result.Outcome = OutcomeOnTime
	} else {
		result.Outcome = OutcomeLate
	}
	result.Tier = TierNone
	result.DaysDeviation = &deviation
	return result
}

func pendingTier(daysToDeadline int) Tier {
	switch {
	case daysToDeadline < 0:
		return TierCritical
	case daysToDeadline <= 1:
		return TierHigh
	case daysToDeadline <= 7:
		return TierMedium
	default:
		return TierLow
	}
}

// wholeDays counts calendar days from a to b (b's date minus a's date),
// ignoring the time-of-day component of either instant.
func wholeDays(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
