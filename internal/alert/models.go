// Package alert derives which notification events are due for an occurrence
// and tracks fired tiers so each fires at most once. The planner is a pure
// derivation; delivery belongs to an external notification transport that
// consumes the audit feed.
package alert

import (
	"time"

	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// Tier names one alert threshold of an unsubmitted occurrence.
type Tier string

const (
	// TierApproaching7d fires when the enforceable deadline is seven or
	// fewer days away.
	TierApproaching7d Tier = "approaching_7d"
	// TierApproaching1d fires when the deadline is one day away or today.
	TierApproaching1d Tier = "approaching_1d"
	// TierOverdue fires once the deadline has passed.
	TierOverdue Tier = "overdue"
)

// Tiers lists every tier in escalation order.
var Tiers = []Tier{TierApproaching7d, TierApproaching1d, TierOverdue}

// ParseTier constructs a Tier from external input.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierApproaching7d, TierApproaching1d, TierOverdue:
		return Tier(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput,
		"tier must be one of approaching_7d, approaching_1d, overdue")
}

// leadDays is how many days before the enforceable deadline a tier
// becomes active.
func (t Tier) leadDays() int {
	switch t {
	case TierApproaching7d:
		return 7
	case TierApproaching1d:
		return 1
	default:
		return -1
	}
}

// ActivationTime is the instant the tier becomes active for a deadline.
// TierOverdue activates the day after the deadline.
func (t Tier) ActivationTime(deadline time.Time) time.Time {
	return deadline.AddDate(0, 0, -t.leadDays())
}

// Alert is a derived, non-authoritative record of one fired tier. Everything
// authoritative about the occurrence stays in the occurrence store; alerts
// only exist so a tier never fires twice.
type Alert struct {
	OccurrenceID   domain.OccurrenceID   `json:"occurrence_id"`
	DefinitionCode domain.DefinitionCode `json:"definition_code"`
	PeriodLabel    string                `json:"period_label"`
	Tier           Tier                  `json:"tier"`
	// ScheduledFor is the moment the tier became active, not the moment
	// it was noticed by an evaluation run.
	ScheduledFor   time.Time  `json:"scheduled_for"`
	FiredAt        time.Time  `json:"fired_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Acknowledged reports whether the alert has been acknowledged. The
// transition is one-way; there is no way to un-acknowledge.
func (a *Alert) Acknowledged() bool { return a.AcknowledgedAt != nil }
