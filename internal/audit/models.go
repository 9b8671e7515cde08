// Package audit records every state-changing action in the engine. The trail
// is append-only: events are never updated or deleted, and corrections to
// business data appear as new events rather than edits.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names the state change an event records.
type Action string

const (
	ActionOccurrenceMaterialized Action = "occurrence_materialized"
	ActionSubmissionRecorded     Action = "submission_recorded"
	ActionCorrectionAppended     Action = "correction_appended"
	ActionAlertFired             Action = "alert_fired"
	ActionAlertAcknowledged      Action = "alert_acknowledged"
	ActionDefinitionCreated      Action = "definition_created"
	ActionDefinitionUpdated      Action = "definition_updated"
	ActionDefinitionDeactivated  Action = "definition_deactivated"
)

// Category partitions the trail for retention and consumer routing.
type Category string

const (
	// CategoryCompliance covers events regulators may ask for: the lifecycle
	// of occurrences and their submissions.
	CategoryCompliance Category = "compliance"
	// CategoryOps covers configuration and alerting activity.
	CategoryOps Category = "ops"
)

// actionCategories is the source of truth for routing. Every action must
// appear here; Category() falls back to ops for unknown actions so an
// unmapped event is still recorded somewhere.
var actionCategories = map[Action]Category{
	ActionOccurrenceMaterialized: CategoryCompliance,
	ActionSubmissionRecorded:     CategoryCompliance,
	ActionCorrectionAppended:     CategoryCompliance,
	ActionAlertFired:             CategoryOps,
	ActionAlertAcknowledged:      CategoryOps,
	ActionDefinitionCreated:      CategoryOps,
	ActionDefinitionUpdated:      CategoryOps,
	ActionDefinitionDeactivated:  CategoryOps,
}

// Category returns the trail partition for the action.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOps
}

// Event is one immutable entry in the trail. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// Actor is the reference of whoever caused the change; "system" for
	// engine-initiated actions such as materialization and alert firing.
	Actor string `json:"actor"`
	Role  string `json:"role,omitempty"`
	// Subject references: an event always names its definition, and names
	// the occurrence and period when one is involved.
	OccurrenceID   string `json:"occurrence_id,omitempty"`
	DefinitionCode string `json:"definition_code"`
	PeriodLabel    string `json:"period_label,omitempty"`
	// Detail carries action-specific context (correction reason, alert
	// tier, changed fields).
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
