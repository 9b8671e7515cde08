// Package models holds the obligation definition aggregate.
package models

import (
	"time"

	"obligo/internal/schedule"
	"obligo/pkg/domain"
)

// Definition is the template from which occurrences are materialized: what is
// owed, to whom, on what cadence, and who is responsible. The code is the
// stable external key and never changes after creation.
//
// Editing a definition only affects occurrences materialized afterwards.
// Already materialized occurrences keep the due date and deadline they were
// created with.
type Definition struct {
	Code      domain.DefinitionCode `json:"code"`
	Name      string                `json:"name"`
	EntityRef domain.EntityRef      `json:"entity_ref"`

	Recurrence      domain.Recurrence `json:"recurrence"`
	DueDay          int               `json:"due_day,omitempty"`
	DueMonth        int               `json:"due_month,omitempty"`
	GracePeriodDays int               `json:"grace_period_days"`
	ValidFrom       *time.Time        `json:"valid_from,omitempty"`
	ValidUntil      *time.Time        `json:"valid_until,omitempty"`

	PreparerRef   domain.ActorRef `json:"preparer_ref"`
	SupervisorRef domain.ActorRef `json:"supervisor_ref"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rule extracts the recurrence portion for the due-date calculator.
func (d *Definition) Rule() schedule.Rule {
	return schedule.Rule{
		Recurrence: d.Recurrence,
		DueDay:     d.DueDay,
		DueMonth:   d.DueMonth,
		ValidFrom:  d.ValidFrom,
		ValidUntil: d.ValidUntil,
	}
}

// CreateRequest is the payload for registering a definition.
type CreateRequest struct {
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	EntityRef       string     `json:"entity_ref"`
	Recurrence      string     `json:"recurrence"`
	DueDay          int        `json:"due_day,omitempty"`
	DueMonth        int        `json:"due_month,omitempty"`
	GracePeriodDays int        `json:"grace_period_days"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	PreparerRef     string     `json:"preparer_ref"`
	SupervisorRef   string     `json:"supervisor_ref"`
}

// UpdateRequest is the payload for editing a definition. The code comes from
// the URL; every other business field is replaced wholesale.
type UpdateRequest struct {
	Name            string     `json:"name"`
	EntityRef       string     `json:"entity_ref"`
	Recurrence      string     `json:"recurrence"`
	DueDay          int        `json:"due_day,omitempty"`
	DueMonth        int        `json:"due_month,omitempty"`
	GracePeriodDays int        `json:"grace_period_days"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	PreparerRef     string     `json:"preparer_ref"`
	SupervisorRef   string     `json:"supervisor_ref"`
}
