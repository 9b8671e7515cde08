// Package models holds the occurrence aggregate: one concrete period of an
// obligation, its authoritative submission, and its corrections.
package models

import (
	"time"

	"obligo/internal/classify"
	"obligo/pkg/domain"
)

// Occurrence is one materialized period of an obligation. The pair
// (DefinitionCode, PeriodLabel) is unique: concurrent ensures converge on a
// single row. DueDate and Deadline are frozen at materialization time;
// later definition edits do not touch them.
type Occurrence struct {
	ID             domain.OccurrenceID   `json:"id"`
	DefinitionCode domain.DefinitionCode `json:"definition_code"`
	PeriodLabel    string                `json:"period_label"`
	DueDate        time.Time             `json:"due_date"`
	// Deadline is the enforceable deadline: due date plus grace days.
	Deadline    time.Time    `json:"deadline"`
	Submission  *Submission  `json:"submission,omitempty"`
	Corrections []Correction `json:"corrections,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Submitted reports whether the authoritative submission exists.
func (o *Occurrence) Submitted() bool { return o.Submission != nil }

// ClassifyInput extracts the fields the classifier needs.
func (o *Occurrence) ClassifyInput() classify.Input {
	in := classify.Input{EnforceableDeadline: o.Deadline}
	if o.Submission != nil {
		t := o.Submission.SubmittedAt
		in.SubmittedAt = &t
	}
	return in
}

// Submission is the single authoritative filing for an occurrence. It is
// written exactly once; corrections never replace it.
type Submission struct {
	Payload     domain.PayloadRef `json:"payload"`
	SubmittedBy domain.ActorRef   `json:"submitted_by"`
	SubmittedAt time.Time         `json:"submitted_at"`
	// EvidenceLinkRef is an optional opaque pointer to supporting evidence
	// (an acknowledgement receipt, a filing confirmation). Never resolved by
	// the engine.
	EvidenceLinkRef string `json:"evidence_link_ref,omitempty"`
	Note            string `json:"note,omitempty"`
}

// Correction is an append-only amendment to a submitted occurrence. Seq is
// 1-based and strictly increasing per occurrence.
type Correction struct {
	Seq         int               `json:"seq"`
	Payload     domain.PayloadRef `json:"payload"`
	Reason      string            `json:"reason"`
	CorrectedBy domain.ActorRef   `json:"corrected_by"`
	CorrectedAt time.Time         `json:"corrected_at"`
}

// View is an occurrence with its read-time classification attached. The
// classification is derived, never stored.
type View struct {
	Occurrence
	Classification classify.Result `json:"classification"`
}

// NewView classifies an occurrence at the given instant.
func NewView(occ *Occurrence, now time.Time) *View {
	return &View{
		Occurrence:     *occ,
		Classification: classify.Classify(occ.ClassifyInput(), now),
	}
}

// EnsureRequest asks for the occurrence of one definition period. Safe to
// repeat; the first caller materializes, everyone else gets the same row.
type EnsureRequest struct {
	DefinitionCode string `json:"definition_code"`
	PeriodLabel    string `json:"period_label"`
}

// SubmitRequest records the authoritative submission.
type SubmitRequest struct {
	Payload         domain.PayloadRef `json:"payload"`
	EvidenceLinkRef string            `json:"evidence_link_ref,omitempty"`
	Note            string            `json:"note,omitempty"`
}

// CorrectRequest appends a correction. The reason is mandatory.
type CorrectRequest struct {
	Payload domain.PayloadRef `json:"payload"`
	Reason  string            `json:"reason"`
}
