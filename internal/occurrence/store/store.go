// Package store persists occurrences, submissions, and corrections.
// Implementations report failures with the shared sentinel errors; the
// service translates them into coded domain errors.
package store

import (
	"context"
	"time"

	"obligo/internal/occurrence/models"
	"obligo/pkg/domain"
)

type Store interface {
	// CreateIfAbsent inserts the occurrence unless one already exists for
	// its (definition, period) pair. Returns the winning row and whether
	// this call created it. Concurrent callers converge on one row.
	CreateIfAbsent(ctx context.Context, occ *models.Occurrence) (*models.Occurrence, bool, error)

	// FindByID returns sentinel.ErrNotFound when the ID is unknown.
	FindByID(ctx context.Context, id domain.OccurrenceID) (*models.Occurrence, error)

	// FindByDefinitionAndPeriod returns sentinel.ErrNotFound when the
	// period was never materialized.
	FindByDefinitionAndPeriod(ctx context.Context, code domain.DefinitionCode, periodLabel string) (*models.Occurrence, error)

	// SetSubmission records the authoritative submission. At most one
	// writer wins; the rest get sentinel.ErrInvalidState. Returns
	// sentinel.ErrNotFound for unknown IDs.
	SetSubmission(ctx context.Context, id domain.OccurrenceID, sub models.Submission) error

	// AppendCorrection appends a correction with the next sequence number.
	// Returns sentinel.ErrInvalidState when the occurrence has no
	// submission yet.
	AppendCorrection(ctx context.Context, id domain.OccurrenceID, corr models.Correction) (int, error)

	// ListByDefinition returns all occurrences of a definition ordered by
	// due date.
	ListByDefinition(ctx context.Context, code domain.DefinitionCode) ([]*models.Occurrence, error)

	// ListUnsubmitted returns every occurrence without a submission,
	// ordered by deadline.
	ListUnsubmitted(ctx context.Context) ([]*models.Occurrence, error)

	// ListByDueDateRange returns occurrences due within [from, to],
	// inclusive, ordered by due date.
	ListByDueDateRange(ctx context.Context, from, to time.Time) ([]*models.Occurrence, error)
}
