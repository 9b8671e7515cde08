// Package store persists obligation definitions. Implementations report
// failures with the shared sentinel errors; services translate them into
// coded domain errors.
package store

import (
	"context"

	"obligo/internal/definition/models"
	"obligo/pkg/domain"
)

type Store interface {
	// Create inserts a definition. Returns sentinel.ErrConflict when the
	// code is already taken.
	Create(ctx context.Context, def *models.Definition) error
	// Update replaces the mutable fields of an existing definition.
	// Returns sentinel.ErrNotFound when the code is unknown.
	Update(ctx context.Context, def *models.Definition) error
	// FindByCode returns sentinel.ErrNotFound when the code is unknown.
	FindByCode(ctx context.Context, code domain.DefinitionCode) (*models.Definition, error)
	// List returns definitions ordered by code. Inactive definitions are
	// included only when requested.
	List(ctx context.Context, includeInactive bool) ([]*models.Definition, error)
}
