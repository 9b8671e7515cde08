// Package service holds obligation definition orchestration: validation,
// persistence, and audit. Definitions are configuration, not state; editing
// one never touches occurrences that were already materialized.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obligo/internal/audit"
	"obligo/internal/definition/models"
	"obligo/internal/definition/store"
	"obligo/internal/schedule"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

// Auditor records definition lifecycle events. Fail-closed: an audit error
// fails the operation.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store   store.Store
	auditor Auditor
}

func NewService(store store.Store, auditor Auditor) *Service {
	return &Service{store: store, auditor: auditor}
}

// Create registers a new definition. The code must be unused; the recurrence
// parameters must be coherent for the cadence.
// Errors: CodeInvalidInput/CodeInvalidRecurrence for bad fields, CodeConflict
// when the code is taken.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.Definition, error) {
	code, err := domain.ParseDefinitionCode(req.Code)
	if err != nil {
		return nil, err
	}
	def, err := s.buildDefinition(code, req.Name, req.EntityRef, req.Recurrence, req.DueDay, req.DueMonth,
		req.GracePeriodDays, req.ValidFrom, req.ValidUntil, req.PreparerRef, req.SupervisorRef)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	def.Active = true
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.store.Create(ctx, def); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "definition code already exists: "+code.String())
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to create definition", err)
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:         audit.ActionDefinitionCreated,
		DefinitionCode: code.String(),
		Detail:         fmt.Sprintf("recurrence=%s grace_days=%d", def.Recurrence, def.GracePeriodDays),
	}); err != nil {
		return nil, err
	}
	return def, nil
}

// Update replaces the mutable fields of an existing definition. The code is
// immutable. Occurrences materialized before the edit are unaffected.
func (s *Service) Update(ctx context.Context, code domain.DefinitionCode, req models.UpdateRequest) (*models.Definition, error) {
	existing, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	def, err := s.buildDefinition(code, req.Name, req.EntityRef, req.Recurrence, req.DueDay, req.DueMonth,
		req.GracePeriodDays, req.ValidFrom, req.ValidUntil, req.PreparerRef, req.SupervisorRef)
	if err != nil {
		return nil, err
	}
	def.Active = existing.Active
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, def); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to update definition", err)
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:         audit.ActionDefinitionUpdated,
		DefinitionCode: code.String(),
		Detail:         fmt.Sprintf("recurrence=%s grace_days=%d", def.Recurrence, def.GracePeriodDays),
	}); err != nil {
		return nil, err
	}
	return def, nil
}

// Deactivate stops future materialization for the definition. Existing
// occurrences keep their lifecycle. Deactivating an already inactive
// definition is a no-op.
func (s *Service) Deactivate(ctx context.Context, code domain.DefinitionCode) error {
	def, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	if !def.Active {
		return nil
	}

	def.Active = false
	def.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, def); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "failed to deactivate definition", err)
	}

	return s.auditor.Emit(ctx, audit.Event{
		Action:         audit.ActionDefinitionDeactivated,
		DefinitionCode: code.String(),
	})
}

// Get returns one definition.
// Errors: CodeNotFound when the code is unknown.
func (s *Service) Get(ctx context.Context, code domain.DefinitionCode) (*models.Definition, error) {
	def, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "definition not found: "+code.String())
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load definition", err)
	}
	return def, nil
}

// List returns definitions ordered by code.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]*models.Definition, error) {
	defs, err := s.store.List(ctx, includeInactive)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list definitions", err)
	}
	return defs, nil
}

func (s *Service) buildDefinition(
	code domain.DefinitionCode,
	name, entityRef, recurrence string,
	dueDay, dueMonth, graceDays int,
	validFrom, validUntil *time.Time,
	preparerRef, supervisorRef string,
) (*models.Definition, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "definition name is required")
	}
	if entityRef == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity reference is required")
	}
	rec, err := domain.ParseRecurrence(recurrence)
	if err != nil {
		return nil, err
	}
	if graceDays < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "grace period cannot be negative")
	}
	preparer, err := domain.ParseActorRef(preparerRef)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInvalidInput, "preparer reference", err)
	}
	supervisor, err := domain.ParseActorRef(supervisorRef)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInvalidInput, "supervisor reference", err)
	}

	def := &models.Definition{
		Code:            code,
		Name:            name,
		EntityRef:       domain.EntityRef(entityRef),
		Recurrence:      rec,
		DueDay:          dueDay,
		DueMonth:        dueMonth,
		GracePeriodDays: graceDays,
		ValidFrom:       validFrom,
		ValidUntil:      validUntil,
		PreparerRef:     preparer,
		SupervisorRef:   supervisor,
	}
	if err := schedule.ValidateRule(def.Rule()); err != nil {
		return nil, err
	}
	return def, nil
}
