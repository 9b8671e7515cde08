// Package service orchestrates the occurrence lifecycle: lazy
// materialization, the single authoritative submission, and append-only
// corrections. Compliance state is never stored; reads classify on the way
// out with the request-scoped now.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obligo/internal/audit"
	"obligo/internal/classify"
	defmodels "obligo/internal/definition/models"
	"obligo/internal/occurrence/models"
	"obligo/internal/occurrence/store"
	"obligo/internal/platform/metrics"
	"obligo/internal/schedule"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Definitions,Auditor

// Definitions looks up obligation definitions for materialization.
type Definitions interface {
	Get(ctx context.Context, code domain.DefinitionCode) (*defmodels.Definition, error)
}

// Auditor records lifecycle events. Fail-closed: an audit error fails the
// operation.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store       store.Store
	definitions Definitions
	auditor     Auditor
	metrics     *metrics.Metrics
}

func NewService(store store.Store, definitions Definitions, auditor Auditor, m *metrics.Metrics) *Service {
	return &Service{
		store:       store,
		definitions: definitions,
		auditor:     auditor,
		metrics:     m,
	}
}

// Ensure materializes the occurrence for one definition period, or returns
// the existing one. Idempotent: any number of calls for the same pair yield
// the same occurrence, and only the materializing call is audited.
// Deactivation and validity-window changes only block new materialization;
// an already-materialized period keeps resolving unchanged.
// Errors: CodeNotFound for unknown definitions, CodeNotApplicable when a new
// period cannot materialize because the definition is inactive or the period
// falls outside its validity window.
func (s *Service) Ensure(ctx context.Context, req models.EnsureRequest) (*models.View, error) {
	code, err := domain.ParseDefinitionCode(req.DefinitionCode)
	if err != nil {
		return nil, err
	}
	def, err := s.definitions.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	anchor, err := domain.ParsePeriodLabel(def.Recurrence, req.PeriodLabel)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	existing, err := s.store.FindByDefinitionAndPeriod(ctx, code, anchor.Label())
	if err == nil {
		return models.NewView(existing, now), nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load occurrence", err)
	}

	if !def.Active {
		return nil, dErrors.New(dErrors.CodeNotApplicable,
			"definition is deactivated: "+code.String())
	}
	dueDate, ok := schedule.DueDate(def.Rule(), anchor)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotApplicable,
			fmt.Sprintf("period %s is outside the validity window of %s", anchor.Label(), code))
	}
	occ := &models.Occurrence{
		ID:             domain.NewOccurrenceID(),
		DefinitionCode: code,
		PeriodLabel:    anchor.Label(),
		DueDate:        dueDate,
		Deadline:       schedule.Deadline(dueDate, def.GracePeriodDays),
		CreatedAt:      now,
	}

	winner, created, err := s.store.CreateIfAbsent(ctx, occ)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to materialize occurrence", err)
	}
	if created {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:         audit.ActionOccurrenceMaterialized,
			OccurrenceID:   winner.ID.String(),
			DefinitionCode: code.String(),
			PeriodLabel:    winner.PeriodLabel,
			Detail:         "due=" + winner.DueDate.Format("2006-01-02") + " deadline=" + winner.Deadline.Format("2006-01-02"),
		}); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.OccurrencesMaterialized.Inc()
		}
	}
	return models.NewView(winner, now), nil
}

// Submit records the single authoritative submission. Exactly one submit
// succeeds per occurrence, under any concurrency.
// Errors: CodeAlreadySubmitted when the submission exists, CodeNotFound for
// unknown occurrences, CodeBadRequest for an invalid payload.
func (s *Service) Submit(ctx context.Context, id domain.OccurrenceID, req models.SubmitRequest) (*models.View, error) {
	if err := req.Payload.Validate(); err != nil {
		return nil, err
	}
	actor, err := domain.ParseActorRef(requestcontext.Actor(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "submission requires an authenticated actor")
	}

	now := requestcontext.Now(ctx)
	sub := models.Submission{
		Payload:         req.Payload,
		SubmittedBy:     actor,
		SubmittedAt:     now,
		EvidenceLinkRef: req.EvidenceLinkRef,
		Note:            req.Note,
	}
	if err := s.store.SetSubmission(ctx, id, sub); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "occurrence not found: "+id.String())
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeAlreadySubmitted,
				"occurrence already has its authoritative submission")
		default:
			return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to record submission", err)
		}
	}

	occ, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:         audit.ActionSubmissionRecorded,
		OccurrenceID:   id.String(),
		DefinitionCode: occ.DefinitionCode.String(),
		PeriodLabel:    occ.PeriodLabel,
		Detail:         "payload=" + req.Payload.Kind(),
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SubmissionsRecorded.Inc()
	}
	return models.NewView(occ, now), nil
}

// Correct appends a correction to a submitted occurrence. The authoritative
// submission and its on-time/late outcome are untouched; corrections only
// accumulate.
// Errors: CodeNotSubmitted before the submission exists, CodeForbidden for
// non-supervisors, CodeInvalidInput for a missing reason.
func (s *Service) Correct(ctx context.Context, id domain.OccurrenceID, req models.CorrectRequest) (*models.View, error) {
	if requestcontext.ActorRole(ctx) != requestcontext.RoleSupervisor {
		return nil, dErrors.New(dErrors.CodeForbidden, "corrections require the supervisor role")
	}
	if req.Reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "correction reason is required")
	}
	if err := req.Payload.Validate(); err != nil {
		return nil, err
	}
	actor, err := domain.ParseActorRef(requestcontext.Actor(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "correction requires an authenticated actor")
	}

	now := requestcontext.Now(ctx)
	seq, err := s.store.AppendCorrection(ctx, id, models.Correction{
		Payload:     req.Payload,
		Reason:      req.Reason,
		CorrectedBy: actor,
		CorrectedAt: now,
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "occurrence not found: "+id.String())
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeNotSubmitted,
				"cannot correct an occurrence without a submission")
		default:
			return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to append correction", err)
		}
	}

	occ, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:         audit.ActionCorrectionAppended,
		OccurrenceID:   id.String(),
		DefinitionCode: occ.DefinitionCode.String(),
		PeriodLabel:    occ.PeriodLabel,
		Detail:         fmt.Sprintf("seq=%d reason=%s", seq, req.Reason),
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CorrectionsAppended.Inc()
	}
	return models.NewView(occ, now), nil
}

// Get returns one occurrence classified at the request time.
func (s *Service) Get(ctx context.Context, id domain.OccurrenceID) (*models.View, error) {
	occ, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewView(occ, requestcontext.Now(ctx)), nil
}

// GetByPeriod returns the occurrence of one definition period, if it has
// been materialized.
func (s *Service) GetByPeriod(ctx context.Context, code domain.DefinitionCode, periodLabel string) (*models.View, error) {
	occ, err := s.store.FindByDefinitionAndPeriod(ctx, code, periodLabel)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("no occurrence materialized for %s %s", code, periodLabel))
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load occurrence", err)
	}
	return models.NewView(occ, requestcontext.Now(ctx)), nil
}

// ListByDefinition returns all occurrences of a definition, classified at
// one consistent request time.
func (s *Service) ListByDefinition(ctx context.Context, code domain.DefinitionCode) ([]*models.View, error) {
	occs, err := s.store.ListByDefinition(ctx, code)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list occurrences", err)
	}
	return s.views(ctx, occs, nil), nil
}

// ListPending returns unsubmitted occurrences whose deadline has not passed,
// most urgent first.
func (s *Service) ListPending(ctx context.Context) ([]*models.View, error) {
	occs, err := s.store.ListUnsubmitted(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list pending occurrences", err)
	}
	return s.views(ctx, occs, func(v *models.View) bool {
		return v.Classification.Outcome == classify.OutcomePending
	}), nil
}

// ListOverdue returns unsubmitted occurrences past their deadline.
func (s *Service) ListOverdue(ctx context.Context) ([]*models.View, error) {
	occs, err := s.store.ListUnsubmitted(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list overdue occurrences", err)
	}
	return s.views(ctx, occs, func(v *models.View) bool {
		return v.Classification.Outcome == classify.OutcomeOverdue
	}), nil
}

// ListHistory returns occurrences due within [from, to], submitted or not,
// classified at one consistent request time.
func (s *Service) ListHistory(ctx context.Context, from, to time.Time) ([]*models.View, error) {
	if from.After(to) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "history range start is after its end")
	}
	occs, err := s.store.ListByDueDateRange(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list history", err)
	}
	return s.views(ctx, occs, nil), nil
}

func (s *Service) load(ctx context.Context, id domain.OccurrenceID) (*models.Occurrence, error) {
	occ, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "occurrence not found: "+id.String())
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load occurrence", err)
	}
	return occ, nil
}

func (s *Service) views(ctx context.Context, occs []*models.Occurrence, keep func(*models.View) bool) []*models.View {
	now := requestcontext.Now(ctx)
	views := make([]*models.View, 0, len(occs))
	for _, occ := range occs {
		v := models.NewView(occ, now)
		if keep == nil || keep(v) {
			views = append(views, v)
		}
	}
	return views
}
