package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"obligo/internal/audit"
	occmodels "obligo/internal/occurrence/models"
	"obligo/internal/platform/metrics"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/platform/sentinel"
	"obligo/pkg/requestcontext"
)

// Occurrences is the slice of the occurrence store the evaluator reads.
type Occurrences interface {
	FindByID(ctx context.Context, id domain.OccurrenceID) (*occmodels.Occurrence, error)
	ListUnsubmitted(ctx context.Context) ([]*occmodels.Occurrence, error)
}

// Auditor records fired and acknowledged alerts into the trail.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service evaluates alert tiers across unsubmitted occurrences and owns the
// acknowledgement transition. Evaluation is triggered by an external
// scheduler; the service itself never sleeps.
type Service struct {
	occurrences Occurrences
	store       Store
	auditor     Auditor
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewService(occurrences Occurrences, store Store, auditor Auditor, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		occurrences: occurrences,
		store:       store,
		auditor:     auditor,
		logger:      logger,
		metrics:     m,
	}
}

// Evaluate runs the planner over every unsubmitted occurrence and returns
// the alerts that newly fired. Safe to invoke concurrently and repeatedly;
// the store's first-writer-wins marking keeps each tier at most once.
func (s *Service) Evaluate(ctx context.Context) ([]Alert, error) {
	occs, err := s.occurrences.ListUnsubmitted(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list unsubmitted occurrences", err)
	}

	fired := make([]Alert, 0)
	for _, occ := range occs {
		alerts, err := s.evaluateOne(ctx, occ)
		if err != nil {
			return nil, err
		}
		fired = append(fired, alerts...)
	}
	return fired, nil
}

// EvaluateOccurrence runs the planner for a single occurrence.
func (s *Service) EvaluateOccurrence(ctx context.Context, id domain.OccurrenceID) ([]Alert, error) {
	occ, err := s.loadOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}
	alerts, err := s.evaluateOne(ctx, occ)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	return alerts, nil
}

func (s *Service) evaluateOne(ctx context.Context, occ *occmodels.Occurrence) ([]Alert, error) {
	now := requestcontext.Now(ctx)

	previouslyFired, err := s.store.FiredTiers(ctx, occ.ID)
	if err != nil {
		return nil, s.storeError("failed to read fired tiers", err)
	}

	var fired []Alert
	for _, tier := range DueAlerts(occ, now, tierSet(previouslyFired)) {
		// Mark before audit: the mark is what guarantees at most once,
		// and a lost race here just means another evaluator won.
		created, err := s.store.MarkFired(ctx, occ.ID, tier, now)
		if err != nil {
			return nil, s.storeError("failed to mark tier fired", err)
		}
		if !created {
			continue
		}

		err = s.auditor.Emit(ctx, audit.Event{
			Action:         audit.ActionAlertFired,
			OccurrenceID:   occ.ID.String(),
			DefinitionCode: occ.DefinitionCode.String(),
			PeriodLabel:    occ.PeriodLabel,
			Detail:         fmt.Sprintf("tier=%s scheduled_for=%s", tier, tier.ActivationTime(occ.Deadline).Format("2006-01-02")),
		})
		if err != nil {
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.AlertsFired.WithLabelValues(string(tier)).Inc()
		}
		s.logger.InfoContext(ctx, "alert fired",
			"occurrence_id", occ.ID.String(),
			"definition_code", occ.DefinitionCode.String(),
			"period_label", occ.PeriodLabel,
			"tier", tier,
		)
		fired = append(fired, newAlert(occ, tier, now))
	}
	return fired, nil
}

// Acknowledge marks one fired alert acknowledged. Idempotent: acknowledging
// an already acknowledged alert returns the current record without emitting
// a second audit event.
func (s *Service) Acknowledge(ctx context.Context, id domain.OccurrenceID, tier Tier) (*Alert, error) {
	occ, err := s.loadOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	previouslyFired, err := s.store.FiredTiers(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to read fired tiers", err)
	}
	firedAt, ok := previouslyFired[tier]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "alert tier has not fired for this occurrence")
	}

	now := requestcontext.Now(ctx)
	transitioned, err := s.store.Acknowledge(ctx, id, tier, now)
	if err != nil {
		return nil, s.storeError("failed to acknowledge alert", err)
	}
	if transitioned {
		err = s.auditor.Emit(ctx, audit.Event{
			Action:         audit.ActionAlertAcknowledged,
			OccurrenceID:   occ.ID.String(),
			DefinitionCode: occ.DefinitionCode.String(),
			PeriodLabel:    occ.PeriodLabel,
			Detail:         "tier=" + string(tier),
		})
		if err != nil {
			return nil, err
		}
	}

	acks, err := s.store.Acknowledgements(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to read acknowledgements", err)
	}
	alert := newAlert(occ, tier, firedAt)
	if at, ok := acks[tier]; ok {
		alert.AcknowledgedAt = &at
	}
	return &alert, nil
}

// ListByOccurrence returns the fired alerts of one occurrence in escalation
// order with their acknowledgement state.
func (s *Service) ListByOccurrence(ctx context.Context, id domain.OccurrenceID) ([]Alert, error) {
	occ, err := s.loadOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	fired, err := s.store.FiredTiers(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to read fired tiers", err)
	}
	acks, err := s.store.Acknowledgements(ctx, id)
	if err != nil {
		return nil, s.storeError("failed to read acknowledgements", err)
	}

	alerts := make([]Alert, 0, len(fired))
	for tier, firedAt := range fired {
		alert := newAlert(occ, tier, firedAt)
		if at, ok := acks[tier]; ok {
			alert.AcknowledgedAt = &at
		}
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return tierRank(alerts[i].Tier) < tierRank(alerts[j].Tier)
	})
	return alerts, nil
}

func (s *Service) loadOccurrence(ctx context.Context, id domain.OccurrenceID) (*occmodels.Occurrence, error) {
	occ, err := s.occurrences.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "occurrence not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load occurrence", err)
	}
	return occ, nil
}

func (s *Service) storeError(msg string, err error) error {
	return dErrors.Wrap(dErrors.CodeInternal, msg, err)
}

func newAlert(occ *occmodels.Occurrence, tier Tier, firedAt time.Time) Alert {
	return Alert{
		OccurrenceID:   occ.ID,
		DefinitionCode: occ.DefinitionCode,
		PeriodLabel:    occ.PeriodLabel,
		Tier:           tier,
		ScheduledFor:   tier.ActivationTime(occ.Deadline),
		FiredAt:        firedAt,
	}
}

func tierSet(tiers map[Tier]time.Time) map[Tier]bool {
	set := make(map[Tier]bool, len(tiers))
	for tier := range tiers {
		set[tier] = true
	}
	return set
}

func tierRank(t Tier) int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return len(Tiers)
}
