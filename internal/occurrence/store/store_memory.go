package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"obligo/internal/occurrence/models"
	"obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

type periodKey struct {
	code   domain.DefinitionCode
	period string
}

// InMemoryStore keeps occurrences in process memory with the same uniqueness
// and single-fire guarantees the Postgres store gets from constraints. Used
// by unit tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[domain.OccurrenceID]*models.Occurrence
	byPeriod map[periodKey]domain.OccurrenceID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[domain.OccurrenceID]*models.Occurrence),
		byPeriod: make(map[periodKey]domain.OccurrenceID),
	}
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, occ *models.Occurrence) (*models.Occurrence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := periodKey{code: occ.DefinitionCode, period: occ.PeriodLabel}
	if existingID, ok := s.byPeriod[key]; ok {
		return clone(s.byID[existingID]), false, nil
	}
	stored := clone(occ)
	s.byID[stored.ID] = stored
	s.byPeriod[key] = stored.ID
	return clone(stored), true, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.OccurrenceID) (*models.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	occ, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(occ), nil
}

func (s *InMemoryStore) FindByDefinitionAndPeriod(_ context.Context, code domain.DefinitionCode, periodLabel string) (*models.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPeriod[periodKey{code: code, period: periodLabel}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *InMemoryStore) SetSubmission(_ context.Context, id domain.OccurrenceID, sub models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	occ, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if occ.Submission != nil {
		return sentinel.ErrInvalidState
	}
	occ.Submission = &sub
	return nil
}

func (s *InMemoryStore) AppendCorrection(_ context.Context, id domain.OccurrenceID, corr models.Correction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	occ, ok := s.byID[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if occ.Submission == nil {
		return 0, sentinel.ErrInvalidState
	}
	corr.Seq = len(occ.Corrections) + 1
	occ.Corrections = append(occ.Corrections, corr)
	return corr.Seq, nil
}

func (s *InMemoryStore) ListByDefinition(_ context.Context, code domain.DefinitionCode) ([]*models.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Occurrence
	for _, occ := range s.byID {
		if occ.DefinitionCode == code {
			out = append(out, clone(occ))
		}
	}
	sortByDueDate(out)
	return out, nil
}

func (s *InMemoryStore) ListUnsubmitted(_ context.Context) ([]*models.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Occurrence
	for _, occ := range s.byID {
		if occ.Submission == nil {
			out = append(out, clone(occ))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *InMemoryStore) ListByDueDateRange(_ context.Context, from, to time.Time) ([]*models.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Occurrence
	for _, occ := range s.byID {
		if occ.DueDate.Before(from) || occ.DueDate.After(to) {
			continue
		}
		out = append(out, clone(occ))
	}
	sortByDueDate(out)
	return out, nil
}

func sortByDueDate(occs []*models.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].DueDate.Equal(occs[j].DueDate) {
			return occs[i].PeriodLabel < occs[j].PeriodLabel
		}
		return occs[i].DueDate.Before(occs[j].DueDate)
	})
}

func clone(occ *models.Occurrence) *models.Occurrence {
	c := *occ
	if occ.Submission != nil {
		sub := *occ.Submission
		c.Submission = &sub
	}
	if occ.Corrections != nil {
		c.Corrections = append([]models.Correction(nil), occ.Corrections...)
	}
	return &c
}
