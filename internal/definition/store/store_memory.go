package store

import (
	"context"
	"sort"
	"sync"

	"obligo/internal/definition/models"
	"obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// InMemoryStore keeps definitions in process memory. Used by unit tests and
// local development without Postgres.
type InMemoryStore struct {
	mu   sync.RWMutex
	defs map[domain.DefinitionCode]models.Definition
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{defs: make(map[domain.DefinitionCode]models.Definition)}
}

func (s *InMemoryStore) Create(_ context.Context, def *models.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.defs[def.Code]; exists {
		return sentinel.ErrConflict
	}
	s.defs[def.Code] = *def
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, def *models.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.defs[def.Code]; !exists {
		return sentinel.ErrNotFound
	}
	s.defs[def.Code] = *def
	return nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code domain.DefinitionCode) (*models.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, exists := s.defs[code]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return &def, nil
}

func (s *InMemoryStore) List(_ context.Context, includeInactive bool) ([]*models.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Definition, 0, len(s.defs))
	for _, def := range s.defs {
		if !def.Active && !includeInactive {
			continue
		}
		d := def
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
