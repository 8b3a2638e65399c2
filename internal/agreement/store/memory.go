package store

import (
	"context"
	"sync"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/sentinel"
)

// InMemoryStore keeps agreements in process memory. All mutations run under
// a single writer lock so concurrent calls never interleave field writes
// within one record or corrupt the secondary indices; reads take the shared
// lock and return deep copies.
type InMemoryStore struct {
	mu          sync.RWMutex
	agreements  map[string]*models.Agreement
	bySubject   map[string][]string
	byProcessor map[string][]string
}

// New constructs an empty in-memory agreement store.
func New() *InMemoryStore {
	return &InMemoryStore{
		agreements:  make(map[string]*models.Agreement),
		bySubject:   make(map[string][]string),
		byProcessor: make(map[string][]string),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, agreement *models.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agreements[agreement.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.agreements[agreement.ID] = agreement.Clone()
	// Back-reference indices are appended exactly once, at creation time.
	s.bySubject[agreement.Subject] = append(s.bySubject[agreement.Subject], agreement.ID)
	s.byProcessor[agreement.Processor] = append(s.byProcessor[agreement.Processor], agreement.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agreement, ok := s.agreements[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return agreement.Clone(), nil
}

func (s *InMemoryStore) Put(_ context.Context, agreement *models.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agreements[agreement.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.agreements[agreement.ID] = agreement.Clone()
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.bySubject[subject]...), nil
}

func (s *InMemoryStore) ListByProcessor(_ context.Context, processor string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.byProcessor[processor]...), nil
}
