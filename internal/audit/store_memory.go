package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps events per agreement for tests and single-node runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]Event)
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.AgreementID] = append(s.events[event.AgreementID], event)
	return nil
}

func (s *InMemoryStore) ListByAgreement(_ context.Context, agreementID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[agreementID]...), nil
}
