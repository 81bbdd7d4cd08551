package session

import (
	"sync"

	"github.com/ozgate/ozgate/pkg/oz"
)

// MemoryStore is an in-memory Store. Tests use it directly; it also serves
// single-process deployments that keep no cookie state.
type MemoryStore struct {
	mu      sync.RWMutex
	ticket  *oz.Ticket
	pending *oz.PendingFlow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Ticket() *oz.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticket
}

func (s *MemoryStore) SetTicket(t *oz.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket = t
	return nil
}

func (s *MemoryStore) ClearTicket() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket = nil
}

func (s *MemoryStore) PendingFlow() *oz.PendingFlow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

func (s *MemoryStore) SetPendingFlow(flow *oz.PendingFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = flow
	return nil
}

func (s *MemoryStore) TakePendingFlow() *oz.PendingFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow := s.pending
	s.pending = nil
	return flow
}
