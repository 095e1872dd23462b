package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"splitverify/internal/domain"
	"splitverify/internal/services/workflow"
)

// Sessions keeps workflow controllers for the lifetime of the process.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*workflow.Controller
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[uuid.UUID]*workflow.Controller)}
}

func (s *Sessions) Create(ctx context.Context, c *workflow.Controller) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	s.sessions[id] = c
	s.mu.Unlock()
	return id, nil
}

func (s *Sessions) Get(ctx context.Context, id uuid.UUID) (*workflow.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *Sessions) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
