package store

import (
	"context"
	"sync"
	"time"

	"weict/internal/registration/models"
)

// InMemoryStore keeps registrations in process memory. It backs handler
// tests and local runs without a database.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []models.Registration
	now    func() time.Time
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{nextID: 1, now: time.Now}
}

func (s *InMemoryStore) Create(_ context.Context, sub models.Submission) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := models.Registration{
		ID:           s.nextID,
		Name:         sub.Name,
		Email:        sub.Email,
		Phone:        sub.Phone,
		Institution:  sub.Institution,
		Topic:        sub.Topic,
		RegisteredAt: s.now(),
	}
	s.nextID++
	s.rows = append(s.rows, reg)
	return &reg, nil
}

// Count returns the number of stored registrations.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

// All returns a copy of every stored registration in insertion order.
func (s *InMemoryStore) All() []models.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Registration, len(s.rows))
	copy(out, s.rows)
	return out
}

// Ping always succeeds; there is nothing to reach.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

// EnsureSchema is a no-op.
func (s *InMemoryStore) EnsureSchema(context.Context) error {
	return nil
}
