package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the history in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	order     []string
	byID      map[string]*Message
	createdAt time.Time
}

// NewMemoryStore returns an empty in-memory history.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]*Message),
		createdAt: time.Now(),
	}
}

func (s *MemoryStore) Append(_ context.Context, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := checkBatch(msgs, func(id string) (bool, error) {
		_, ok := s.byID[id]
		return ok, nil
	})
	if err != nil {
		return err
	}

	for _, m := range msgs {
		stored := m.clone()
		stored.ChildrenIDs = stored.ChildrenIDs[:0]
		s.byID[stored.ID] = &stored
		s.order = append(s.order, stored.ID)
		if parent, ok := s.byID[stored.ParentID]; ok && stored.ParentID != "" {
			parent.ChildrenIDs = append(parent.ChildrenIDs, stored.ID)
		}
	}
	return nil
}

func (s *MemoryStore) All(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].clone())
	}
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.byID = make(map[string]*Message)
	s.createdAt = time.Now()
	return nil
}

func (s *MemoryStore) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

func (s *MemoryStore) Close() error { return nil }
