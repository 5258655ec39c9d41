package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryTaskStore is an in-memory TaskStore. It backs tests and
// deployments that run without a database; it additionally records
// the status history per task, which the lifecycle tests assert on.
type MemoryTaskStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*TaskRecord
	history map[uuid.UUID][]Status
	order   []uuid.UUID
}

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		records: make(map[uuid.UUID]*TaskRecord),
		history: make(map[uuid.UUID][]Status),
	}
}

func (s *MemoryTaskStore) SaveTask(_ context.Context, rec *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[rec.ID] = &clone
	s.history[rec.ID] = append(s.history[rec.ID], rec.Status)
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *MemoryTaskStore) UpdateTask(_ context.Context, rec *TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return ErrTaskNotFound
	}
	clone := *rec
	s.records[rec.ID] = &clone
	s.history[rec.ID] = append(s.history[rec.ID], rec.Status)
	return nil
}

func (s *MemoryTaskStore) GetTask(_ context.Context, id uuid.UUID) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *MemoryTaskStore) GetUnfinishedTasks(_ context.Context) ([]*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unfinished []*TaskRecord
	for _, id := range s.order {
		rec := s.records[id]
		if !rec.Status.Terminal() {
			clone := *rec
			unfinished = append(unfinished, &clone)
		}
	}
	return unfinished, nil
}

// StatusHistory returns the sequence of statuses persisted for a
// task, in write order.
func (s *MemoryTaskStore) StatusHistory(id uuid.UUID) []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.history[id]
	out := make([]Status, len(history))
	copy(out, history)
	return out
}
