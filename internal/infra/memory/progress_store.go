package memory

import (
	"context"
	"sync"

	"bibleschool-quiz-service/internal/app"
	"bibleschool-quiz-service/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStores.
type ProgressStore struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{values: make(map[string]map[string][]byte)}
}

// ForStudent returns the key-value view of one student's saved sessions.
func (s *ProgressStore) ForStudent(studentID string) app.KeyValueStore {
	return &studentStore{parent: s, studentID: studentID}
}

type studentStore struct {
	parent    *ProgressStore
	studentID string
}

func (s *studentStore) Get(_ context.Context, key string) ([]byte, error) {
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()
	value, ok := s.parent.values[s.studentID][key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *studentStore) Set(_ context.Context, key string, value []byte) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	bucket, ok := s.parent.values[s.studentID]
	if !ok {
		bucket = make(map[string][]byte)
		s.parent.values[s.studentID] = bucket
	}
	bucket[key] = append([]byte(nil), value...)
	return nil
}

func (s *studentStore) Delete(_ context.Context, key string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	bucket, ok := s.parent.values[s.studentID]
	if !ok {
		return nil
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(s.parent.values, s.studentID)
	}
	return nil
}
