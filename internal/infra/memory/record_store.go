package memory

import (
	"context"
	"sync"

	"practice-engine/internal/domain"
)

type recordKey struct {
	learnerID    string
	assignmentID string
}

// RecordStore is an in-memory implementation of app.RecordStore. A per-key
// mutex serializes Update calls for the same (learner, assignment) pair while
// leaving other records free to update concurrently.
type RecordStore struct {
	mu      sync.RWMutex
	records map[recordKey]*domain.ScoreRecord
	locks   map[recordKey]*sync.Mutex
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[recordKey]*domain.ScoreRecord),
		locks:   make(map[recordKey]*sync.Mutex),
	}
}

func (s *RecordStore) Get(_ context.Context, learnerID, assignmentID string) (*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{learnerID, assignmentID}]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *RecordStore) Save(_ context.Context, rec *domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{rec.LearnerID, rec.AssignmentID}] = rec.Clone()
	return nil
}

func (s *RecordStore) Update(_ context.Context, learnerID, assignmentID string, fn func(*domain.ScoreRecord) error) (*domain.ScoreRecord, error) {
	key := recordKey{learnerID, assignmentID}
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	next := rec.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.records[key] = next
	s.mu.Unlock()
	return next.Clone(), nil
}

func (s *RecordStore) keyLock(key recordKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
