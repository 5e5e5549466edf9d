package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"practice-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// maxUpdateRetries bounds the optimistic-lock retry loop. Contention on a
// single record means one learner double-submitting, so collisions resolve
// within a couple of rounds.
const maxUpdateRetries = 16

// RecordStore persists score records as JSON values keyed by
// (learner, assignment). Update uses WATCH/MULTI so concurrent submissions
// for the same record serialize instead of losing writes; records under
// different keys never contend.
type RecordStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRecordStore(client *redis.Client, ttl time.Duration) *RecordStore {
	return &RecordStore{client: client, ttl: ttl}
}

func (s *RecordStore) Get(ctx context.Context, learnerID, assignmentID string) (*domain.ScoreRecord, error) {
	data, err := s.client.Get(ctx, s.key(learnerID, assignmentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return decodeRecord(data)
}

func (s *RecordStore) Save(ctx context.Context, rec *domain.ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.LearnerID, rec.AssignmentID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *RecordStore) Update(ctx context.Context, learnerID, assignmentID string, fn func(*domain.ScoreRecord) error) (*domain.ScoreRecord, error) {
	key := s.key(learnerID, assignmentID)

	var updated *domain.ScoreRecord
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}

		next, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = rec
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // another submission won the race; re-read and retry
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update record %s/%s: %w", learnerID, assignmentID, redis.TxFailedErr)
}

func (s *RecordStore) key(learnerID, assignmentID string) string {
	return "practice:record:" + learnerID + ":" + assignmentID
}

func decodeRecord(data []byte) (*domain.ScoreRecord, error) {
	var rec domain.ScoreRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}
