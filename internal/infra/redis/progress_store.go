package redis

import (
	"context"
	"errors"
	"time"

	"bibleschool-quiz-service/internal/app"
	"bibleschool-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps in-progress session snapshots in Redis so an attempt
// survives reconnects and service restarts. Keys look like
// quiz:progress:{studentID}:quiz_{quizID}_progress and expire after ttl of
// inactivity; every write refreshes the expiry.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

// ForStudent returns the key-value view of one student's saved sessions.
func (s *ProgressStore) ForStudent(studentID string) app.KeyValueStore {
	return &studentStore{store: s, prefix: "quiz:progress:" + studentID + ":"}
}

type studentStore struct {
	store  *ProgressStore
	prefix string
}

func (s *studentStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.store.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	return data, err
}

func (s *studentStore) Set(ctx context.Context, key string, value []byte) error {
	return s.store.client.Set(ctx, s.prefix+key, value, s.store.ttl).Err()
}

func (s *studentStore) Delete(ctx context.Context, key string) error {
	return s.store.client.Del(ctx, s.prefix+key).Err()
}
