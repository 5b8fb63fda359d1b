package status

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StateStore persists the surface identifier between process runs. An empty
// identifier means no surface is active yet.
type StateStore interface {
	SurfaceID(ctx context.Context) (string, error)
	SetSurfaceID(ctx context.Context, id string) error
	ClearSurfaceID(ctx context.Context) error
}

const surfaceIDKey = "warden:status:surface_id"

type RedisStore struct {
	client *redis.Client
}

var _ StateStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SurfaceID(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, surfaceIDKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("reading surface id: %w", err)
	}
	return id, nil
}

func (s *RedisStore) SetSurfaceID(ctx context.Context, id string) error {
	if err := s.client.Set(ctx, surfaceIDKey, id, 0).Err(); err != nil {
		return fmt.Errorf("persisting surface id: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearSurfaceID(ctx context.Context) error {
	if err := s.client.Del(ctx, surfaceIDKey).Err(); err != nil {
		return fmt.Errorf("clearing surface id: %w", err)
	}
	return nil
}

// MemoryStore is an in-process StateStore for tests and local development.
type MemoryStore struct {
	mu sync.Mutex
	id string
}

var _ StateStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SurfaceID(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *MemoryStore) SetSurfaceID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

func (s *MemoryStore) ClearSurfaceID(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	return nil
}
