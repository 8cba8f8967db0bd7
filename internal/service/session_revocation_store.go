package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRevocationStore guarda jti de sesiones cerradas hasta su vencimiento.
type SessionRevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type memoryRevocationStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func NewMemoryRevocationStore() SessionRevocationStore {
	return &memoryRevocationStore{
		items: make(map[string]time.Time),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryRevocationStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(jti) == "" || ttl <= 0 {
		return nil
	}
	now := s.now()
	for id, exp := range s.items {
		if !exp.After(now) {
			delete(s.items, id)
		}
	}
	s.items[jti] = now.Add(ttl)
	return nil
}

func (s *memoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.items, jti)
		return false, nil
	}
	return true, nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisRevocationStore struct {
	client redisKVClient
	prefix string
}

func NewRedisRevocationStore(client *redis.Client) SessionRevocationStore {
	if client == nil {
		return nil
	}
	return &redisRevocationStore{
		client: client,
		prefix: "auth:revoked:",
	}
}

func (s *redisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+jti, 1, ttl).Err()
}

func (s *redisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
