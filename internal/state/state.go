package state

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateManager keeps the version markers that invalidate cached data and the
// short-lived guards that coalesce deferred work.
type StateManager interface {
	Generation(ctx context.Context, scope string) (int64, error)
	Bump(ctx context.Context, scope string) (int64, error)
	// Acquire returns true when key was not held; it is then held for ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStateManager(redisClient *redis.Client, prefix string) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   prefix + "state:",
	}
}

func (s *redisStateManager) Generation(ctx context.Context, scope string) (int64, error) {
	key := s.keyPrefix + "gen:" + scope
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil // never bumped
		}
		return 0, fmt.Errorf("failed to get generation for scope %s: %w", scope, err)
	}

	gen, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse generation for scope %s: %w", scope, err)
	}

	return gen, nil
}

func (s *redisStateManager) Bump(ctx context.Context, scope string) (int64, error) {
	key := s.keyPrefix + "gen:" + scope
	gen, err := s.redisClient.Incr(ctx, key).Result() // No expiration
	if err != nil {
		return 0, fmt.Errorf("failed to bump generation for scope %s: %w", scope, err)
	}
	return gen, nil
}

func (s *redisStateManager) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.redisClient.SetNX(ctx, s.keyPrefix+"lock:"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire %s: %w", key, err)
	}
	return ok, nil
}

func (s *redisStateManager) Release(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, s.keyPrefix+"lock:"+key).Err(); err != nil {
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	return nil
}

type memoryStateManager struct {
	mu          sync.Mutex
	generations map[string]int64
	locks       map[string]time.Time
	now         func() time.Time
}

// NewMemoryStateManager is the single-process implementation used with the
// memory cache driver and in tests.
func NewMemoryStateManager() StateManager {
	return &memoryStateManager{
		generations: make(map[string]int64),
		locks:       make(map[string]time.Time),
		now:         time.Now,
	}
}

func (s *memoryStateManager) Generation(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[scope], nil
}

func (s *memoryStateManager) Bump(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[scope]++
	return s.generations[scope], nil
}

func (s *memoryStateManager) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, ok := s.locks[key]; ok && s.now().Before(until) {
		return false, nil
	}
	s.locks[key] = s.now().Add(ttl)
	return true, nil
}

func (s *memoryStateManager) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}
