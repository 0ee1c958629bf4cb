package permalink

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RuleStore is the per-item rewrite table: one exact path per published item.
type RuleStore interface {
	Put(ctx context.Context, path string, itemID int64) error
	Remove(ctx context.Context, itemID int64) error
	Lookup(ctx context.Context, path string) (int64, bool, error)
	PathOf(ctx context.Context, itemID int64) (string, bool, error)
}

type redisRuleStore struct {
	redisClient *redis.Client
	pathsKey    string
	itemsKey    string
}

// NewRedisRuleStore keeps path → item and item → path in two hashes.
func NewRedisRuleStore(redisClient *redis.Client, prefix string) RuleStore {
	return &redisRuleStore{
		redisClient: redisClient,
		pathsKey:    prefix + "rewrite:paths",
		itemsKey:    prefix + "rewrite:items",
	}
}

func (s *redisRuleStore) Put(ctx context.Context, path string, itemID int64) error {
	id := strconv.FormatInt(itemID, 10)
	old, _, err := s.PathOf(ctx, itemID)
	if err != nil {
		return err
	}

	_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if old != "" && old != path {
			pipe.HDel(ctx, s.pathsKey, old)
		}
		pipe.HSet(ctx, s.pathsKey, path, id)
		pipe.HSet(ctx, s.itemsKey, id, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store rewrite rule %s: %w", path, err)
	}
	return nil
}

func (s *redisRuleStore) Remove(ctx context.Context, itemID int64) error {
	old, ok, err := s.PathOf(ctx, itemID)
	if err != nil || !ok {
		return err
	}
	_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.pathsKey, old)
		pipe.HDel(ctx, s.itemsKey, strconv.FormatInt(itemID, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove rewrite rule for %d: %w", itemID, err)
	}
	return nil
}

func (s *redisRuleStore) Lookup(ctx context.Context, path string) (int64, bool, error) {
	val, err := s.redisClient.HGet(ctx, s.pathsKey, path).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to look up rewrite rule %s: %w", path, err)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed rewrite rule %s: %w", path, err)
	}
	return id, true, nil
}

func (s *redisRuleStore) PathOf(ctx context.Context, itemID int64) (string, bool, error) {
	val, err := s.redisClient.HGet(ctx, s.itemsKey, strconv.FormatInt(itemID, 10)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read rewrite rule of %d: %w", itemID, err)
	}
	return val, true, nil
}

type MemoryRuleStore struct {
	mu    sync.RWMutex
	paths map[string]int64
	items map[int64]string
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{
		paths: make(map[string]int64),
		items: make(map[int64]string),
	}
}

func (s *MemoryRuleStore) Put(_ context.Context, path string, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.items[itemID]; ok && old != path {
		delete(s.paths, old)
	}
	s.paths[path] = itemID
	s.items[itemID] = path
	return nil
}

func (s *MemoryRuleStore) Remove(_ context.Context, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.items[itemID]; ok {
		delete(s.paths, old)
		delete(s.items, itemID)
	}
	return nil
}

func (s *MemoryRuleStore) Lookup(_ context.Context, path string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.paths[path]
	return id, ok, nil
}

func (s *MemoryRuleStore) PathOf(_ context.Context, itemID int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.items[itemID]
	return path, ok, nil
}

func (s *MemoryRuleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}
