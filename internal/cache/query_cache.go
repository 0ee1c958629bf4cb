package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/invalidation"
	"handy/catalog/internal/state"
)

var ErrMalformedCacheEntry = errors.New("malformed cache entry")

// Fingerprint hashes the sorted query parameters into a stable cache key.
func Fingerprint(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// QueryCache is a read-through cache of query results. Entries are keyed under
// the current queries generation, so a bump hides every older entry at once.
type QueryCache struct {
	store Store
	state state.StateManager
	ttl   time.Duration
}

func NewQueryCache(store Store, st state.StateManager, ttl time.Duration) *QueryCache {
	return &QueryCache{store: store, state: st, ttl: ttl}
}

func (c *QueryCache) key(ctx context.Context, fingerprint string) (string, error) {
	gen, err := c.state.Generation(ctx, string(invalidation.ScopeQueries))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("query:%d:%s", gen, fingerprint), nil
}

// Get never fails: every problem is logged and reported as a miss.
func (c *QueryCache) Get(ctx context.Context, fingerprint string) (*domain.CachedQueryResult, bool) {
	key, err := c.key(ctx, fingerprint)
	if err != nil {
		log.Warnf("⚠️ Query cache generation unavailable: %v", err)
		return nil, false
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warnf("⚠️ Query cache read failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var result domain.CachedQueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		err = fmt.Errorf("%w: %v", ErrMalformedCacheEntry, err)
		c.discard(ctx, key, err)
		return nil, false
	}
	if err := validate(&result, fingerprint); err != nil {
		c.discard(ctx, key, err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) discard(ctx context.Context, key string, reason error) {
	log.WithField("key", key).Warnf("⚠️ Discarding cached query result: %v", reason)
	if err := c.store.Delete(ctx, key); err != nil {
		log.Warnf("⚠️ Failed to delete malformed cache entry: %v", err)
	}
}

func (c *QueryCache) Put(ctx context.Context, result *domain.CachedQueryResult) {
	key, err := c.key(ctx, result.Fingerprint)
	if err != nil {
		log.Warnf("⚠️ Query cache generation unavailable: %v", err)
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		log.Errorf("❌ Failed to encode query result: %v", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		log.Warnf("⚠️ Query cache write failed: %v", err)
	}
}

// Invalidate bumps the queries generation.
func (c *QueryCache) Invalidate(ctx context.Context, scope invalidation.Scope, ev invalidation.Event) error {
	gen, err := c.state.Bump(ctx, string(scope))
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"scope": scope, "event": ev.Type, "generation": gen}).Debug("Query cache invalidated")
	return nil
}

func validate(r *domain.CachedQueryResult, fingerprint string) error {
	switch {
	case r.Fingerprint != fingerprint:
		return fmt.Errorf("%w: fingerprint mismatch", ErrMalformedCacheEntry)
	case r.ItemIDs == nil:
		return fmt.Errorf("%w: missing item ids", ErrMalformedCacheEntry)
	case r.Pagination.Page < 1 || r.Pagination.PerPage < 1:
		return fmt.Errorf("%w: bad pagination %+v", ErrMalformedCacheEntry, r.Pagination)
	case len(r.ItemIDs) > r.Pagination.PerPage:
		return fmt.Errorf("%w: %d ids for page size %d", ErrMalformedCacheEntry, len(r.ItemIDs), r.Pagination.PerPage)
	case r.Pagination.Total < len(r.ItemIDs):
		return fmt.Errorf("%w: total below page length", ErrMalformedCacheEntry)
	case r.CachedAt.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrMalformedCacheEntry)
	}
	return nil
}
