package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/invalidation"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/state"
)

// termEntry also records misses so repeated slug-variant probes stay cheap.
type termEntry struct {
	Found bool          `json:"found"`
	Terms []domain.Term `json:"terms"`
}

// TermCache memoises taxonomy lookups in front of a repository.TermReader.
// TermsForItems depends on an item id set and is passed through.
type TermCache struct {
	next  repository.TermReader
	store Store
	state state.StateManager
	ttl   time.Duration
}

func NewTermCache(next repository.TermReader, store Store, st state.StateManager, ttl time.Duration) *TermCache {
	return &TermCache{next: next, store: store, state: st, ttl: ttl}
}

func (c *TermCache) TermBySlug(ctx context.Context, taxonomy, slug string) (*domain.Term, error) {
	return c.single(ctx, "slug:"+taxonomy+":"+slug, func() (*domain.Term, error) {
		return c.next.TermBySlug(ctx, taxonomy, slug)
	})
}

func (c *TermCache) TermByName(ctx context.Context, taxonomy, name string) (*domain.Term, error) {
	return c.single(ctx, "name:"+taxonomy+":"+strings.ToLower(name), func() (*domain.Term, error) {
		return c.next.TermByName(ctx, taxonomy, name)
	})
}

func (c *TermCache) TermByID(ctx context.Context, taxonomy string, id int64) (*domain.Term, error) {
	return c.single(ctx, fmt.Sprintf("id:%s:%d", taxonomy, id), func() (*domain.Term, error) {
		return c.next.TermByID(ctx, taxonomy, id)
	})
}

func (c *TermCache) Children(ctx context.Context, taxonomy string, parentID int64) ([]domain.Term, error) {
	key, ok := c.key(ctx, fmt.Sprintf("children:%s:%d", taxonomy, parentID))
	if ok {
		if e, hit := c.load(ctx, key); hit {
			return e.Terms, nil
		}
	}
	terms, err := c.next.Children(ctx, taxonomy, parentID)
	if err != nil {
		return nil, err
	}
	if ok {
		c.save(ctx, key, termEntry{Found: true, Terms: terms})
	}
	return terms, nil
}

func (c *TermCache) HasChildren(ctx context.Context, taxonomy string, termID int64) (bool, error) {
	children, err := c.Children(ctx, taxonomy, termID)
	if err != nil {
		return false, err
	}
	return len(children) > 0, nil
}

func (c *TermCache) TopLevel(ctx context.Context, taxonomy string) ([]domain.Term, error) {
	return c.Children(ctx, taxonomy, 0)
}

func (c *TermCache) TermsForItems(ctx context.Context, taxonomy string, itemIDs []int64) ([]domain.Term, error) {
	return c.next.TermsForItems(ctx, taxonomy, itemIDs)
}

// Invalidate bumps the terms generation.
func (c *TermCache) Invalidate(ctx context.Context, scope invalidation.Scope, ev invalidation.Event) error {
	gen, err := c.state.Bump(ctx, string(scope))
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"scope": scope, "event": ev.Type, "generation": gen}).Debug("Term cache invalidated")
	return nil
}

func (c *TermCache) single(ctx context.Context, suffix string, fetch func() (*domain.Term, error)) (*domain.Term, error) {
	key, ok := c.key(ctx, suffix)
	if ok {
		if e, hit := c.load(ctx, key); hit {
			if !e.Found || len(e.Terms) == 0 {
				return nil, fmt.Errorf("%w: %s (cached)", repository.ErrTermNotFound, suffix)
			}
			t := e.Terms[0]
			return &t, nil
		}
	}

	term, err := fetch()
	if err != nil {
		if ok && errors.Is(err, repository.ErrTermNotFound) {
			c.save(ctx, key, termEntry{Found: false})
		}
		return nil, err
	}
	if ok {
		c.save(ctx, key, termEntry{Found: true, Terms: []domain.Term{*term}})
	}
	return term, nil
}

// key returns false when the generation cannot be read; callers then bypass
// the cache.
func (c *TermCache) key(ctx context.Context, suffix string) (string, bool) {
	gen, err := c.state.Generation(ctx, string(invalidation.ScopeTerms))
	if err != nil {
		log.Warnf("⚠️ Term cache generation unavailable: %v", err)
		return "", false
	}
	return fmt.Sprintf("terms:%d:%s", gen, suffix), true
}

func (c *TermCache) load(ctx context.Context, key string) (termEntry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warnf("⚠️ Term cache read failed: %v", err)
		return termEntry{}, false
	}
	if !ok {
		return termEntry{}, false
	}
	var e termEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.WithField("key", key).Warnf("⚠️ Discarding malformed term cache entry: %v", err)
		_ = c.store.Delete(ctx, key)
		return termEntry{}, false
	}
	return e, true
}

func (c *TermCache) save(ctx context.Context, key string, e termEntry) {
	raw, err := json.Marshal(e)
	if err != nil {
		log.Errorf("❌ Failed to encode term cache entry: %v", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		log.Warnf("⚠️ Term cache write failed: %v", err)
	}
}
