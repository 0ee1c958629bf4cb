package filters

import (
	"context"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository"
)

// Found is an item id set and the path that produced it.
type Found struct {
	IDs       []int64
	Source    domain.ResultSource
	Truncated bool
	// Failed is set when a query behind this set errored.
	Failed bool
}

// Finder runs the primary ORM query and, when it comes back empty, the raw
// join fallbacks. Both paths stay in place and disagreements are logged.
type Finder struct {
	items   repository.ItemQuerier
	ceiling int
}

func NewFinder(items repository.ItemQuerier, ceiling int) *Finder {
	return &Finder{items: items, ceiling: ceiling}
}

func (f *Finder) Ceiling() int {
	return f.ceiling
}

// Find never fails: query errors are logged and end in an empty set.
func (f *Finder) Find(ctx context.Context, res *Resolved) *Found {
	q := repository.ItemQuery{Type: res.Type, Constraints: res.Constraints, Limit: f.ceiling}

	ids, err := f.items.QueryItemIDs(ctx, q)
	if err != nil {
		log.WithField("content_type", res.Type).Errorf("❌ Primary item query failed: %v", err)
		found := f.Fallback(ctx, res)
		found.Failed = true
		return found
	}
	if len(ids) > 0 {
		found := &Found{IDs: ids, Source: domain.SourcePrimary}
		if len(ids) >= f.ceiling {
			found.Truncated = true
			log.WithFields(log.Fields{"content_type": res.Type, "ceiling": f.ceiling}).
				Warn("⚠️ Item query hit the result ceiling, facet options are computed from a truncated set")
		}
		return found
	}

	return f.Fallback(ctx, res)
}

// Fallback handles an empty primary result. A subcategory constraint goes to
// the raw join; a request with no user filters gets every published item
// inside its context through the same path.
func (f *Finder) Fallback(ctx context.Context, res *Resolved) *Found {
	empty := &Found{IDs: []int64{}, Source: domain.SourcePrimary}
	logger := log.WithFields(log.Fields{
		"content_type": res.Type,
		"constraints":  len(res.Constraints),
	})

	var source domain.ResultSource
	q := repository.ItemQuery{Type: res.Type, Limit: f.ceiling}
	switch {
	case res.HasSubcategoryConstraint:
		source = domain.SourceRawJoin
		q.Constraints = res.Constraints
	case res.UserConstraints == 0:
		// context constraints still apply; without them this is every item
		q.Constraints = res.Constraints
		source = domain.SourceRawJoin
		if len(q.Constraints) == 0 {
			source = domain.SourceAllPublished
		}
	default:
		return empty
	}

	ids, err := f.items.JoinItemIDs(ctx, q)
	if err != nil {
		logger.Errorf("❌ Raw join fallback failed: %v", err)
		empty.Failed = true
		return empty
	}
	if len(ids) == 0 {
		return empty
	}

	logger.WithFields(log.Fields{"source": source, "found": len(ids)}).
		Warn("⚠️ Primary query returned nothing but the raw join found items")
	found := &Found{IDs: ids, Source: source}
	if len(ids) >= f.ceiling {
		found.Truncated = true
		logger.WithField("ceiling", f.ceiling).Warn("⚠️ Raw join hit the result ceiling")
	}
	return found
}
