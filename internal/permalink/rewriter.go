package permalink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/taxonomy"
)

type RouteKind int

const (
	RouteNone RouteKind = iota
	RouteArchive
	RouteItem
)

// Route is a parsed pretty URL.
type Route struct {
	Kind        RouteKind
	Type        domain.ContentType
	ItemID      int64
	Category    *domain.Term
	Subcategory *domain.Term
}

// Context is the boundary an archive route imposes on its listing.
func (r *Route) Context() domain.ContextBoundary {
	return domain.ContextBoundary{Category: slugOf(r.Category), Subcategory: slugOf(r.Subcategory)}
}

// Rewriter maintains the per-item rule table and resolves request paths
// against it.
type Rewriter struct {
	links   *Permalinks
	items   repository.ItemReader
	terms   repository.TermReader
	rules   RuleStore
	ceiling int
}

func NewRewriter(links *Permalinks, items repository.ItemReader, terms repository.TermReader, rules RuleStore, ceiling int) *Rewriter {
	return &Rewriter{
		links:   links,
		items:   items,
		terms:   terms,
		rules:   rules,
		ceiling: ceiling,
	}
}

// Regenerate rebuilds the rule of one item; unpublished or missing items lose
// their rule.
func (r *Rewriter) Regenerate(ctx context.Context, itemID int64) error {
	item, err := r.items.ItemByID(ctx, itemID)
	if errors.Is(err, repository.ErrItemNotFound) || (err == nil && item.Status != domain.StatusPublish) {
		log.WithField("item_id", itemID).Debug("Removing rewrite rule of unpublished item")
		return r.rules.Remove(ctx, itemID)
	}
	if err != nil {
		return fmt.Errorf("failed to load item %d: %w", itemID, err)
	}
	if _, err := taxonomy.For(item.Type); err != nil {
		return nil
	}

	path, err := r.links.Build(ctx, item)
	if err != nil {
		return err
	}
	if err := r.rules.Put(ctx, path, itemID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"item_id": itemID, "path": path}).Debug("Rewrite rule regenerated")
	return nil
}

// RegenerateTerm rebuilds the rules of every item under a category term and
// its descendants. A zero termID or an empty taxonomy rebuilds whole types.
func (r *Rewriter) RegenerateTerm(ctx context.Context, tax string, termID int64) (int, error) {
	if tax == "" {
		total := 0
		for _, ct := range domain.ContentTypes {
			n, err := r.RebuildType(ctx, ct)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	}

	ct, ok := taxonomy.ContentTypeForTaxonomy(tax)
	if !ok {
		return 0, nil
	}
	mapping, err := taxonomy.For(ct)
	if err != nil || mapping.CategoryTaxonomy != tax {
		// only category terms appear in URLs
		return 0, nil
	}
	if termID == 0 {
		return r.RebuildType(ctx, ct)
	}

	termIDs := []int64{termID}
	level := []int64{termID}
	for depth := 0; depth < 8 && len(level) > 0; depth++ {
		next := make([]int64, 0)
		for _, id := range level {
			children, err := r.terms.Children(ctx, tax, id)
			if err != nil {
				return 0, err
			}
			for _, c := range children {
				next = append(next, c.ID)
			}
		}
		termIDs = append(termIDs, next...)
		level = next
	}

	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, id := range termIDs {
		inTerm, err := r.items.PublishedIDsInTerm(ctx, ct, tax, id)
		if err != nil {
			return 0, err
		}
		for _, itemID := range inTerm {
			if _, dup := seen[itemID]; !dup {
				seen[itemID] = struct{}{}
				ids = append(ids, itemID)
			}
		}
	}
	return r.regenerateAll(ctx, ids)
}

// RebuildType regenerates the rule of every published item of ct.
func (r *Rewriter) RebuildType(ctx context.Context, ct domain.ContentType) (int, error) {
	ids, err := r.items.AllPublishedIDs(ctx, ct, r.ceiling)
	if err != nil {
		return 0, err
	}
	if len(ids) >= r.ceiling {
		log.WithFields(log.Fields{"content_type": ct, "ceiling": r.ceiling}).Warn("⚠️ Rewrite rebuild hit the item ceiling")
	}
	return r.regenerateAll(ctx, ids)
}

func (r *Rewriter) regenerateAll(ctx context.Context, ids []int64) (int, error) {
	done := 0
	var errs []error
	for _, id := range ids {
		if err := r.Regenerate(ctx, id); err != nil {
			log.WithField("item_id", id).Errorf("❌ Failed to regenerate rewrite rule: %v", err)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// Resolve matches a request path: the exact per-item rule first, then
// category archives, then an item whose canonical URL is exactly the path.
func (r *Rewriter) Resolve(ctx context.Context, rawPath string) (*Route, error) {
	path := Normalize(rawPath)
	segments := strings.Split(strings.Trim(path, "/"), "/")
	none := &Route{Kind: RouteNone}
	if len(segments) == 0 || segments[0] == "" {
		return none, nil
	}

	ct, ok := domain.ParseContentType(segments[0])
	if !ok || ct.URLBase() != segments[0] {
		return none, nil
	}

	if id, found, err := r.rules.Lookup(ctx, path); err != nil {
		log.Warnf("⚠️ Rewrite rule lookup failed for %s: %v", path, err)
	} else if found {
		return &Route{Kind: RouteItem, Type: ct, ItemID: id}, nil
	}

	if route := r.archive(ctx, ct, segments[1:]); route != nil {
		return route, nil
	}

	if len(segments) < 2 || len(segments) > 4 {
		return none, nil
	}
	item, err := r.items.ItemBySlug(ctx, ct, segments[len(segments)-1])
	if errors.Is(err, repository.ErrItemNotFound) {
		return none, nil
	}
	if err != nil {
		return nil, err
	}
	canonical, err := r.links.Build(ctx, item)
	if err != nil || canonical != path {
		return none, nil
	}
	if err := r.rules.Put(ctx, path, item.ID); err != nil {
		log.WithField("item_id", item.ID).Warnf("⚠️ Failed to store rewrite rule: %v", err)
	}
	return &Route{Kind: RouteItem, Type: ct, ItemID: item.ID}, nil
}

func (r *Rewriter) archive(ctx context.Context, ct domain.ContentType, segments []string) *Route {
	route := &Route{Kind: RouteArchive, Type: ct}
	if len(segments) == 0 {
		return route
	}
	if len(segments) > 2 {
		return nil
	}
	mapping, err := taxonomy.For(ct)
	if err != nil {
		return nil
	}

	category, err := r.terms.TermBySlug(ctx, mapping.CategoryTaxonomy, segments[0])
	if err != nil || !category.IsTopLevel() {
		return nil
	}
	route.Category = category
	if len(segments) == 1 {
		return route
	}

	sub, err := r.terms.TermBySlug(ctx, mapping.CategoryTaxonomy, segments[1])
	if err != nil || sub.ParentID != category.ID {
		return nil
	}
	route.Subcategory = sub
	return route
}
