package filters

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/cache"
	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository"
)

// QueryResult is one page of a filtered listing.
type QueryResult struct {
	Resolved  *Resolved
	ItemIDs   []int64
	Page      domain.PageMeta
	Source    domain.ResultSource
	FromCache bool
}

// Builder turns a Selection into an AND of taxonomy constraints plus the
// context boundary and pages through the matching items.
type Builder struct {
	resolver *Resolver
	items    repository.ItemQuerier
	finder   *Finder
	cache    *cache.QueryCache
	now      func() time.Time
}

func NewBuilder(resolver *Resolver, items repository.ItemQuerier, finder *Finder, qc *cache.QueryCache) *Builder {
	return &Builder{
		resolver: resolver,
		items:    items,
		finder:   finder,
		cache:    qc,
		now:      time.Now,
	}
}

func (b *Builder) Resolve(ctx context.Context, ct domain.ContentType, sel domain.Selection) (*Resolved, error) {
	return b.resolver.Resolve(ctx, ct, sel)
}

// Query returns one page of item ids, read through the query cache.
func (b *Builder) Query(ctx context.Context, ct domain.ContentType, sel domain.Selection) (*QueryResult, error) {
	res, err := b.resolver.Resolve(ctx, ct, sel)
	if err != nil {
		return nil, err
	}
	return b.QueryResolved(ctx, res, sel.Pagination)
}

func (b *Builder) QueryResolved(ctx context.Context, res *Resolved, p domain.Pagination) (*QueryResult, error) {
	if p.PerPage <= 0 {
		p.PerPage = 1
	}
	if p.Page < 1 {
		p.Page = 1
	}

	fingerprint := cache.Fingerprint(QueryParams(res, p))
	if b.cache != nil {
		if hit, ok := b.cache.Get(ctx, fingerprint); ok {
			return &QueryResult{
				Resolved:  res,
				ItemIDs:   hit.ItemIDs,
				Page:      hit.Pagination,
				Source:    hit.Source,
				FromCache: true,
			}, nil
		}
	}

	logger := log.WithField("content_type", res.Type)
	q := repository.ItemQuery{Type: res.Type, Constraints: res.Constraints}

	// a page built after a failed query is served but never cached
	failed := false
	total, err := b.items.CountItems(ctx, q)
	if err != nil {
		logger.Errorf("❌ Item count failed: %v", err)
		total = 0
		failed = true
	}

	ids := []int64{}
	source := domain.SourcePrimary
	if total > 0 {
		q.Limit = p.PerPage
		q.Offset = p.Offset()
		ids, err = b.items.QueryItemIDs(ctx, q)
		if err != nil {
			logger.Errorf("❌ Item page query failed: %v", err)
			ids = []int64{}
			failed = true
		}
	} else {
		found := b.finder.Fallback(ctx, res)
		total = len(found.IDs)
		source = found.Source
		ids = pageSlice(found.IDs, p)
		failed = failed || found.Failed
	}

	meta := domain.PageMeta{Total: total, Page: p.Page, PerPage: p.PerPage}
	if total > 0 {
		meta.Pages = (total + p.PerPage - 1) / p.PerPage
	}

	if b.cache != nil && !failed {
		b.cache.Put(ctx, &domain.CachedQueryResult{
			Fingerprint: fingerprint,
			ItemIDs:     ids,
			Pagination:  meta,
			Source:      source,
			CachedAt:    b.now(),
		})
	}

	return &QueryResult{Resolved: res, ItemIDs: ids, Page: meta, Source: source}, nil
}

func pageSlice(ids []int64, p domain.Pagination) []int64 {
	start := p.Offset()
	if start >= len(ids) {
		return []int64{}
	}
	end := min(start+p.PerPage, len(ids))
	return ids[start:end]
}

// QueryParams is the canonical form of a resolved query, so requests that
// differ only by dropped or unresolvable filters share a cache entry.
func QueryParams(res *Resolved, p domain.Pagination) map[string]string {
	params := map[string]string{
		"type":     res.Type.String(),
		"page":     strconv.Itoa(p.Page),
		"per_page": strconv.Itoa(p.PerPage),
	}
	for i, c := range res.Constraints {
		ids := make([]string, 0, len(c.TermIDs))
		for _, id := range c.TermIDs {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		sort.Strings(ids)
		params["c"+strconv.Itoa(i)+":"+c.Taxonomy] = strings.Join(ids, ",")
	}
	return params
}
