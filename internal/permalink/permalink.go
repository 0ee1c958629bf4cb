package permalink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/client"
	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/taxonomy"
)

var ErrNoCategory = errors.New("item has no category")

// Permalinks builds canonical item URLs from the primary category chain.
type Permalinks struct {
	terms repository.TermReader
	meta  repository.MetaStore
	seo   client.SEOClient
}

// New returns a Permalinks; seo may be nil when no SEO plugin is consulted.
func New(terms repository.TermReader, meta repository.MetaStore, seo client.SEOClient) *Permalinks {
	return &Permalinks{terms: terms, meta: meta, seo: seo}
}

// PrimaryCategory resolves the item's main category: the SEO plugin's primary
// term, then the stored primary meta, then the first top-level assigned term,
// then the first assigned term. Only assigned terms are accepted.
func (p *Permalinks) PrimaryCategory(ctx context.Context, item *domain.Item) (*domain.Term, error) {
	mapping, err := taxonomy.For(item.Type)
	if err != nil {
		return nil, err
	}
	tax := mapping.CategoryTaxonomy
	assigned := item.TermsIn(tax)
	if len(assigned) == 0 {
		return nil, fmt.Errorf("%w: %s %d", ErrNoCategory, item.Type, item.ID)
	}
	byID := make(map[int64]domain.Term, len(assigned))
	for _, t := range assigned {
		byID[t.ID] = t
	}
	logger := log.WithFields(log.Fields{"item_id": item.ID, "taxonomy": tax})
	metaKey := domain.MetaPrimaryPrefix + tax

	if p.seo != nil {
		id, ok, err := p.seo.PrimaryTerm(ctx, item.ID, tax)
		switch {
		case err != nil:
			logger.Warnf("⚠️ SEO primary term unavailable, using stored meta: %v", err)
		case ok:
			if t, found := byID[id]; found {
				p.remember(ctx, item.ID, metaKey, id)
				return &t, nil
			}
			logger.WithField("term_id", id).Warn("⚠️ SEO primary term is not assigned to the item, ignoring it")
		}
	}

	if raw, ok, err := p.meta.PostMeta(ctx, item.ID, metaKey); err != nil {
		logger.Warnf("⚠️ Could not read primary category meta: %v", err)
	} else if ok {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			if t, found := byID[id]; found {
				return &t, nil
			}
		}
		logger.WithField("value", raw).Debug("Stored primary category is not assigned, falling back")
	}

	for _, t := range assigned {
		if t.IsTopLevel() {
			return &t, nil
		}
	}
	return &assigned[0], nil
}

// remember stores the SEO answer so URLs stay stable while the CMS API is down.
func (p *Permalinks) remember(ctx context.Context, itemID int64, key string, termID int64) {
	value := strconv.FormatInt(termID, 10)
	if current, ok, err := p.meta.PostMeta(ctx, itemID, key); err == nil && ok && current == value {
		return
	}
	if err := p.meta.SetPostMeta(ctx, itemID, key, value); err != nil {
		log.WithField("item_id", itemID).Warnf("⚠️ Failed to store primary category: %v", err)
	}
}

// Chain returns the category and optional subcategory an item's URL and
// breadcrumbs go through. Both are nil for an uncategorised item.
func (p *Permalinks) Chain(ctx context.Context, item *domain.Item) (category, subcategory *domain.Term, err error) {
	primary, err := p.PrimaryCategory(ctx, item)
	if errors.Is(err, ErrNoCategory) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if primary.IsTopLevel() {
		for _, t := range item.TermsIn(primary.Taxonomy) {
			if t.ParentID == primary.ID {
				sub := t
				return primary, &sub, nil
			}
		}
		return primary, nil, nil
	}

	parent, err := p.terms.TermByID(ctx, primary.Taxonomy, primary.ParentID)
	if err != nil {
		log.WithField("item_id", item.ID).Warnf("⚠️ Parent of primary category %s not found: %v", primary.Slug, err)
		return primary, nil, nil
	}
	return parent, primary, nil
}

// Build returns /{type}/{category}/[{subcategory}/]{slug}/.
func (p *Permalinks) Build(ctx context.Context, item *domain.Item) (string, error) {
	base := item.Type.URLBase()
	if base == "" {
		return "", fmt.Errorf("%w: %q", taxonomy.ErrUnknownContentType, item.Type)
	}
	category, subcategory, err := p.Chain(ctx, item)
	if err != nil {
		return "", fmt.Errorf("failed to resolve primary category of %d: %w", item.ID, err)
	}
	return joinPath(base, slugOf(category), slugOf(subcategory), item.Slug), nil
}

// ArchiveURL is the pretty URL of a category listing.
func ArchiveURL(ct domain.ContentType, category, subcategory *domain.Term) string {
	return joinPath(ct.URLBase(), slugOf(category), slugOf(subcategory))
}

func slugOf(t *domain.Term) string {
	if t == nil {
		return ""
	}
	return t.Slug
}

func joinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/") + "/"
}

// Normalize trims the query string and duplicate slashes and adds the
// trailing slash.
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return joinPath(strings.Split(path, "/")...)
}
