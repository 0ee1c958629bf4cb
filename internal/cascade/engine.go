package cascade

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/filters"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/taxonomy"
)

// Result is the narrowed facet set for one request, with the item ids it was
// computed from.
type Result struct {
	Resolved  *filters.Resolved
	Options   *domain.FilterOptions
	ItemIDs   []int64
	Source    domain.ResultSource
	Truncated bool
}

// Engine computes which facet terms are still attached to at least one
// published item inside {context ∩ current filters}.
type Engine struct {
	resolver *filters.Resolver
	finder   *filters.Finder
	terms    repository.TermReader
}

func NewEngine(resolver *filters.Resolver, finder *filters.Finder, terms repository.TermReader) *Engine {
	return &Engine{
		resolver: resolver,
		finder:   finder,
		terms:    terms,
	}
}

// Options resolves sel and computes its facet options. The only error is a
// configuration error (unknown content type or context boundary).
func (e *Engine) Options(ctx context.Context, ct domain.ContentType, sel domain.Selection) (*Result, error) {
	res, err := e.resolver.Resolve(ctx, ct, sel)
	if err != nil {
		return nil, err
	}
	return e.OptionsFor(ctx, res), nil
}

// OptionsFor computes facet options for an already resolved selection.
func (e *Engine) OptionsFor(ctx context.Context, res *filters.Resolved) *Result {
	found := e.finder.Find(ctx, res)

	result := &Result{
		Resolved:  res,
		Options:   domain.NewFilterOptions(),
		ItemIDs:   found.IDs,
		Source:    found.Source,
		Truncated: found.Truncated,
	}

	for _, facet := range res.Mapping.Facets {
		if !e.faceted(res, facet) {
			continue
		}
		result.Options.Set(facet.Key, e.facetOptions(ctx, res, facet, found.IDs))
	}

	log.WithFields(log.Fields{
		"content_type": res.Type,
		"items":        len(found.IDs),
		"source":       found.Source,
		"facets":       len(result.Options.Keys),
	}).Debug("🔎 Cascading options computed")
	return result
}

// faceted decides whether a facet is offered at all.
func (e *Engine) faceted(res *filters.Resolved, facet taxonomy.Facet) bool {
	m := res.Mapping
	switch {
	case m.CategoryKey != "" && facet.Key == m.CategoryKey:
		// top-level category goes through display-mode switching
		return false
	case m.CategoryKey == "" && facet.Taxonomy == m.CategoryTaxonomy && res.HasContext():
		return false
	case m.SubcategoryKey != "" && facet.Key == m.SubcategoryKey && res.ContextLeaf:
		return false
	}
	return true
}

func (e *Engine) facetOptions(ctx context.Context, res *filters.Resolved, facet taxonomy.Facet, ids []int64) []domain.Term {
	logger := log.WithFields(log.Fields{
		"content_type": res.Type,
		"filter_key":   facet.Key,
		"taxonomy":     facet.Taxonomy,
	})

	terms, err := e.terms.TermsForItems(ctx, facet.Taxonomy, ids)
	if err != nil {
		logger.Errorf("❌ Failed to collect facet options, offering none: %v", err)
		terms = []domain.Term{}
	}

	if m := res.Mapping; m.SubcategoryKey != "" && facet.Key == m.SubcategoryKey {
		terms = subcategories(terms, subcategoryParent(res))
	}

	if selected, ok := res.Selected[facet.Key]; ok {
		terms = append(terms, selected)
	}

	terms = domain.DedupeTerms(terms)
	SortTerms(terms)
	return terms
}

// subcategoryParent is the term whose children the subcategory facet lists.
func subcategoryParent(res *filters.Resolved) *domain.Term {
	if t := res.ContextTerm(); t != nil {
		return t
	}
	if t, ok := res.Selected[res.Mapping.CategoryKey]; ok {
		return &t
	}
	return nil
}

// subcategories keeps the direct children of parent, or every non top-level
// term when there is no parent.
func subcategories(terms []domain.Term, parent *domain.Term) []domain.Term {
	out := make([]domain.Term, 0, len(terms))
	for _, t := range terms {
		if parent != nil && t.ParentID != parent.ID {
			continue
		}
		if parent == nil && t.IsTopLevel() {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SortTerms orders by display order, then name.
func SortTerms(terms []domain.Term) {
	sort.SliceStable(terms, func(i, j int) bool {
		if a, b := terms[i].SortOrder(), terms[j].SortOrder(); a != b {
			return a < b
		}
		return terms[i].Name < terms[j].Name
	})
}
