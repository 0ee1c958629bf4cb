package display

import (
	"context"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/cascade"
	"handy/catalog/internal/domain"
	"handy/catalog/internal/filters"
	"handy/catalog/internal/repository"
)

// Requested display values after sanitising.
const (
	RequestList       = "list"
	RequestCategories = "categories"
)

// Decision is the display state for one request. It is never persisted.
type Decision struct {
	Mode domain.DisplayMode
	// Target is the category whose children are shown as cards, nil at the
	// top of the hierarchy.
	Target   *domain.Term
	Children []domain.Term
}

type Resolver struct {
	terms repository.TermReader
}

func NewResolver(terms repository.TermReader) *Resolver {
	return &Resolver{terms: terms}
}

// Resolve starts in CATEGORY_CARDS when no category is given or the category
// has children and switches to PRODUCT_LIST for a leaf, an explicit "list"
// request, user filters, or a type without category cards.
func (r *Resolver) Resolve(ctx context.Context, res *filters.Resolved, requested string) *Decision {
	list := &Decision{Mode: domain.DisplayProductList, Target: res.ContextTerm(), Children: []domain.Term{}}

	switch {
	case !res.Mapping.CategoryCards:
		return list
	case requested == RequestList:
		return list
	case res.UserConstraints > 0 && requested != RequestCategories:
		return list
	}

	target := res.ContextTerm()
	var (
		children []domain.Term
		err      error
	)
	if target == nil {
		children, err = r.terms.TopLevel(ctx, res.Mapping.CategoryTaxonomy)
	} else {
		children, err = r.terms.Children(ctx, res.Mapping.CategoryTaxonomy, target.ID)
	}
	if err != nil {
		log.WithField("content_type", res.Type).Warnf("⚠️ Could not list child categories, showing items instead: %v", err)
		return list
	}
	if len(children) == 0 {
		return list
	}

	cascade.SortTerms(children)
	return &Decision{Mode: domain.DisplayCategoryCards, Target: target, Children: children}
}
