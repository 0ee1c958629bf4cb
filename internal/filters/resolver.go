package filters

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/taxonomy"
)

// ErrUnknownContext is returned when the caller-fixed boundary names a category
// that does not exist. That is a shortcode configuration error, not a user miss.
var ErrUnknownContext = errors.New("context boundary term not found")

var taxonomyName = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

const maxDepth = 8

// Resolved is a Selection validated against the taxonomy store.
type Resolved struct {
	Type     domain.ContentType
	Mapping  *taxonomy.Mapping
	Selected map[string]domain.Term

	Category    *domain.Term
	Subcategory *domain.Term
	// ContextLeaf is true when the innermost context term has no children.
	ContextLeaf bool

	Constraints []repository.Constraint
	// UserConstraints counts constraints coming from user filters.
	UserConstraints          int
	HasSubcategoryConstraint bool
}

func (r *Resolved) HasContext() bool {
	return r.Category != nil || r.Subcategory != nil
}

// ContextTerm is the innermost context term, or nil.
func (r *Resolved) ContextTerm() *domain.Term {
	if r.Subcategory != nil {
		return r.Subcategory
	}
	return r.Category
}

type Resolver struct {
	terms repository.TermReader
}

func NewResolver(terms repository.TermReader) *Resolver {
	return &Resolver{terms: terms}
}

// Resolve validates every filter value. Misses drop that filter; only a
// missing mapping or an unknown context boundary is an error.
func (r *Resolver) Resolve(ctx context.Context, ct domain.ContentType, sel domain.Selection) (*Resolved, error) {
	mapping, err := taxonomy.For(ct)
	if err != nil {
		return nil, err
	}

	res := &Resolved{
		Type:        ct,
		Mapping:     mapping,
		Selected:    make(map[string]domain.Term),
		Constraints: make([]repository.Constraint, 0),
	}

	if err := r.resolveContext(ctx, res, sel.Context); err != nil {
		return nil, err
	}

	for _, f := range sel.Filters {
		if f.Value == "" {
			continue
		}
		tax, ok := mapping.TaxonomyFor(f.Key)
		if !ok {
			log.WithFields(log.Fields{"content_type": ct, "filter_key": f.Key}).Warn("⚠️ Ignoring filter without taxonomy mapping")
			continue
		}
		term, err := r.Lookup(ctx, tax, f.Value)
		if err != nil {
			log.WithFields(log.Fields{"content_type": ct, "filter_key": f.Key, "value": f.Value}).
				Warnf("⚠️ Filter value not resolved, dropping constraint: %v", err)
			continue
		}
		res.Selected[f.Key] = *term
		res.Constraints = append(res.Constraints, r.constraint(ctx, *term, mapping))
		res.UserConstraints++
		if mapping.SubcategoryKey != "" && f.Key == mapping.SubcategoryKey {
			res.HasSubcategoryConstraint = true
		}
	}

	return res, nil
}

func (r *Resolver) resolveContext(ctx context.Context, res *Resolved, boundary domain.ContextBoundary) error {
	tax := res.Mapping.CategoryTaxonomy
	if boundary.Category != "" {
		term, err := r.Lookup(ctx, tax, boundary.Category)
		if err != nil {
			return fmt.Errorf("%w: category %q: %v", ErrUnknownContext, boundary.Category, err)
		}
		res.Category = term
	}
	if boundary.Subcategory != "" {
		term, err := r.Lookup(ctx, tax, boundary.Subcategory)
		if err != nil {
			return fmt.Errorf("%w: subcategory %q: %v", ErrUnknownContext, boundary.Subcategory, err)
		}
		if res.Category != nil && term.ParentID != res.Category.ID {
			log.WithFields(log.Fields{"category": res.Category.Slug, "subcategory": term.Slug}).
				Warn("⚠️ Context subcategory is not a child of the context category")
		}
		res.Subcategory = term
		res.HasSubcategoryConstraint = true
	}

	for _, term := range []*domain.Term{res.Category, res.Subcategory} {
		if term == nil {
			continue
		}
		res.Constraints = append(res.Constraints, r.constraint(ctx, *term, res.Mapping))
	}

	if inner := res.ContextTerm(); inner != nil {
		children, err := r.terms.Children(ctx, tax, inner.ID)
		if err != nil {
			log.Warnf("⚠️ Could not list children of context term %s: %v", inner.Slug, err)
		}
		res.ContextLeaf = len(children) == 0
	}
	return nil
}

// constraint builds the constraint for term, widened to its descendants only
// when the term has children of its own.
func (r *Resolver) constraint(ctx context.Context, term domain.Term, mapping *taxonomy.Mapping) repository.Constraint {
	c := repository.Constraint{
		Taxonomy:        term.Taxonomy,
		TermIDs:         []int64{term.ID},
		TermTaxonomyIDs: []int64{term.TermTaxonomyID},
	}
	if term.Taxonomy != mapping.CategoryTaxonomy {
		return c
	}
	for _, d := range r.descendants(ctx, term) {
		c.TermIDs = append(c.TermIDs, d.ID)
		c.TermTaxonomyIDs = append(c.TermTaxonomyIDs, d.TermTaxonomyID)
	}
	return c
}

func (r *Resolver) descendants(ctx context.Context, root domain.Term) []domain.Term {
	out := make([]domain.Term, 0)
	level := []domain.Term{root}
	for depth := 0; depth < maxDepth && len(level) > 0; depth++ {
		next := make([]domain.Term, 0)
		for _, t := range level {
			children, err := r.terms.Children(ctx, t.Taxonomy, t.ID)
			if err != nil {
				log.Warnf("⚠️ Could not expand descendants of %s: %v", t.Slug, err)
				continue
			}
			next = append(next, children...)
		}
		out = append(out, next...)
		level = next
	}
	return out
}

// Lookup finds a term by slug, then by common slug variants, then by name.
func (r *Resolver) Lookup(ctx context.Context, tax, value string) (*domain.Term, error) {
	if !taxonomyName.MatchString(tax) {
		return nil, fmt.Errorf("malformed taxonomy name %q", tax)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, repository.ErrTermNotFound
	}

	var lastErr error = repository.ErrTermNotFound
	for _, slug := range SlugVariants(value) {
		term, err := r.terms.TermBySlug(ctx, tax, slug)
		if err == nil {
			return term, nil
		}
		if !errors.Is(err, repository.ErrTermNotFound) {
			lastErr = err
		}
	}

	for _, name := range nameVariants(value) {
		term, err := r.terms.TermByName(ctx, tax, name)
		if err == nil {
			return term, nil
		}
		if !errors.Is(err, repository.ErrTermNotFound) {
			lastErr = err
		}
	}
	return nil, lastErr
}

// SlugVariants lists the value as given, case-folded, and with space, hyphen
// and underscore swapped for each other.
func SlugVariants(v string) []string {
	lower := strings.ToLower(v)
	candidates := []string{
		v,
		lower,
		strings.NewReplacer(" ", "-", "_", "-").Replace(lower),
		strings.NewReplacer(" ", "_", "-", "_").Replace(lower),
		strings.NewReplacer("-", "", "_", "", " ", "").Replace(lower),
	}
	return unique(candidates)
}

func nameVariants(v string) []string {
	return unique([]string{
		v,
		strings.NewReplacer("-", " ", "_", " ").Replace(v),
	})
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
