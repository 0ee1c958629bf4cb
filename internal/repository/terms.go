package repository

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"handy/catalog/internal/domain"
)

const termChunk = 500

func (s termScan) toDomain() domain.Term {
	return domain.Term{
		ID:             s.TermID,
		TermTaxonomyID: s.TermTaxonomyID,
		Slug:           s.Slug,
		Name:           s.Name,
		ParentID:       s.Parent,
		Taxonomy:       s.Taxonomy,
	}
}

func (r *contentRepository) termQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table(r.t.Terms + " AS t").
		Select("t.term_id, t.name, t.slug, tt.term_taxonomy_id, tt.taxonomy, tt.parent").
		Joins("JOIN " + r.t.TermTaxonomy + " AS tt ON tt.term_id = t.term_id")
}

func (r *contentRepository) oneTerm(ctx context.Context, tx *gorm.DB, what string) (*domain.Term, error) {
	rows := make([]termScan, 0, 1)
	if err := tx.Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to look up term %s: %w", what, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTermNotFound, what)
	}
	terms, err := r.withMeta(ctx, []domain.Term{rows[0].toDomain()})
	if err != nil {
		return nil, err
	}
	return &terms[0], nil
}

func (r *contentRepository) TermBySlug(ctx context.Context, taxonomy, slug string) (*domain.Term, error) {
	tx := r.termQuery(ctx).Where("tt.taxonomy = ? AND t.slug = ?", taxonomy, slug)
	return r.oneTerm(ctx, tx, taxonomy+"/"+slug)
}

// TermByName matches case-insensitively.
func (r *contentRepository) TermByName(ctx context.Context, taxonomy, name string) (*domain.Term, error) {
	tx := r.termQuery(ctx).Where("tt.taxonomy = ? AND LOWER(t.name) = LOWER(?)", taxonomy, name)
	return r.oneTerm(ctx, tx, taxonomy+" name "+name)
}

func (r *contentRepository) TermByID(ctx context.Context, taxonomy string, id int64) (*domain.Term, error) {
	tx := r.termQuery(ctx).Where("tt.taxonomy = ? AND t.term_id = ?", taxonomy, id)
	return r.oneTerm(ctx, tx, taxonomy+" #"+strconv.FormatInt(id, 10))
}

// Children returns the direct children of parentID; zero lists top-level terms.
func (r *contentRepository) Children(ctx context.Context, taxonomy string, parentID int64) ([]domain.Term, error) {
	rows := make([]termScan, 0)
	err := r.termQuery(ctx).
		Where("tt.taxonomy = ? AND tt.parent = ?", taxonomy, parentID).
		Order("t.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s/%d: %w", taxonomy, parentID, err)
	}
	terms := make([]domain.Term, 0, len(rows))
	for _, row := range rows {
		terms = append(terms, row.toDomain())
	}
	return r.withMeta(ctx, terms)
}

func (r *contentRepository) HasChildren(ctx context.Context, taxonomy string, termID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table(r.t.TermTaxonomy).
		Where("taxonomy = ? AND parent = ?", taxonomy, termID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to count children of %s/%d: %w", taxonomy, termID, err)
	}
	return n > 0, nil
}

func (r *contentRepository) TopLevel(ctx context.Context, taxonomy string) ([]domain.Term, error) {
	return r.Children(ctx, taxonomy, 0)
}

// TermsForItems returns the distinct terms of taxonomy attached to any of
// itemIDs.
func (r *contentRepository) TermsForItems(ctx context.Context, taxonomy string, itemIDs []int64) ([]domain.Term, error) {
	if len(itemIDs) == 0 {
		return []domain.Term{}, nil
	}

	seen := make(map[int64]struct{})
	terms := make([]domain.Term, 0)
	for start := 0; start < len(itemIDs); start += termChunk {
		end := min(start+termChunk, len(itemIDs))

		rows := make([]termScan, 0)
		err := r.termQuery(ctx).
			Distinct().
			Joins("JOIN "+r.t.TermRelationships+" AS tr ON tr.term_taxonomy_id = tt.term_taxonomy_id").
			Where("tt.taxonomy = ? AND tr.object_id IN ?", taxonomy, itemIDs[start:end]).
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to collect %s terms: %w", taxonomy, err)
		}
		for _, row := range rows {
			if _, ok := seen[row.TermID]; ok {
				continue
			}
			seen[row.TermID] = struct{}{}
			terms = append(terms, row.toDomain())
		}
	}
	return r.withMeta(ctx, terms)
}

// withMeta attaches display order and featured image term meta.
func (r *contentRepository) withMeta(ctx context.Context, terms []domain.Term) ([]domain.Term, error) {
	if len(terms) == 0 {
		return terms, nil
	}
	ids := make([]int64, 0, len(terms))
	for _, t := range terms {
		ids = append(ids, t.ID)
	}

	metas := make([]termMetaRow, 0)
	err := r.db.WithContext(ctx).
		Table(r.t.TermMeta).
		Where("term_id IN ? AND meta_key IN ?", ids, []string{domain.MetaDisplayOrder, domain.MetaFeaturedImage}).
		Find(&metas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load term meta: %w", err)
	}

	byTerm := make(map[int64][]termMetaRow, len(metas))
	for _, m := range metas {
		byTerm[m.TermID] = append(byTerm[m.TermID], m)
	}
	for i := range terms {
		for _, m := range byTerm[terms[i].ID] {
			switch m.MetaKey {
			case domain.MetaDisplayOrder:
				if n, err := strconv.Atoi(m.MetaValue); err == nil {
					terms[i].Meta.DisplayOrder = &n
				}
			case domain.MetaFeaturedImage:
				terms[i].Meta.FeaturedImage = m.MetaValue
			}
		}
	}
	return terms, nil
}
