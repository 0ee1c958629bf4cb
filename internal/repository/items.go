package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"handy/catalog/internal/domain"
)

const itemOrder = "menu_order ASC, post_title ASC, id ASC"

// QueryItemIDs is the ORM path: every constraint becomes an IN (subquery) on
// term ids.
func (r *contentRepository) QueryItemIDs(ctx context.Context, q ItemQuery) ([]int64, error) {
	tx := r.ormQuery(ctx, q).Order(itemOrder)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	ids := make([]int64, 0)
	if err := tx.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s ids: %w", q.Type, err)
	}
	return ids, nil
}

func (r *contentRepository) CountItems(ctx context.Context, q ItemQuery) (int, error) {
	var n int64
	if err := r.ormQuery(ctx, q).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s items: %w", q.Type, err)
	}
	return int(n), nil
}

func (r *contentRepository) ormQuery(ctx context.Context, q ItemQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).
		Table(r.t.Posts).
		Where("post_type = ? AND post_status = ?", q.Type.String(), domain.StatusPublish)

	for _, c := range q.Constraints {
		if len(c.TermIDs) == 0 {
			continue
		}
		sub := r.db.Table(r.t.TermRelationships+" AS tr").
			Select("tr.object_id").
			Joins("JOIN "+r.t.TermTaxonomy+" AS tt ON tt.term_taxonomy_id = tr.term_taxonomy_id").
			Where("tt.taxonomy = ? AND tt.term_id IN ?", c.Taxonomy, c.TermIDs)
		tx = tx.Where("id IN (?)", sub)
	}
	return tx
}

type idScan struct {
	ID        int64  `gorm:"column:id"`
	MenuOrder int    `gorm:"column:menu_order"`
	PostTitle string `gorm:"column:post_title"`
}

// JoinItemIDs rebuilds posts ⋈ term_relationships ⋈ term_taxonomy ⋈ terms by
// hand, matching relationships on term_taxonomy_id. A zero Limit is rejected:
// this path always runs bounded.
func (r *contentRepository) JoinItemIDs(ctx context.Context, q ItemQuery) ([]int64, error) {
	if q.Limit <= 0 {
		return nil, errors.New("raw join requires a positive limit")
	}

	var b strings.Builder
	args := make([]any, 0, 2+2*len(q.Constraints)+1)

	fmt.Fprintf(&b, "SELECT DISTINCT p.id, p.menu_order, p.post_title FROM %s AS p", r.t.Posts)
	joined := make([]int, 0, len(q.Constraints))
	for i, c := range q.Constraints {
		if len(c.TermTaxonomyIDs) == 0 {
			continue
		}
		fmt.Fprintf(&b, " INNER JOIN %s AS tr%d ON tr%d.object_id = p.id", r.t.TermRelationships, i, i)
		fmt.Fprintf(&b, " INNER JOIN %s AS tt%d ON tt%d.term_taxonomy_id = tr%d.term_taxonomy_id", r.t.TermTaxonomy, i, i, i)
		fmt.Fprintf(&b, " INNER JOIN %s AS t%d ON t%d.term_id = tt%d.term_id", r.t.Terms, i, i, i)
		joined = append(joined, i)
	}

	b.WriteString(" WHERE p.post_type = ? AND p.post_status = ?")
	args = append(args, q.Type.String(), domain.StatusPublish)
	for _, i := range joined {
		c := q.Constraints[i]
		fmt.Fprintf(&b, " AND tt%d.taxonomy = ? AND tt%d.term_taxonomy_id IN ?", i, i)
		args = append(args, c.Taxonomy, c.TermTaxonomyIDs)
	}
	b.WriteString(" ORDER BY p.menu_order ASC, p.post_title ASC, p.id ASC LIMIT ?")
	args = append(args, q.Limit)

	rows := make([]idScan, 0)
	if err := r.db.WithContext(ctx).Raw(b.String(), args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to run raw join for %s: %w", q.Type, err)
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// Items loads posts with their meta and term assignments, in the order of ids.
// Unknown ids are skipped.
func (r *contentRepository) Items(ctx context.Context, ids []int64) ([]*domain.Item, error) {
	if len(ids) == 0 {
		return []*domain.Item{}, nil
	}

	rows := make([]postRow, 0, len(ids))
	if err := r.db.WithContext(ctx).Table(r.t.Posts).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	byID := make(map[int64]*domain.Item, len(rows))
	for _, row := range rows {
		byID[row.ID] = &domain.Item{
			ID:        row.ID,
			Type:      domain.ContentType(row.PostType),
			Title:     row.PostTitle,
			Slug:      row.PostName,
			Status:    row.PostStatus,
			Content:   row.PostContent,
			Excerpt:   row.PostExcerpt,
			MenuOrder: row.MenuOrder,
			Terms:     make([]domain.Term, 0),
			Fields:    make(map[string]string),
		}
	}

	metas := make([]postMetaRow, 0)
	if err := r.db.WithContext(ctx).Table(r.t.PostMeta).Where("post_id IN ?", ids).Find(&metas).Error; err != nil {
		return nil, fmt.Errorf("failed to load item meta: %w", err)
	}
	for _, m := range metas {
		if item, ok := byID[m.PostID]; ok {
			item.Fields[m.MetaKey] = m.MetaValue
		}
	}

	rels := make([]relationScan, 0)
	err := r.db.WithContext(ctx).
		Table(r.t.TermRelationships+" AS tr").
		Select("tr.object_id, t.term_id, t.name, t.slug, tt.term_taxonomy_id, tt.taxonomy, tt.parent").
		Joins("JOIN "+r.t.TermTaxonomy+" AS tt ON tt.term_taxonomy_id = tr.term_taxonomy_id").
		Joins("JOIN "+r.t.Terms+" AS t ON t.term_id = tt.term_id").
		Where("tr.object_id IN ?", ids).
		Order("tt.parent ASC, t.name ASC").
		Scan(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load item terms: %w", err)
	}
	for _, rel := range rels {
		if item, ok := byID[rel.ObjectID]; ok {
			item.Terms = append(item.Terms, rel.term().toDomain())
		}
	}

	out := make([]*domain.Item, 0, len(rows))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *contentRepository) ItemByID(ctx context.Context, id int64) (*domain.Item, error) {
	items, err := r.Items(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	return items[0], nil
}

func (r *contentRepository) ItemBySlug(ctx context.Context, ct domain.ContentType, slug string) (*domain.Item, error) {
	var row postRow
	err := r.db.WithContext(ctx).
		Table(r.t.Posts).
		Where("post_type = ? AND post_status = ? AND post_name = ?", ct.String(), domain.StatusPublish, slug).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s %q", ErrItemNotFound, ct, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %q: %w", ct, slug, err)
	}
	return r.ItemByID(ctx, row.ID)
}

// PublishedIDsInTerm lists published items attached to termID, or to any term
// of the taxonomy when termID is zero.
func (r *contentRepository) PublishedIDsInTerm(ctx context.Context, ct domain.ContentType, taxonomy string, termID int64) ([]int64, error) {
	sub := r.db.Table(r.t.TermRelationships+" AS tr").
		Select("tr.object_id").
		Joins("JOIN "+r.t.TermTaxonomy+" AS tt ON tt.term_taxonomy_id = tr.term_taxonomy_id").
		Where("tt.taxonomy = ?", taxonomy)
	if termID != 0 {
		sub = sub.Where("tt.term_id = ?", termID)
	}

	ids := make([]int64, 0)
	err := r.db.WithContext(ctx).
		Table(r.t.Posts).
		Where("post_type = ? AND post_status = ?", ct.String(), domain.StatusPublish).
		Where("id IN (?)", sub).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list items in %s/%d: %w", taxonomy, termID, err)
	}
	return ids, nil
}

// AllPublishedIDs goes through the raw join with no constraints.
func (r *contentRepository) AllPublishedIDs(ctx context.Context, ct domain.ContentType, limit int) ([]int64, error) {
	return r.JoinItemIDs(ctx, ItemQuery{Type: ct, Limit: limit})
}
