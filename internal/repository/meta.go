package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

func (r *contentRepository) TermMeta(ctx context.Context, termID int64, key string) (string, bool, error) {
	rows := make([]termMetaRow, 0, 1)
	err := r.db.WithContext(ctx).
		Table(r.t.TermMeta).
		Where("term_id = ? AND meta_key = ?", termID, key).
		Order("meta_id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, fmt.Errorf("failed to read term meta %s for %d: %w", key, termID, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].MetaValue, true, nil
}

// SetTermMeta updates the existing row or inserts one; the CMS schema has no
// unique key to upsert on.
func (r *contentRepository) SetTermMeta(ctx context.Context, termID int64, key, value string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(r.t.TermMeta).
			Where("term_id = ? AND meta_key = ?", termID, key).
			Update("meta_value", value)
		if res.Error != nil {
			return fmt.Errorf("failed to update term meta %s for %d: %w", key, termID, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		row := termMetaRow{TermID: termID, MetaKey: key, MetaValue: value}
		if err := tx.Table(r.t.TermMeta).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert term meta %s for %d: %w", key, termID, err)
		}
		return nil
	})
}

func (r *contentRepository) PostMeta(ctx context.Context, postID int64, key string) (string, bool, error) {
	rows := make([]postMetaRow, 0, 1)
	err := r.db.WithContext(ctx).
		Table(r.t.PostMeta).
		Where("post_id = ? AND meta_key = ?", postID, key).
		Order("meta_id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, fmt.Errorf("failed to read post meta %s for %d: %w", key, postID, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].MetaValue, true, nil
}

func (r *contentRepository) SetPostMeta(ctx context.Context, postID int64, key, value string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(r.t.PostMeta).
			Where("post_id = ? AND meta_key = ?", postID, key).
			Update("meta_value", value)
		if res.Error != nil {
			return fmt.Errorf("failed to update post meta %s for %d: %w", key, postID, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		row := postMetaRow{PostID: postID, MetaKey: key, MetaValue: value}
		if err := tx.Table(r.t.PostMeta).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert post meta %s for %d: %w", key, postID, err)
		}
		return nil
	})
}
