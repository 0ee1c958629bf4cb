package task

import "handy/catalog/internal/domain"

// RewriteItemTask regenerates the rewrite rule of a single item.
type RewriteItemTask struct {
	ItemID      int64              `json:"item_id"`
	ContentType domain.ContentType `json:"content_type"`
	Reason      string             `json:"reason"` // event that scheduled it
	RetryCount  int                `json:"retry_count"`
}

func (t *RewriteItemTask) TaskType() string {
	return TypeRewriteItem
}

func (t *RewriteItemTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
