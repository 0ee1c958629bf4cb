package task

// RewriteFlushTask regenerates the rules of every item attached to a term, or
// every item of the taxonomy when TermID is zero.
type RewriteFlushTask struct {
	Taxonomy string `json:"taxonomy"`
	TermID   int64  `json:"term_id"`
	Reason   string `json:"reason"`
}

func (t *RewriteFlushTask) TaskType() string {
	return TypeRewriteFlush
}

func (t *RewriteFlushTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
