package domain

// Meta keys shared with the admin collaborator and the import tooling.
const (
	MetaDisplayOrder  = "display_order"
	MetaFeaturedImage = "featured_image"
	MetaFeatured      = "_handy_featured"
	MetaPrimaryPrefix = "_primary_"
)

// TermMeta holds the plugin-owned term meta values.
type TermMeta struct {
	DisplayOrder  *int   `json:"display_order,omitempty"`
	FeaturedImage string `json:"featured_image,omitempty"`
}

// Term is a single value inside a taxonomy. TermTaxonomyID is the key used by
// term relationships; ID is the public term id.
type Term struct {
	ID             int64    `json:"id"`
	TermTaxonomyID int64    `json:"term_taxonomy_id"`
	Slug           string   `json:"slug"`
	Name           string   `json:"name"`
	ParentID       int64    `json:"parent_id"`
	Taxonomy       string   `json:"taxonomy"`
	Meta           TermMeta `json:"meta"`
}

func (t Term) IsTopLevel() bool {
	return t.ParentID == 0
}

// SortOrder returns the display order, or a large number so unordered terms sink.
func (t Term) SortOrder() int {
	if t.Meta.DisplayOrder == nil {
		return 1 << 30
	}
	return *t.Meta.DisplayOrder
}

// DedupeTerms keeps the first occurrence of every term id.
func DedupeTerms(terms []Term) []Term {
	seen := make(map[int64]struct{}, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
