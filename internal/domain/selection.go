package domain

// TaxonomyFilter is one user-chosen facet value, e.g. {grade, a}.
type TaxonomyFilter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pagination carries the already clamped paging parameters.
type Pagination struct {
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// ContextBoundary is the category/subcategory fixed by the caller. User filters
// never relax it.
type ContextBoundary struct {
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

func (c ContextBoundary) IsZero() bool {
	return c.Category == "" && c.Subcategory == ""
}

// Selection is the sanitized request: facets, paging, context and display mode.
type Selection struct {
	Filters    []TaxonomyFilter `json:"filters"`
	Pagination Pagination       `json:"pagination"`
	Context    ContextBoundary  `json:"context"`
	Display    string           `json:"display,omitempty"`
}

// Value returns the filter value for key or "".
func (s Selection) Value(key string) string {
	for _, f := range s.Filters {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// HasFilters reports whether any non-empty facet value is present.
func (s Selection) HasFilters() bool {
	for _, f := range s.Filters {
		if f.Value != "" {
			return true
		}
	}
	return false
}
