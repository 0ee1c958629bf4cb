package domain

import "time"

type DisplayMode string

const (
	DisplayCategoryCards DisplayMode = "CATEGORY_CARDS"
	DisplayProductList   DisplayMode = "PRODUCT_LIST"
)

func (d DisplayMode) String() string {
	return string(d)
}

// ResultSource tells which query path produced an item id set.
type ResultSource string

const (
	SourcePrimary      ResultSource = "primary"
	SourceRawJoin      ResultSource = "raw_join"
	SourceAllPublished ResultSource = "all_published"
)

type PageMeta struct {
	Total   int `json:"total"`
	Pages   int `json:"pages"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// CachedQueryResult is the value stored by the query cache.
type CachedQueryResult struct {
	Fingerprint string       `json:"fingerprint"`
	ItemIDs     []int64      `json:"item_ids"`
	Pagination  PageMeta     `json:"pagination"`
	Source      ResultSource `json:"source"`
	CachedAt    time.Time    `json:"cached_at"`
}

// FilterOptions maps a filter key to the terms still selectable for it. Keys
// keeps the facet order.
type FilterOptions struct {
	Keys    []string          `json:"keys"`
	Options map[string][]Term `json:"options"`
}

func NewFilterOptions() *FilterOptions {
	return &FilterOptions{
		Keys:    make([]string, 0),
		Options: make(map[string][]Term),
	}
}

func (o *FilterOptions) Set(key string, terms []Term) {
	if _, ok := o.Options[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Options[key] = terms
}

func (o *FilterOptions) Has(key string) bool {
	_, ok := o.Options[key]
	return ok
}

type Breadcrumb struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}
