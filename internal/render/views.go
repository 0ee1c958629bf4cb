package render

import (
	"html/template"

	"handy/catalog/internal/domain"
)

type archiveView struct {
	Type    string
	Label   string
	Mode    domain.DisplayMode
	Crumbs  []domain.Breadcrumb
	Filters *filtersView
	Cards   []cardView
	Items   []itemView
	Pages   []pageLink
}

type cardView struct {
	Slug  string
	Name  string
	Image string
	URL   string
}

type itemView struct {
	ID       int64
	Title    string
	URL      string
	Excerpt  string
	Featured bool
}

type pageLink struct {
	Number  int
	Current bool
}

type filtersView struct {
	Action  string
	Type    string
	Nonce   string
	Context domain.ContextBoundary
	Facets  []facetView
}

type facetView struct {
	Key     string
	Label   string
	Options []optionView
}

type optionView struct {
	Slug     string
	Name     string
	Selected bool
}

type itemPageView struct {
	ID       int64
	Type     string
	Title    string
	Featured bool
	Crumbs   []domain.Breadcrumb
	Content  template.HTML
}

// Option is the JSON shape of one selectable facet value sent back to the
// filter bar script.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionsJSON flattens the cascade result for the AJAX response. Every offered
// facet is present, empty facets as an empty list.
func OptionsJSON(opts *domain.FilterOptions) map[string][]Option {
	out := make(map[string][]Option)
	if opts == nil {
		return out
	}
	for _, key := range opts.Keys {
		terms := opts.Options[key]
		list := make([]Option, 0, len(terms))
		for _, t := range terms {
			list = append(list, Option{Value: t.Slug, Label: t.Name})
		}
		out[key] = list
	}
	return out
}
