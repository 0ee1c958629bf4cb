package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/cascade"
	"handy/catalog/internal/display"
	"handy/catalog/internal/domain"
	"handy/catalog/internal/filters"
	"handy/catalog/internal/nonce"
	"handy/catalog/internal/permalink"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/taxonomy"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const configErrorMessage = "This catalog listing is not configured correctly."

// Output is one rendered archive or filter bar. Results is the part the AJAX
// handler swaps in; HTML is the whole block.
type Output struct {
	HTML    string
	Results string
	Mode    domain.DisplayMode
	Options *domain.FilterOptions
	Page    domain.PageMeta
	Failed  bool
}

// Deps are the collaborators shared by every renderer.
type Deps struct {
	Sanitizer    *filters.Sanitizer
	Builder      *filters.Builder
	Engine       *cascade.Engine
	Display      *display.Resolver
	Items        repository.ItemReader
	Links        *permalink.Permalinks
	Nonces       *nonce.Manager
	ExcerptWords int
}

// Renderer renders the archive, filter bar and item pages of one content type.
type Renderer struct {
	ct           domain.ContentType
	mapping      *taxonomy.Mapping
	sanitizer    *filters.Sanitizer
	builder      *filters.Builder
	engine       *cascade.Engine
	display      *display.Resolver
	items        repository.ItemReader
	links        *permalink.Permalinks
	nonces       *nonce.Manager
	excerptWords int
}

func New(ct domain.ContentType, deps Deps) (*Renderer, error) {
	mapping, err := taxonomy.For(ct)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		ct:           ct,
		mapping:      mapping,
		sanitizer:    deps.Sanitizer,
		builder:      deps.Builder,
		engine:       deps.Engine,
		display:      deps.Display,
		items:        deps.Items,
		links:        deps.Links,
		nonces:       deps.Nonces,
		excerptWords: deps.ExcerptWords,
	}, nil
}

// Action is the AJAX action name a filter bar posts for ct.
func Action(ct domain.ContentType) string {
	return "filter_" + ct.URLBase()
}

func (r *Renderer) Type() domain.ContentType {
	return r.ct
}

// Render sanitises raw request values and renders the archive.
func (r *Renderer) Render(ctx context.Context, raw url.Values) *Output {
	sel, err := r.sanitizer.Sanitize(r.ct, raw)
	if err != nil {
		return r.failed(err)
	}
	return r.RenderSelection(ctx, sel)
}

// RenderSelection renders the archive for an already sanitised selection.
// Category cards skip the item query and the cascade entirely.
func (r *Renderer) RenderSelection(ctx context.Context, sel domain.Selection) *Output {
	res, err := r.builder.Resolve(ctx, r.ct, sel)
	if err != nil {
		return r.failed(err)
	}

	decision := r.display.Resolve(ctx, res, sel.Display)
	view := archiveView{
		Type:   r.ct.URLBase(),
		Label:  strings.ToLower(r.ct.Label()),
		Mode:   decision.Mode,
		Crumbs: permalink.ArchiveBreadcrumbs(r.ct, res.Category, res.Subcategory, false),
	}
	out := &Output{Mode: decision.Mode, Options: domain.NewFilterOptions()}

	if decision.Mode == domain.DisplayCategoryCards {
		view.Cards = r.cards(res, decision.Children)
	} else {
		qr, err := r.builder.QueryResolved(ctx, res, sel.Pagination)
		if err != nil {
			return r.failed(err)
		}
		cascaded := r.engine.OptionsFor(ctx, res)
		out.Options = cascaded.Options
		out.Page = qr.Page

		view.Items = r.itemViews(ctx, qr.ItemIDs)
		view.Pages = pageLinks(qr.Page)
		view.Filters = r.filterView(res, cascaded.Options)
	}

	if out.HTML, err = execute("archive", view); err != nil {
		return r.failed(err)
	}
	if out.Results, err = execute("results", view); err != nil {
		return r.failed(err)
	}

	log.WithFields(log.Fields{
		"content_type": r.ct,
		"mode":         decision.Mode,
		"items":        len(view.Items),
		"cards":        len(view.Cards),
	}).Debug("🖼️ Archive rendered")
	return out
}

// RenderFilters renders only the filter bar for raw.
func (r *Renderer) RenderFilters(ctx context.Context, raw url.Values) *Output {
	sel, err := r.sanitizer.Sanitize(r.ct, raw)
	if err != nil {
		return r.failed(err)
	}
	res, err := r.builder.Resolve(ctx, r.ct, sel)
	if err != nil {
		return r.failed(err)
	}

	cascaded := r.engine.OptionsFor(ctx, res)
	html, err := execute("filters", r.filterView(res, cascaded.Options))
	if err != nil {
		return r.failed(err)
	}
	return &Output{HTML: html, Mode: domain.DisplayProductList, Options: cascaded.Options}
}

// RenderItem renders a single published item page.
func (r *Renderer) RenderItem(ctx context.Context, id int64) (string, error) {
	item, err := r.items.ItemByID(ctx, id)
	if err != nil {
		return "", err
	}
	if item.Type != r.ct || item.Status != domain.StatusPublish {
		return "", fmt.Errorf("%w: %s %d", repository.ErrItemNotFound, r.ct, id)
	}

	crumbs, err := r.links.Breadcrumbs(ctx, item)
	if err != nil {
		log.WithField("item_id", id).Warnf("⚠️ Breadcrumbs fell back to the type archive: %v", err)
		crumbs = append(permalink.ArchiveBreadcrumbs(r.ct, nil, nil, true), domain.Breadcrumb{Label: item.Title})
	}

	return execute("item", itemPageView{
		ID:       item.ID,
		Type:     r.ct.URLBase(),
		Title:    item.Title,
		Featured: item.IsFeatured(),
		Crumbs:   crumbs,
		Content:  template.HTML(SanitizeContent(item.Content)),
	})
}

func (r *Renderer) failed(err error) *Output {
	level := log.ErrorLevel
	if errors.Is(err, filters.ErrUnknownContext) || errors.Is(err, taxonomy.ErrUnknownContentType) {
		level = log.WarnLevel
	}
	log.WithField("content_type", r.ct).Logf(level, "❌ Rendering failed: %v", err)

	html, execErr := execute("error", configErrorMessage)
	if execErr != nil {
		html = `<div class="handy-error" role="alert"></div>`
	}
	return &Output{HTML: html, Results: html, Mode: domain.DisplayProductList, Options: domain.NewFilterOptions(), Failed: true}
}

func (r *Renderer) cards(res *filters.Resolved, children []domain.Term) []cardView {
	cards := make([]cardView, 0, len(children))
	for i := range children {
		child := children[i]
		cards = append(cards, cardView{
			Slug:  child.Slug,
			Name:  child.Name,
			Image: child.Meta.FeaturedImage,
			URL:   r.cardURL(res, &child),
		})
	}
	return cards
}

// cardURL links a child card to its archive. Pretty archive URLs stop at the
// subcategory level, deeper children go through the subcategory filter.
func (r *Renderer) cardURL(res *filters.Resolved, child *domain.Term) string {
	target := res.ContextTerm()
	switch {
	case target == nil:
		return permalink.ArchiveURL(r.ct, child, nil)
	case target.IsTopLevel():
		return permalink.ArchiveURL(r.ct, target, child)
	}

	query := url.Values{r.mapping.SubcategoryKey: {child.Slug}}.Encode()
	if res.Category != nil {
		return permalink.ArchiveURL(r.ct, res.Category, res.Subcategory) + "?" + query
	}
	return permalink.ArchiveURL(r.ct, nil, nil) + "?" + query
}

func (r *Renderer) itemViews(ctx context.Context, ids []int64) []itemView {
	views := make([]itemView, 0, len(ids))
	if len(ids) == 0 {
		return views
	}

	items, err := r.items.Items(ctx, ids)
	if err != nil {
		log.WithField("content_type", r.ct).Errorf("❌ Failed to load items for listing: %v", err)
		return views
	}
	for _, item := range items {
		link, err := r.links.Build(ctx, item)
		if err != nil {
			log.WithField("item_id", item.ID).Debugf("Item has no pretty URL: %v", err)
			link = ""
		}
		views = append(views, itemView{
			ID:       item.ID,
			Title:    item.Title,
			URL:      link,
			Excerpt:  Excerpt(item.Excerpt, item.Content, r.excerptWords),
			Featured: item.IsFeatured(),
		})
	}
	return views
}

func (r *Renderer) filterView(res *filters.Resolved, opts *domain.FilterOptions) *filtersView {
	view := &filtersView{
		Action: Action(r.ct),
		Type:   r.ct.URLBase(),
		Facets: make([]facetView, 0, len(opts.Keys)),
	}
	if res.Category != nil {
		view.Context.Category = res.Category.Slug
	}
	if res.Subcategory != nil {
		view.Context.Subcategory = res.Subcategory.Slug
	}

	if r.nonces != nil {
		token, err := r.nonces.Issue(view.Action)
		if err != nil {
			log.Errorf("❌ Failed to issue filter nonce: %v", err)
		}
		view.Nonce = token
	}

	for _, key := range opts.Keys {
		facet, ok := r.mapping.Facet(key)
		if !ok {
			continue
		}
		selected, hasSelection := res.Selected[key]
		fv := facetView{Key: key, Label: facet.Label, Options: make([]optionView, 0, len(opts.Options[key]))}
		for _, term := range opts.Options[key] {
			fv.Options = append(fv.Options, optionView{
				Slug:     term.Slug,
				Name:     term.Name,
				Selected: hasSelection && selected.ID == term.ID,
			})
		}
		view.Facets = append(view.Facets, fv)
	}
	return view
}

func pageLinks(meta domain.PageMeta) []pageLink {
	links := make([]pageLink, 0, meta.Pages)
	for n := 1; n <= meta.Pages; n++ {
		links = append(links, pageLink{Number: n, Current: n == meta.Page})
	}
	return links
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}
