package render

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/cascade"
	"handy/catalog/internal/config"
	"handy/catalog/internal/display"
	"handy/catalog/internal/domain"
	"handy/catalog/internal/filters"
	"handy/catalog/internal/nonce"
	"handy/catalog/internal/permalink"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/repository/repotest"
)

func newRenderer(t *testing.T, c *repotest.Catalog, ct domain.ContentType) (*Renderer, *nonce.Manager) {
	t.Helper()
	repo := c.Repo()
	cfg, err := config.Defaults()
	require.NoError(t, err)
	nonces, err := nonce.NewManager("render-test-secret", time.Minute)
	require.NoError(t, err)

	resolver := filters.NewResolver(repo)
	finder := filters.NewFinder(repo, cfg.Filters.QueryCeiling)
	r, err := New(ct, Deps{
		Sanitizer:    filters.NewSanitizer(cfg.Filters),
		Builder:      filters.NewBuilder(resolver, repo, finder, nil),
		Engine:       cascade.NewEngine(resolver, finder, repo),
		Display:      display.NewResolver(repo),
		Items:        repo,
		Links:        permalink.New(repo, repo, nil),
		Nonces:       nonces,
		ExcerptWords: 3,
	})
	require.NoError(t, err)
	return r, nonces
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func hrefs(sel *goquery.Selection) []string {
	return sel.Map(func(_ int, s *goquery.Selection) string {
		v, _ := s.Attr("href")
		return v
	})
}

func TestTopLevelArchiveShowsCategoryCards(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.Render(context.Background(), url.Values{})
	require.False(t, out.Failed)
	assert.Equal(t, domain.DisplayCategoryCards, out.Mode)
	assert.Empty(t, out.Options.Keys)

	doc := parse(t, out.HTML)
	assert.Equal(t, []string{"/products/crab/", "/products/shrimp/"}, hrefs(doc.Find(".handy-category-card a")))
	assert.Equal(t, 0, doc.Find("form.handy-filters").Length())
	assert.Equal(t, "Products", doc.Find(".handy-breadcrumbs li").Last().Text())
}

func TestCardsFollowDisplayOrderAndCarryImages(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.Render(context.Background(), url.Values{"context_category": {"crab"}})
	require.False(t, out.Failed)

	doc := parse(t, out.HTML)
	cards := doc.Find(".handy-category-card")
	require.Equal(t, 2, cards.Length())
	assert.Equal(t, []string{"/products/crab/soft-shell-crab/", "/products/crab/crab-cakes/"}, hrefs(cards.Find("a")))

	src, ok := cards.First().Find("img").Attr("src")
	require.True(t, ok)
	assert.Equal(t, "/img/soft-shell.jpg", src)
	assert.Equal(t, 0, cards.Last().Find("img").Length())
}

func TestDeeperCardsLinkThroughSubcategoryFilter(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.Render(context.Background(), url.Values{
		"context_category":    {"crab"},
		"context_subcategory": {"soft-shell-crab"},
	})
	require.Equal(t, domain.DisplayCategoryCards, out.Mode)

	doc := parse(t, out.HTML)
	assert.Equal(t,
		[]string{"/products/crab/soft-shell-crab/?subcategory=whole-soft-shell"},
		hrefs(doc.Find(".handy-category-card a")))
}

func TestFilteredListing(t *testing.T) {
	c := repotest.NewCatalog(t)
	c.Content(c.Items["classic-cakes"], "<p></p><p>Hand-picked <b>jumbo</b> lump crab, lightly seasoned.</p><script>alert(1)</script>")
	c.PostMeta(c.Items["mini-cakes"], domain.MetaFeatured, "1")
	r, nonces := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.Render(context.Background(), url.Values{
		"context_category": {"crab"},
		"grade":            {"a"},
	})
	require.False(t, out.Failed)
	assert.Equal(t, domain.DisplayProductList, out.Mode)
	assert.Equal(t, 3, out.Page.Total)

	doc := parse(t, out.HTML)
	titles := doc.Find(".handy-item-title").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	assert.Equal(t, []string{"Classic Crab Cakes", "Mini Crab Cakes", "Whole Soft Shells"}, titles)
	assert.Equal(t, "/products/crab/crab-cakes/classic-cakes/", hrefs(doc.Find(".handy-item-title a"))[0])
	assert.Equal(t, "Hand-picked jumbo lump…", doc.Find(".handy-item-excerpt").First().Text())
	assert.Equal(t, 1, doc.Find(".handy-item.handy-featured").Length())
	assert.NotContains(t, out.HTML, "alert(1)")

	form := doc.Find("form.handy-filters")
	require.Equal(t, 1, form.Length())
	action, _ := form.Attr("data-action")
	assert.Equal(t, "filter_products", action)
	assert.Equal(t, 0, form.Find(`select[name="category"]`).Length())
	selected, _ := form.Find(`select[name="grade"] option[selected]`).Attr("value")
	assert.Equal(t, "a", selected)
	ctxValue, _ := form.Find(`input[name="context_category"]`).Attr("value")
	assert.Equal(t, "crab", ctxValue)

	token, _ := form.Find(`input[name="nonce"]`).Attr("value")
	assert.NoError(t, nonces.Verify(token, "filter_products"))

	results := parse(t, out.Results)
	assert.Equal(t, 3, results.Find(".handy-item").Length())
	assert.Equal(t, 0, results.Find("form").Length())
}

func TestListingPaginates(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.Render(context.Background(), url.Values{
		"context_category": {"crab"},
		"display":          {"list"},
		"per_page":         {"3"},
		"page":             {"2"},
	})
	require.False(t, out.Failed)
	assert.Equal(t, domain.PageMeta{Total: 4, Pages: 2, Page: 2, PerPage: 3}, out.Page)

	doc := parse(t, out.HTML)
	assert.Equal(t, 1, doc.Find(".handy-item").Length())
	assert.Equal(t, "2", doc.Find(".handy-pagination .current").Text())
	assert.Equal(t, 1, doc.Find(".handy-pagination a").Length())
}

func TestEmptyListingSaysSo(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.Render(context.Background(), url.Values{
		"context_category": {"shrimp"},
		"grade":            {"a"},
	})
	require.False(t, out.Failed)

	doc := parse(t, out.HTML)
	assert.Equal(t, 0, doc.Find(".handy-item").Length())
	assert.Contains(t, doc.Find(".handy-empty").Text(), "No products match")
}

func TestConfigurationErrorRendersErrorBlock(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.Render(context.Background(), url.Values{"context_category": {"lobster"}})
	assert.True(t, out.Failed)
	assert.Equal(t, 1, parse(t, out.HTML).Find(".handy-error").Length())
	assert.NotNil(t, out.Options)
}

func TestRecipesAlwaysList(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeRecipe)

	out := r.Render(context.Background(), url.Values{})
	require.False(t, out.Failed)
	assert.Equal(t, domain.DisplayProductList, out.Mode)

	doc := parse(t, out.HTML)
	assert.Equal(t, []string{"/recipes/appetizers/crab-dip/"}, hrefs(doc.Find(".handy-item-title a")))
	action, _ := doc.Find("form.handy-filters").Attr("data-action")
	assert.Equal(t, "filter_recipes", action)
}

func TestRenderFilters(t *testing.T) {
	c := repotest.NewCatalog(t)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)

	out := r.RenderFilters(context.Background(), url.Values{"context_category": {"crab"}, "market_segment": {"retail"}})
	require.False(t, out.Failed)

	doc := parse(t, out.HTML)
	grades := doc.Find(`select[name="grade"] option`).Map(func(_ int, s *goquery.Selection) string {
		v, _ := s.Attr("value")
		return v
	})
	assert.Equal(t, []string{"", "a"}, grades)
	assert.Equal(t, "All Grade", doc.Find(`select[name="grade"] option`).First().Text())

	seg, _ := doc.Find(`select[name="market_segment"] option[selected]`).Attr("value")
	assert.Equal(t, "retail", seg)
}

func TestRenderItem(t *testing.T) {
	c := repotest.NewCatalog(t)
	c.Content(c.Items["classic-cakes"], `<p>Jumbo lump.</p><script>alert(1)</script>`)
	r, _ := newRenderer(t, c, domain.ContentTypeProduct)
	ctx := context.Background()

	html, err := r.RenderItem(ctx, c.Items["classic-cakes"])
	require.NoError(t, err)

	doc := parse(t, html)
	assert.Equal(t, "Classic Crab Cakes", doc.Find("h1").Text())
	crumbs := doc.Find(".handy-breadcrumbs li").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	assert.Equal(t, []string{"Home", "Products", "Crab", "Crab Cakes", "Classic Crab Cakes"}, crumbs)
	assert.Equal(t, "Jumbo lump.", doc.Find(".handy-item-content p").Text())
	assert.NotContains(t, html, "<script>")

	_, err = r.RenderItem(ctx, c.Items["draft-cakes"])
	assert.True(t, errors.Is(err, repository.ErrItemNotFound))
	_, err = r.RenderItem(ctx, c.Items["crab-dip"])
	assert.True(t, errors.Is(err, repository.ErrItemNotFound))
}

func TestOptionsJSON(t *testing.T) {
	opts := domain.NewFilterOptions()
	opts.Set("grade", []domain.Term{{Slug: "a", Name: "A"}})
	opts.Set("size", []domain.Term{})

	out := OptionsJSON(opts)
	assert.Equal(t, []Option{{Value: "a", Label: "A"}}, out["grade"])
	assert.Equal(t, []Option{}, out["size"])
	assert.Empty(t, OptionsJSON(nil))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "Fresh from the…", Excerpt("", "<div><p>Fresh from the dock every morning.</p></div>", 3))
	assert.Equal(t, "Short one", Excerpt("", "<p>Short one</p>", 3))
	assert.Equal(t, "Written by hand", Excerpt("<em>Written</em> by hand", "<p>ignored</p>", 10))
	assert.Equal(t, "no paragraphs here", Excerpt("", "no paragraphs here", 10))
	assert.Equal(t, "", Excerpt("", "", 10))
}
