package permalink

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository/repotest"
	"handy/catalog/internal/taxonomy"
)

type fakeSEO struct {
	terms map[int64]int64
	err   error
	calls int
}

func (f *fakeSEO) PrimaryTerm(_ context.Context, itemID int64, _ string) (int64, bool, error) {
	f.calls++
	if f.err != nil {
		return 0, false, f.err
	}
	id, ok := f.terms[itemID]
	return id, ok, nil
}

func item(t *testing.T, c *repotest.Catalog, slug string) *domain.Item {
	t.Helper()
	it, err := c.Repo().ItemByID(context.Background(), c.Items[slug])
	require.NoError(t, err)
	return it
}

func TestBuildUsesFirstTopLevelCategory(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	links := New(repo, repo, nil)
	ctx := context.Background()

	path, err := links.Build(ctx, item(t, c, "classic-cakes"))
	require.NoError(t, err)
	assert.Equal(t, "/products/crab/crab-cakes/classic-cakes/", path)

	path, err = links.Build(ctx, item(t, c, "popcorn-shrimp"))
	require.NoError(t, err)
	assert.Equal(t, "/products/shrimp/popcorn-shrimp/", path)

	path, err = links.Build(ctx, item(t, c, "crab-dip"))
	require.NoError(t, err)
	assert.Equal(t, "/recipes/appetizers/crab-dip/", path)
}

func TestStoredPrimaryMetaWins(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	c.PostMeta(c.Items["whole-softs"], domain.MetaPrimaryPrefix+taxonomy.ProductCategory, strconv.FormatInt(c.SoftWhole.ID, 10))

	path, err := New(repo, repo, nil).Build(context.Background(), item(t, c, "whole-softs"))
	require.NoError(t, err)
	assert.Equal(t, "/products/soft-shell-crab/whole-soft-shell/whole-softs/", path)
}

func TestSEOPrimaryTermIsPreferredAndRemembered(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	ctx := context.Background()
	id := c.Items["whole-softs"]
	seo := &fakeSEO{terms: map[int64]int64{id: c.SoftShell.ID}}

	primary, err := New(repo, repo, seo).PrimaryCategory(ctx, item(t, c, "whole-softs"))
	require.NoError(t, err)
	assert.Equal(t, c.SoftShell.ID, primary.ID)

	stored, ok, err := repo.PostMeta(ctx, id, domain.MetaPrimaryPrefix+taxonomy.ProductCategory)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, strconv.FormatInt(c.SoftShell.ID, 10), stored)

	// the CMS goes away; the remembered value keeps the URL stable
	down := &fakeSEO{err: errors.New("connection refused")}
	primary, err = New(repo, repo, down).PrimaryCategory(ctx, item(t, c, "whole-softs"))
	require.NoError(t, err)
	assert.Equal(t, c.SoftShell.ID, primary.ID)
}

func TestUnassignedSEOTermIsIgnored(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	seo := &fakeSEO{terms: map[int64]int64{c.Items["classic-cakes"]: c.Shrimp.ID}}

	primary, err := New(repo, repo, seo).PrimaryCategory(context.Background(), item(t, c, "classic-cakes"))
	require.NoError(t, err)
	assert.Equal(t, c.Crab.ID, primary.ID)
}

func TestChainFallbacks(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	links := New(repo, repo, nil)
	ctx := context.Background()

	orphan := c.Item(domain.ContentTypeProduct, "loose-crab", "Loose Crab", domain.StatusPublish, c.CrabCakes)
	it, err := repo.ItemByID(ctx, orphan)
	require.NoError(t, err)
	path, err := links.Build(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, "/products/crab/crab-cakes/loose-crab/", path)

	bare := c.Item(domain.ContentTypeProduct, "bare", "Bare", domain.StatusPublish, c.GradeA)
	it, err = repo.ItemByID(ctx, bare)
	require.NoError(t, err)
	path, err = links.Build(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, "/products/bare/", path)

	_, err = links.PrimaryCategory(ctx, it)
	assert.ErrorIs(t, err, ErrNoCategory)
}

func TestBreadcrumbs(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()

	crumbs, err := New(repo, repo, nil).Breadcrumbs(context.Background(), item(t, c, "classic-cakes"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Breadcrumb{
		{Label: "Home", URL: "/"},
		{Label: "Products", URL: "/products/"},
		{Label: "Crab", URL: "/products/crab/"},
		{Label: "Crab Cakes", URL: "/products/crab/crab-cakes/"},
		{Label: "Classic Crab Cakes"},
	}, crumbs)

	archive := ArchiveBreadcrumbs(domain.ContentTypeRecipe, nil, nil, false)
	assert.Equal(t, []domain.Breadcrumb{{Label: "Home", URL: "/"}, {Label: "Recipes"}}, archive)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "/products/crab/", Normalize("products//crab?x=1"))
	assert.Equal(t, "/", Normalize(""))
	assert.Equal(t, "/recipes/", Normalize("/recipes"))
}
