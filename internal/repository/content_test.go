package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/repository/repotest"
	"handy/catalog/internal/taxonomy"
)

func constraint(terms ...domain.Term) repository.Constraint {
	c := repository.Constraint{Taxonomy: terms[0].Taxonomy}
	for _, t := range terms {
		c.TermIDs = append(c.TermIDs, t.ID)
		c.TermTaxonomyIDs = append(c.TermTaxonomyIDs, t.TermTaxonomyID)
	}
	return c
}

func TestQueryAndJoinAgree(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	ctx := context.Background()

	q := repository.ItemQuery{
		Type: domain.ContentTypeProduct,
		Constraints: []repository.Constraint{
			constraint(c.GradeA),
			constraint(c.Foodservice),
			constraint(c.CrabCakes),
		},
		Limit: 1000,
	}

	orm, err := repo.QueryItemIDs(ctx, q)
	require.NoError(t, err)
	raw, err := repo.JoinItemIDs(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, []int64{c.Items["classic-cakes"]}, orm)
	assert.Equal(t, orm, raw)

	n, err := repo.CountItems(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDraftsAreExcluded(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()

	ids, err := repo.QueryItemIDs(context.Background(), repository.ItemQuery{
		Type:        domain.ContentTypeProduct,
		Constraints: []repository.Constraint{constraint(c.CrabCakes)},
	})
	require.NoError(t, err)
	assert.NotContains(t, ids, c.Items["draft-cakes"])
	assert.Len(t, ids, 3)
}

func TestJoinRequiresLimit(t *testing.T) {
	c := repotest.NewCatalog(t)
	_, err := c.Repo().JoinItemIDs(context.Background(), repository.ItemQuery{Type: domain.ContentTypeProduct})
	assert.Error(t, err)
}

func TestJoinWithoutConstraintsListsAllPublished(t *testing.T) {
	c := repotest.NewCatalog(t)

	ids, err := c.Repo().JoinItemIDs(context.Background(), repository.ItemQuery{Type: domain.ContentTypeProduct, Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, ids, 5)
}

func TestPagination(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	ctx := context.Background()

	q := repository.ItemQuery{
		Type:        domain.ContentTypeProduct,
		Constraints: []repository.Constraint{constraint(c.Crab)},
		Limit:       2,
	}
	first, err := repo.QueryItemIDs(ctx, q)
	require.NoError(t, err)
	q.Offset = 2
	second, err := repo.QueryItemIDs(ctx, q)
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
	assert.NotEqual(t, first, second)
}

func TestTermLookups(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	ctx := context.Background()

	term, err := repo.TermBySlug(ctx, taxonomy.ProductCategory, "soft-shell-crab")
	require.NoError(t, err)
	assert.Equal(t, c.SoftShell.ID, term.ID)
	assert.Equal(t, c.SoftShell.TermTaxonomyID, term.TermTaxonomyID)
	require.NotNil(t, term.Meta.DisplayOrder)
	assert.Equal(t, 1, *term.Meta.DisplayOrder)
	assert.Equal(t, "/img/soft-shell.jpg", term.Meta.FeaturedImage)

	byName, err := repo.TermByName(ctx, taxonomy.MarketSegment, "FOODSERVICE")
	require.NoError(t, err)
	assert.Equal(t, c.Foodservice.ID, byName.ID)

	_, err = repo.TermBySlug(ctx, taxonomy.Grade, "z")
	assert.ErrorIs(t, err, repository.ErrTermNotFound)

	// a slug from another taxonomy is not a match
	_, err = repo.TermBySlug(ctx, taxonomy.Grade, "crab")
	assert.ErrorIs(t, err, repository.ErrTermNotFound)

	children, err := repo.Children(ctx, taxonomy.ProductCategory, c.Crab.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	top, err := repo.TopLevel(ctx, taxonomy.ProductCategory)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	has, err := repo.HasChildren(ctx, taxonomy.ProductCategory, c.SoftShell.ID)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = repo.HasChildren(ctx, taxonomy.ProductCategory, c.CrabCakes.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestTermsForItems(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()

	terms, err := repo.TermsForItems(context.Background(), taxonomy.Grade, []int64{c.Items["classic-cakes"], c.Items["mini-cakes"]})
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, c.GradeA.ID, terms[0].ID)

	none, err := repo.TermsForItems(context.Background(), taxonomy.Grade, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestItemsKeepOrderAndLoadTerms(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	c.PostMeta(c.Items["mini-cakes"], domain.MetaFeatured, "1")

	items, err := repo.Items(context.Background(), []int64{c.Items["mini-cakes"], c.Items["classic-cakes"], 99999})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "mini-cakes", items[0].Slug)
	assert.True(t, items[0].IsFeatured())
	cats := items[0].TermsIn(taxonomy.ProductCategory)
	require.Len(t, cats, 2)
	assert.ElementsMatch(t, []int64{c.Crab.ID, c.CrabCakes.ID}, []int64{cats[0].ID, cats[1].ID})
	for _, term := range cats {
		if term.ID == c.CrabCakes.ID {
			assert.Equal(t, c.CrabCakes.TermTaxonomyID, term.TermTaxonomyID)
			assert.Equal(t, c.Crab.ID, term.ParentID)
			assert.Equal(t, "crab-cakes", term.Slug)
			assert.Equal(t, "Crab Cakes", term.Name)
		}
	}

	item, err := repo.ItemBySlug(context.Background(), domain.ContentTypeProduct, "classic-cakes")
	require.NoError(t, err)
	assert.Equal(t, c.Items["classic-cakes"], item.ID)

	_, err = repo.ItemBySlug(context.Background(), domain.ContentTypeProduct, "draft-cakes")
	assert.ErrorIs(t, err, repository.ErrItemNotFound)
}

func TestMetaRoundTrip(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()
	ctx := context.Background()

	require.NoError(t, repo.SetTermMeta(ctx, c.Shrimp.ID, domain.MetaDisplayOrder, "5"))
	require.NoError(t, repo.SetTermMeta(ctx, c.Shrimp.ID, domain.MetaDisplayOrder, "7"))
	v, ok, err := repo.TermMeta(ctx, c.Shrimp.ID, domain.MetaDisplayOrder)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	_, ok, err = repo.PostMeta(ctx, c.Items["crab-dip"], "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetPostMeta(ctx, c.Items["crab-dip"], domain.MetaFeatured, "1"))
	v, ok, err = repo.PostMeta(ctx, c.Items["crab-dip"], domain.MetaFeatured)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestPublishedIDsInTerm(t *testing.T) {
	c := repotest.NewCatalog(t)
	repo := c.Repo()

	ids, err := repo.PublishedIDsInTerm(context.Background(), domain.ContentTypeProduct, taxonomy.ProductCategory, c.SoftShell.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.Items["whole-softs"]}, ids)

	all, err := repo.PublishedIDsInTerm(context.Background(), domain.ContentTypeProduct, taxonomy.ProductCategory, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	recipes, err := repo.AllPublishedIDs(context.Background(), domain.ContentTypeRecipe, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.Items["crab-dip"]}, recipes)
}
