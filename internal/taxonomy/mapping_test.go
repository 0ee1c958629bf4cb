package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/domain"
)

func TestProductMapping(t *testing.T) {
	m, err := For(domain.ContentTypeProduct)
	require.NoError(t, err)

	tax, ok := m.TaxonomyFor("market_segment")
	require.True(t, ok)
	assert.Equal(t, MarketSegment, tax)

	_, ok = m.TaxonomyFor("colour")
	assert.False(t, ok)

	assert.True(t, m.IsCategoryKey(KeyCategory))
	assert.True(t, m.IsCategoryKey(KeySubcategory))
	assert.False(t, m.IsCategoryKey("grade"))

	// category and subcategory share one taxonomy
	assert.Len(t, m.Taxonomies(), len(m.Facets)-1)
}

func TestRecipeMappingIsFlat(t *testing.T) {
	m, err := For(domain.ContentTypeRecipe)
	require.NoError(t, err)

	assert.False(t, m.CategoryCards)
	assert.Empty(t, m.SubcategoryKey)
	assert.False(t, m.IsCategoryKey(KeySubcategory))

	tax, ok := m.TaxonomyFor("cooking_method")
	require.True(t, ok)
	assert.Equal(t, RecipeCookingMethod, tax)
}

func TestUnknownContentType(t *testing.T) {
	_, err := For("page")
	assert.ErrorIs(t, err, ErrUnknownContentType)
}

func TestContentTypeForTaxonomy(t *testing.T) {
	ct, ok := ContentTypeForTaxonomy(Grade)
	assert.True(t, ok)
	assert.Equal(t, domain.ContentTypeProduct, ct)

	ct, ok = ContentTypeForTaxonomy(RecipeCategory)
	assert.True(t, ok)
	assert.Equal(t, domain.ContentTypeRecipe, ct)

	_, ok = ContentTypeForTaxonomy("post_tag")
	assert.False(t, ok)
}
