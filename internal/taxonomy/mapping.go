package taxonomy

import (
	"errors"
	"fmt"

	"handy/catalog/internal/domain"
)

var ErrUnknownContentType = errors.New("no taxonomy mapping for content type")

const (
	ProductCategory     = "product-category"
	RecipeCategory      = "recipe-category"
	Grade               = "grade"
	MarketSegment       = "market-segment"
	CookingMethod       = "cooking-method"
	MenuOccasion        = "menu-occasion"
	ProductType         = "product-type"
	Size                = "size"
	Species             = "species"
	Brand               = "brand"
	Certification       = "certification"
	RecipeCookingMethod = "recipe-cooking-method"
	RecipeMenuOccasion  = "recipe-menu-occasion"
	KeyCategory         = "category"
	KeySubcategory      = "subcategory"
)

// Facet is one filterable key of a content type.
type Facet struct {
	Key      string
	Taxonomy string
	Label    string
}

// Mapping is the static filter table of one content type.
type Mapping struct {
	Type             domain.ContentType
	CategoryTaxonomy string
	// CategoryKey is the top-level category selection. It drives display-mode
	// switching and is never offered as a facet.
	CategoryKey string
	// SubcategoryKey is faceted only below a category; empty when the type has
	// a flat category list.
	SubcategoryKey string
	CategoryCards  bool
	Facets         []Facet
}

var mappings = map[domain.ContentType]*Mapping{
	domain.ContentTypeProduct: {
		Type:             domain.ContentTypeProduct,
		CategoryTaxonomy: ProductCategory,
		CategoryKey:      KeyCategory,
		SubcategoryKey:   KeySubcategory,
		CategoryCards:    true,
		Facets: []Facet{
			{Key: KeyCategory, Taxonomy: ProductCategory, Label: "Category"},
			{Key: KeySubcategory, Taxonomy: ProductCategory, Label: "Subcategory"},
			{Key: "grade", Taxonomy: Grade, Label: "Grade"},
			{Key: "market_segment", Taxonomy: MarketSegment, Label: "Market Segment"},
			{Key: "cooking_method", Taxonomy: CookingMethod, Label: "Cooking Method"},
			{Key: "menu_occasion", Taxonomy: MenuOccasion, Label: "Menu Occasion"},
			{Key: "product_type", Taxonomy: ProductType, Label: "Product Type"},
			{Key: "size", Taxonomy: Size, Label: "Size"},
			{Key: "species", Taxonomy: Species, Label: "Species"},
			{Key: "brand", Taxonomy: Brand, Label: "Brand"},
			{Key: "certification", Taxonomy: Certification, Label: "Certification"},
		},
	},
	domain.ContentTypeRecipe: {
		Type:             domain.ContentTypeRecipe,
		CategoryTaxonomy: RecipeCategory,
		Facets: []Facet{
			{Key: KeyCategory, Taxonomy: RecipeCategory, Label: "Category"},
			{Key: "cooking_method", Taxonomy: RecipeCookingMethod, Label: "Cooking Method"},
			{Key: "menu_occasion", Taxonomy: RecipeMenuOccasion, Label: "Menu Occasion"},
		},
	},
}

// For returns the mapping of a content type.
func For(ct domain.ContentType) (*Mapping, error) {
	m, ok := mappings[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, ct)
	}
	return m, nil
}

// Facet looks a filter key up.
func (m *Mapping) Facet(key string) (Facet, bool) {
	for _, f := range m.Facets {
		if f.Key == key {
			return f, true
		}
	}
	return Facet{}, false
}

// TaxonomyFor resolves a filter key to its taxonomy name.
func (m *Mapping) TaxonomyFor(key string) (string, bool) {
	f, ok := m.Facet(key)
	return f.Taxonomy, ok
}

// IsCategoryKey reports whether key selects from the category hierarchy.
func (m *Mapping) IsCategoryKey(key string) bool {
	return key == m.CategoryKey || (m.SubcategoryKey != "" && key == m.SubcategoryKey)
}

// Taxonomies returns the distinct taxonomy names of the type.
func (m *Mapping) Taxonomies() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(m.Facets))
	for _, f := range m.Facets {
		if _, ok := seen[f.Taxonomy]; ok {
			continue
		}
		seen[f.Taxonomy] = struct{}{}
		out = append(out, f.Taxonomy)
	}
	return out
}

// ContentTypeForTaxonomy finds the type owning a taxonomy.
func ContentTypeForTaxonomy(taxonomy string) (domain.ContentType, bool) {
	for _, ct := range domain.ContentTypes {
		for _, t := range mappings[ct].Taxonomies() {
			if t == taxonomy {
				return ct, true
			}
		}
	}
	return "", false
}
