package filters

import (
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/config"
	"handy/catalog/internal/domain"
)

func newSanitizer() *Sanitizer {
	return NewSanitizer(config.FiltersConfig{MaxPerPage: 100, DefaultPerPage: 12, QueryCeiling: 1000})
}

func TestSanitizeBuildsTypedSelection(t *testing.T) {
	raw := url.Values{
		"action":              {"filter_products"},
		"nonce":               {"abc"},
		"Grade":               {" a "},
		"market_segment":      {"<b>foodservice</b>"},
		"bogus_key":           {"x"},
		"species":             {""},
		"per_page":            {"500"},
		"page":                {"-3"},
		"context_category":    {"crab"},
		"context_subcategory": {"crab-cakes"},
		"display":             {"LIST"},
	}

	sel, err := newSanitizer().Sanitize(domain.ContentTypeProduct, raw)
	require.NoError(t, err)

	assert.Equal(t, []domain.TaxonomyFilter{
		{Key: "grade", Value: "a"},
		{Key: "market_segment", Value: "foodservice"},
	}, sel.Filters)
	assert.Equal(t, domain.Pagination{PerPage: 100, Page: 1}, sel.Pagination)
	assert.Equal(t, domain.ContextBoundary{Category: "crab", Subcategory: "crab-cakes"}, sel.Context)
	assert.Equal(t, "list", sel.Display)
}

func TestSanitizeDefaultsPaging(t *testing.T) {
	sel, err := newSanitizer().Sanitize(domain.ContentTypeRecipe, url.Values{"per_page": {"abc"}})
	require.NoError(t, err)
	assert.Equal(t, domain.Pagination{PerPage: 12, Page: 1}, sel.Pagination)
	assert.Empty(t, sel.Filters)
}

func TestSanitizeUnknownContentType(t *testing.T) {
	_, err := newSanitizer().Sanitize("page", url.Values{})
	assert.Error(t, err)
}

func TestSanitizeKeepsAmpersands(t *testing.T) {
	assert.Equal(t, "Fish & Chips", newSanitizer().Value("Fish & Chips<script>x</script>"))
}

func TestSlugVariants(t *testing.T) {
	assert.Equal(t, []string{"Soft Shell", "soft shell", "soft-shell", "soft_shell", "softshell"}, SlugVariants("Soft Shell"))
	assert.Equal(t, []string{"a"}, SlugVariants("a"))
}

func TestValueTruncatesOnRuneBoundary(t *testing.T) {
	s := newSanitizer()

	// "é" is two bytes, so byte 200 falls inside a rune
	long := "a" + strings.Repeat("é", 150)
	v := s.Value(long)
	assert.True(t, utf8.ValidString(v))
	assert.Equal(t, "a"+strings.Repeat("é", 99), v)

	assert.Equal(t, strings.Repeat("b", 200), s.Value(strings.Repeat("b", 250)))
}
