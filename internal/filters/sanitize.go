package filters

import (
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/config"
	"handy/catalog/internal/domain"
	"handy/catalog/internal/taxonomy"
)

// Request fields that are not facet filters.
const (
	FieldAction             = "action"
	FieldNonce              = "nonce"
	FieldDisplay            = "display"
	FieldPerPage            = "per_page"
	FieldPage               = "page"
	FieldContextCategory    = "context_category"
	FieldContextSubcategory = "context_subcategory"
)

const maxValueLen = 200

var reserved = map[string]struct{}{
	FieldAction:             {},
	FieldNonce:              {},
	FieldDisplay:            {},
	FieldPerPage:            {},
	FieldPage:               {},
	FieldContextCategory:    {},
	FieldContextSubcategory: {},
}

// Sanitizer turns raw request values into a typed Selection.
type Sanitizer struct {
	policy         *bluemonday.Policy
	maxPerPage     int
	defaultPerPage int
}

func NewSanitizer(cfg config.FiltersConfig) *Sanitizer {
	return &Sanitizer{
		policy:         bluemonday.StrictPolicy(),
		maxPerPage:     cfg.MaxPerPage,
		defaultPerPage: cfg.DefaultPerPage,
	}
}

// Sanitize drops unknown keys with a warning, caps per_page and floors page.
func (s *Sanitizer) Sanitize(ct domain.ContentType, raw url.Values) (domain.Selection, error) {
	mapping, err := taxonomy.For(ct)
	if err != nil {
		return domain.Selection{}, err
	}

	sel := domain.Selection{
		Filters: make([]domain.TaxonomyFilter, 0),
		Context: domain.ContextBoundary{
			Category:    s.Value(raw.Get(FieldContextCategory)),
			Subcategory: s.Value(raw.Get(FieldContextSubcategory)),
		},
		Pagination: s.pagination(raw.Get(FieldPerPage), raw.Get(FieldPage)),
		Display:    normalizeDisplay(raw.Get(FieldDisplay)),
	}

	seen := make(map[string]struct{})
	for rawKey, values := range raw {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		if _, ok := reserved[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		if _, ok := mapping.Facet(key); !ok {
			log.WithFields(log.Fields{"content_type": ct, "filter_key": key}).Warn("⚠️ Dropping unknown filter key")
			continue
		}
		if len(values) == 0 {
			continue
		}
		if v := s.Value(values[0]); v != "" {
			seen[key] = struct{}{}
			sel.Filters = append(sel.Filters, domain.TaxonomyFilter{Key: key, Value: v})
		}
	}

	order := make(map[string]int, len(mapping.Facets))
	for i, f := range mapping.Facets {
		order[f.Key] = i
	}
	sort.SliceStable(sel.Filters, func(i, j int) bool {
		return order[sel.Filters[i].Key] < order[sel.Filters[j].Key]
	})
	return sel, nil
}

// Value strips markup and surrounding space from a single user value.
func (s *Sanitizer) Value(v string) string {
	v = strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
	if len(v) > maxValueLen {
		cut := maxValueLen
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = v[:cut]
	}
	return v
}

func (s *Sanitizer) pagination(perPageRaw, pageRaw string) domain.Pagination {
	perPage, err := strconv.Atoi(strings.TrimSpace(perPageRaw))
	if err != nil || perPage <= 0 {
		perPage = s.defaultPerPage
	}
	if perPage > s.maxPerPage {
		perPage = s.maxPerPage
	}
	page, err := strconv.Atoi(strings.TrimSpace(pageRaw))
	if err != nil || page < 1 {
		page = 1
	}
	return domain.Pagination{PerPage: perPage, Page: page}
}

func normalizeDisplay(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "list", "products", "recipes":
		return "list"
	case "categories", "cards":
		return "categories"
	default:
		return ""
	}
}
