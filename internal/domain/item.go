package domain

// Item is a product or recipe as stored by the host CMS.
type Item struct {
	ID        int64             `json:"id"`
	Type      ContentType       `json:"type"`
	Title     string            `json:"title"`
	Slug      string            `json:"slug"`
	Status    string            `json:"status"`
	Content   string            `json:"content,omitempty"`
	Excerpt   string            `json:"excerpt,omitempty"`
	MenuOrder int               `json:"menu_order"`
	Terms     []Term            `json:"terms,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// TermsIn returns the item's terms for a single taxonomy.
func (i *Item) TermsIn(taxonomy string) []Term {
	out := make([]Term, 0)
	for _, t := range i.Terms {
		if t.Taxonomy == taxonomy {
			out = append(out, t)
		}
	}
	return out
}

func (i *Item) IsFeatured() bool {
	v := i.Fields[MetaFeatured]
	return v == "1" || v == "yes" || v == "true"
}
