package permalink

import (
	"context"

	"handy/catalog/internal/domain"
)

const homeLabel = "Home"

// Breadcrumbs for an item page: Home › Type › Category › Subcategory › Item.
func (p *Permalinks) Breadcrumbs(ctx context.Context, item *domain.Item) ([]domain.Breadcrumb, error) {
	category, subcategory, err := p.Chain(ctx, item)
	if err != nil {
		return nil, err
	}
	crumbs := ArchiveBreadcrumbs(item.Type, category, subcategory, true)
	return append(crumbs, domain.Breadcrumb{Label: item.Title}), nil
}

// ArchiveBreadcrumbs for a listing. The last crumb has no URL unless linkLast.
func ArchiveBreadcrumbs(ct domain.ContentType, category, subcategory *domain.Term, linkLast bool) []domain.Breadcrumb {
	crumbs := []domain.Breadcrumb{
		{Label: homeLabel, URL: "/"},
		{Label: ct.Label(), URL: ArchiveURL(ct, nil, nil)},
	}
	if category != nil {
		crumbs = append(crumbs, domain.Breadcrumb{Label: category.Name, URL: ArchiveURL(ct, category, nil)})
	}
	if subcategory != nil {
		crumbs = append(crumbs, domain.Breadcrumb{Label: subcategory.Name, URL: ArchiveURL(ct, category, subcategory)})
	}
	if !linkLast {
		crumbs[len(crumbs)-1].URL = ""
	}
	return crumbs
}
