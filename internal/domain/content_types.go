package domain

type ContentType string

func (c ContentType) String() string {
	return string(c)
}

const (
	ContentTypeProduct ContentType = "product"
	ContentTypeRecipe  ContentType = "recipe"
)

var ContentTypes = []ContentType{
	ContentTypeProduct,
	ContentTypeRecipe,
}

// ParseContentType accepts both the singular post type and the plural URL base.
func ParseContentType(s string) (ContentType, bool) {
	switch s {
	case "product", "products":
		return ContentTypeProduct, true
	case "recipe", "recipes":
		return ContentTypeRecipe, true
	default:
		return "", false
	}
}

func (c ContentType) Label() string {
	switch c {
	case ContentTypeProduct:
		return "Products"
	case ContentTypeRecipe:
		return "Recipes"
	default:
		return "Unknown"
	}
}

// URLBase is the first path segment of every pretty URL for the type.
func (c ContentType) URLBase() string {
	switch c {
	case ContentTypeProduct:
		return "products"
	case ContentTypeRecipe:
		return "recipes"
	default:
		return ""
	}
}

const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusFuture  = "future"
)
