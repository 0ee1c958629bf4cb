package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"handy/catalog/internal/domain"
)

var ErrTermNotFound = errors.New("term not found")
var ErrItemNotFound = errors.New("item not found")

// Constraint restricts items to those attached to any of the given terms of one
// taxonomy. TermIDs feed the ORM path, TermTaxonomyIDs the raw join.
type Constraint struct {
	Taxonomy        string
	TermIDs         []int64
	TermTaxonomyIDs []int64
}

// ItemQuery is an AND of constraints over published items of one type.
type ItemQuery struct {
	Type        domain.ContentType
	Constraints []Constraint
	Limit       int
	Offset      int
}

// ItemQuerier answers "which items match" through two independent paths.
type ItemQuerier interface {
	QueryItemIDs(ctx context.Context, q ItemQuery) ([]int64, error)
	CountItems(ctx context.Context, q ItemQuery) (int, error)
	JoinItemIDs(ctx context.Context, q ItemQuery) ([]int64, error)
}

// TermReader is the read side of the taxonomy store.
type TermReader interface {
	TermBySlug(ctx context.Context, taxonomy, slug string) (*domain.Term, error)
	TermByName(ctx context.Context, taxonomy, name string) (*domain.Term, error)
	TermByID(ctx context.Context, taxonomy string, id int64) (*domain.Term, error)
	Children(ctx context.Context, taxonomy string, parentID int64) ([]domain.Term, error)
	HasChildren(ctx context.Context, taxonomy string, termID int64) (bool, error)
	TopLevel(ctx context.Context, taxonomy string) ([]domain.Term, error)
	TermsForItems(ctx context.Context, taxonomy string, itemIDs []int64) ([]domain.Term, error)
}

// ItemReader loads items for rendering and URL building.
type ItemReader interface {
	Items(ctx context.Context, ids []int64) ([]*domain.Item, error)
	ItemByID(ctx context.Context, id int64) (*domain.Item, error)
	ItemBySlug(ctx context.Context, ct domain.ContentType, slug string) (*domain.Item, error)
	PublishedIDsInTerm(ctx context.Context, ct domain.ContentType, taxonomy string, termID int64) ([]int64, error)
	AllPublishedIDs(ctx context.Context, ct domain.ContentType, limit int) ([]int64, error)
}

// MetaStore reads and writes the plugin-owned meta keys.
type MetaStore interface {
	TermMeta(ctx context.Context, termID int64, key string) (string, bool, error)
	SetTermMeta(ctx context.Context, termID int64, key, value string) error
	PostMeta(ctx context.Context, postID int64, key string) (string, bool, error)
	SetPostMeta(ctx context.Context, postID int64, key, value string) error
}

type ContentRepository interface {
	ItemQuerier
	TermReader
	ItemReader
	MetaStore
}

type contentRepository struct {
	db *gorm.DB
	t  Tables
}

func NewContentRepository(db *gorm.DB, tables Tables) ContentRepository {
	return &contentRepository{
		db: db,
		t:  tables,
	}
}
