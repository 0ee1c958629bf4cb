package repository

// Row models mirror the host CMS schema. Table names are resolved at runtime
// from the configured prefix, see Tables.

type postRow struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	PostTitle   string `gorm:"column:post_title"`
	PostName    string `gorm:"column:post_name;index"`
	PostType    string `gorm:"column:post_type;index:idx_type_status"`
	PostStatus  string `gorm:"column:post_status;index:idx_type_status"`
	PostContent string `gorm:"column:post_content"`
	PostExcerpt string `gorm:"column:post_excerpt"`
	MenuOrder   int    `gorm:"column:menu_order"`
}

type postMetaRow struct {
	MetaID    int64  `gorm:"column:meta_id;primaryKey;autoIncrement"`
	PostID    int64  `gorm:"column:post_id;index"`
	MetaKey   string `gorm:"column:meta_key;index"`
	MetaValue string `gorm:"column:meta_value"`
}

type termRow struct {
	TermID int64  `gorm:"column:term_id;primaryKey;autoIncrement"`
	Name   string `gorm:"column:name"`
	Slug   string `gorm:"column:slug;index"`
}

type termTaxonomyRow struct {
	TermTaxonomyID int64  `gorm:"column:term_taxonomy_id;primaryKey;autoIncrement"`
	TermID         int64  `gorm:"column:term_id;index"`
	Taxonomy       string `gorm:"column:taxonomy;index"`
	Parent         int64  `gorm:"column:parent"`
	Count          int64  `gorm:"column:count"`
}

type termRelationshipRow struct {
	ObjectID       int64 `gorm:"column:object_id;primaryKey;autoIncrement:false"`
	TermTaxonomyID int64 `gorm:"column:term_taxonomy_id;primaryKey;autoIncrement:false"`
}

type termMetaRow struct {
	MetaID    int64  `gorm:"column:meta_id;primaryKey;autoIncrement"`
	TermID    int64  `gorm:"column:term_id;index"`
	MetaKey   string `gorm:"column:meta_key;index"`
	MetaValue string `gorm:"column:meta_value"`
}

// termScan is the joined terms ⋈ term_taxonomy projection.
type termScan struct {
	TermID         int64  `gorm:"column:term_id"`
	Name           string `gorm:"column:name"`
	Slug           string `gorm:"column:slug"`
	TermTaxonomyID int64  `gorm:"column:term_taxonomy_id"`
	Taxonomy       string `gorm:"column:taxonomy"`
	Parent         int64  `gorm:"column:parent"`
}

// relationScan lists its columns explicitly: gorm does not fill fields
// promoted from an unexported embedded struct.
type relationScan struct {
	ObjectID       int64  `gorm:"column:object_id"`
	TermID         int64  `gorm:"column:term_id"`
	Name           string `gorm:"column:name"`
	Slug           string `gorm:"column:slug"`
	TermTaxonomyID int64  `gorm:"column:term_taxonomy_id"`
	Taxonomy       string `gorm:"column:taxonomy"`
	Parent         int64  `gorm:"column:parent"`
}

func (s relationScan) term() termScan {
	return termScan{
		TermID:         s.TermID,
		Name:           s.Name,
		Slug:           s.Slug,
		TermTaxonomyID: s.TermTaxonomyID,
		Taxonomy:       s.Taxonomy,
		Parent:         s.Parent,
	}
}

// Tables holds the prefixed table names.
type Tables struct {
	Posts             string
	PostMeta          string
	Terms             string
	TermTaxonomy      string
	TermRelationships string
	TermMeta          string
}

func NewTables(prefix string) Tables {
	return Tables{
		Posts:             prefix + "posts",
		PostMeta:          prefix + "postmeta",
		Terms:             prefix + "terms",
		TermTaxonomy:      prefix + "term_taxonomy",
		TermRelationships: prefix + "term_relationships",
		TermMeta:          prefix + "termmeta",
	}
}
