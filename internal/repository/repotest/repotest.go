// Package repotest seeds an in-memory CMS schema for tests.
package repotest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/repository"
)

// termTaxonomyOffset keeps term_taxonomy_id different from term_id so code
// that mixes the two keys fails loudly.
const termTaxonomyOffset = 1000

type Seeder struct {
	tb     testing.TB
	DB     *gorm.DB
	Tables repository.Tables

	nextPost int64
	nextTerm int64
}

func New(tb testing.TB) *Seeder {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repository.OpenSQLite(dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	tables := repository.NewTables("wp_")
	if err := repository.AutoMigrate(db, tables); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return Attach(tb, db, tables)
}

// Attach seeds an already migrated database owned by someone else.
func Attach(tb testing.TB, db *gorm.DB, tables repository.Tables) *Seeder {
	return &Seeder{tb: tb, DB: db, Tables: tables, nextPost: 100, nextTerm: 1}
}

func (s *Seeder) Repo() repository.ContentRepository {
	return repository.NewContentRepository(s.DB, s.Tables)
}

func (s *Seeder) exec(sql string, args ...any) {
	s.tb.Helper()
	if err := s.DB.Exec(sql, args...).Error; err != nil {
		s.tb.Fatalf("seed %q: %v", sql, err)
	}
}

// Term creates a term; parent is the parent term (nil for top level).
func (s *Seeder) Term(taxonomy, slug, name string, parent *domain.Term) domain.Term {
	s.tb.Helper()
	id := s.nextTerm
	s.nextTerm++
	var parentID int64
	if parent != nil {
		parentID = parent.ID
	}
	s.exec(fmt.Sprintf("INSERT INTO %s (term_id, name, slug) VALUES (?, ?, ?)", s.Tables.Terms), id, name, slug)
	s.exec(fmt.Sprintf("INSERT INTO %s (term_taxonomy_id, term_id, taxonomy, parent, count) VALUES (?, ?, ?, ?, 0)", s.Tables.TermTaxonomy),
		id+termTaxonomyOffset, id, taxonomy, parentID)
	return domain.Term{
		ID:             id,
		TermTaxonomyID: id + termTaxonomyOffset,
		Slug:           slug,
		Name:           name,
		ParentID:       parentID,
		Taxonomy:       taxonomy,
	}
}

// Item creates a post of ct assigned to terms.
func (s *Seeder) Item(ct domain.ContentType, slug, title, status string, terms ...domain.Term) int64 {
	s.tb.Helper()
	id := s.nextPost
	s.nextPost++
	s.exec(fmt.Sprintf("INSERT INTO %s (id, post_title, post_name, post_type, post_status, post_content, post_excerpt, menu_order) VALUES (?, ?, ?, ?, ?, ?, '', 0)", s.Tables.Posts),
		id, title, slug, ct.String(), status, "<p>"+title+" description.</p>")
	for _, t := range terms {
		s.Assign(id, t)
	}
	return id
}

func (s *Seeder) Assign(itemID int64, t domain.Term) {
	s.tb.Helper()
	s.exec(fmt.Sprintf("INSERT INTO %s (object_id, term_taxonomy_id) VALUES (?, ?)", s.Tables.TermRelationships), itemID, t.TermTaxonomyID)
}

func (s *Seeder) Content(itemID int64, html string) {
	s.tb.Helper()
	s.exec(fmt.Sprintf("UPDATE %s SET post_content = ? WHERE id = ?", s.Tables.Posts), html, itemID)
}

func (s *Seeder) TermMeta(termID int64, key, value string) {
	s.tb.Helper()
	s.exec(fmt.Sprintf("INSERT INTO %s (term_id, meta_key, meta_value) VALUES (?, ?, ?)", s.Tables.TermMeta), termID, key, value)
}

func (s *Seeder) PostMeta(postID int64, key, value string) {
	s.tb.Helper()
	s.exec(fmt.Sprintf("INSERT INTO %s (post_id, meta_key, meta_value) VALUES (?, ?, ?)", s.Tables.PostMeta), postID, key, value)
}
