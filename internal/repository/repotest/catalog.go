package repotest

import (
	"testing"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/taxonomy"
)

// Catalog is a small seafood catalog shared by package tests.
type Catalog struct {
	*Seeder

	Crab        domain.Term // top level, has children
	CrabCakes   domain.Term // child of Crab, leaf
	SoftShell   domain.Term // child of Crab, has a child
	SoftWhole   domain.Term // child of SoftShell, leaf
	Shrimp      domain.Term // top level, leaf
	GradeA      domain.Term
	GradeB      domain.Term
	Foodservice domain.Term
	Retail      domain.Term
	Fried       domain.Term
	Baked       domain.Term

	RecipeApps domain.Term
	RecipeBake domain.Term

	Items map[string]int64
}

func NewCatalog(tb testing.TB) *Catalog {
	tb.Helper()
	return Seed(tb, New(tb))
}

// Seed writes the catalog through s.
func Seed(tb testing.TB, s *Seeder) *Catalog {
	tb.Helper()
	c := &Catalog{Seeder: s, Items: make(map[string]int64)}

	c.Crab = s.Term(taxonomy.ProductCategory, "crab", "Crab", nil)
	c.CrabCakes = s.Term(taxonomy.ProductCategory, "crab-cakes", "Crab Cakes", &c.Crab)
	c.SoftShell = s.Term(taxonomy.ProductCategory, "soft-shell-crab", "Soft Shell Crab", &c.Crab)
	c.SoftWhole = s.Term(taxonomy.ProductCategory, "whole-soft-shell", "Whole Soft Shell", &c.SoftShell)
	c.Shrimp = s.Term(taxonomy.ProductCategory, "shrimp", "Shrimp", nil)
	c.GradeA = s.Term(taxonomy.Grade, "a", "A", nil)
	c.GradeB = s.Term(taxonomy.Grade, "b", "B", nil)
	c.Foodservice = s.Term(taxonomy.MarketSegment, "foodservice", "Foodservice", nil)
	c.Retail = s.Term(taxonomy.MarketSegment, "retail", "Retail", nil)
	c.Fried = s.Term(taxonomy.CookingMethod, "deep-fried", "Deep Fried", nil)
	c.Baked = s.Term(taxonomy.CookingMethod, "baked", "Baked", nil)

	c.RecipeApps = s.Term(taxonomy.RecipeCategory, "appetizers", "Appetizers", nil)
	c.RecipeBake = s.Term(taxonomy.RecipeCookingMethod, "bake", "Bake", nil)

	s.TermMeta(c.CrabCakes.ID, domain.MetaDisplayOrder, "2")
	s.TermMeta(c.SoftShell.ID, domain.MetaDisplayOrder, "1")
	s.TermMeta(c.SoftShell.ID, domain.MetaFeaturedImage, "/img/soft-shell.jpg")

	p := domain.ContentTypeProduct
	c.Items["classic-cakes"] = s.Item(p, "classic-cakes", "Classic Crab Cakes", domain.StatusPublish, c.Crab, c.CrabCakes, c.GradeA, c.Foodservice, c.Fried)
	c.Items["mini-cakes"] = s.Item(p, "mini-cakes", "Mini Crab Cakes", domain.StatusPublish, c.Crab, c.CrabCakes, c.GradeA, c.Retail, c.Baked)
	c.Items["value-cakes"] = s.Item(p, "value-cakes", "Value Crab Cakes", domain.StatusPublish, c.Crab, c.CrabCakes, c.GradeB, c.Foodservice)
	c.Items["whole-softs"] = s.Item(p, "whole-softs", "Whole Soft Shells", domain.StatusPublish, c.Crab, c.SoftShell, c.SoftWhole, c.GradeA, c.Foodservice)
	c.Items["draft-cakes"] = s.Item(p, "draft-cakes", "Draft Crab Cakes", domain.StatusDraft, c.Crab, c.CrabCakes, c.GradeA, c.Foodservice)
	c.Items["popcorn-shrimp"] = s.Item(p, "popcorn-shrimp", "Popcorn Shrimp", domain.StatusPublish, c.Shrimp, c.GradeB, c.Retail, c.Fried)

	c.Items["crab-dip"] = s.Item(domain.ContentTypeRecipe, "crab-dip", "Crab Dip", domain.StatusPublish, c.RecipeApps, c.RecipeBake)

	return c
}
