package permalink

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/domain/task"
	"handy/catalog/internal/invalidation"
	"handy/catalog/internal/repository/repotest"
	"handy/catalog/internal/state"
	"handy/catalog/internal/taxonomy"
)

func newRewriter(c *repotest.Catalog) (*Rewriter, *MemoryRuleStore) {
	repo := c.Repo()
	rules := NewMemoryRuleStore()
	return NewRewriter(New(repo, repo, nil), repo, repo, rules, 1000), rules
}

func TestRegenerateStoresAndMovesRules(t *testing.T) {
	c := repotest.NewCatalog(t)
	rw, rules := newRewriter(c)
	ctx := context.Background()
	id := c.Items["classic-cakes"]

	require.NoError(t, rw.Regenerate(ctx, id))
	got, ok, err := rules.Lookup(ctx, "/products/crab/crab-cakes/classic-cakes/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got)

	require.NoError(t, c.DB.Exec(fmt.Sprintf("UPDATE %s SET post_name = ? WHERE id = ?", c.Tables.Posts), "original-cakes", id).Error)
	require.NoError(t, rw.Regenerate(ctx, id))

	_, ok, _ = rules.Lookup(ctx, "/products/crab/crab-cakes/classic-cakes/")
	assert.False(t, ok, "the old path must stop matching")
	_, ok, _ = rules.Lookup(ctx, "/products/crab/crab-cakes/original-cakes/")
	assert.True(t, ok)
	assert.Equal(t, 1, rules.Len())
}

func TestRegenerateDropsUnpublished(t *testing.T) {
	c := repotest.NewCatalog(t)
	rw, rules := newRewriter(c)
	ctx := context.Background()

	draft := c.Items["draft-cakes"]
	require.NoError(t, rules.Put(ctx, "/products/crab/crab-cakes/draft-cakes/", draft))
	require.NoError(t, rw.Regenerate(ctx, draft))
	assert.Zero(t, rules.Len())

	require.NoError(t, rw.Regenerate(ctx, 424242))
}

func TestRegenerateTerm(t *testing.T) {
	c := repotest.NewCatalog(t)
	rw, rules := newRewriter(c)
	ctx := context.Background()

	n, err := rw.RegenerateTerm(ctx, taxonomy.ProductCategory, c.SoftShell.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = rw.RegenerateTerm(ctx, taxonomy.ProductCategory, c.Crab.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = rw.RegenerateTerm(ctx, taxonomy.Grade, c.GradeA.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = rw.RegenerateTerm(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 6, rules.Len())
}

func TestResolveRoutes(t *testing.T) {
	c := repotest.NewCatalog(t)
	rw, rules := newRewriter(c)
	ctx := context.Background()

	require.NoError(t, rw.Regenerate(ctx, c.Items["classic-cakes"]))

	route, err := rw.Resolve(ctx, "/products/crab/crab-cakes/classic-cakes")
	require.NoError(t, err)
	assert.Equal(t, RouteItem, route.Kind)
	assert.Equal(t, c.Items["classic-cakes"], route.ItemID)

	route, err = rw.Resolve(ctx, "/products/")
	require.NoError(t, err)
	assert.Equal(t, RouteArchive, route.Kind)
	assert.Nil(t, route.Category)

	route, err = rw.Resolve(ctx, "/products/crab/crab-cakes/")
	require.NoError(t, err)
	assert.Equal(t, RouteArchive, route.Kind)
	assert.Equal(t, domain.ContextBoundary{Category: "crab", Subcategory: "crab-cakes"}, route.Context())

	for _, p := range []string{"/products/crab/shrimp/", "/products/crab-cakes/", "/about/", "/product/crab/", "/recipes/crab/"} {
		route, err = rw.Resolve(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, RouteNone, route.Kind, p)
	}

	// no rule yet, but the path is the item's canonical URL
	route, err = rw.Resolve(ctx, "/products/crab/crab-cakes/mini-cakes/")
	require.NoError(t, err)
	assert.Equal(t, RouteItem, route.Kind)
	_, ok, _ := rules.Lookup(ctx, "/products/crab/crab-cakes/mini-cakes/")
	assert.True(t, ok)

	route, err = rw.Resolve(ctx, "/products/shrimp/mini-cakes/")
	require.NoError(t, err)
	assert.Equal(t, RouteNone, route.Kind)
}

type recordingQueue struct {
	tasks []task.Task
	err   error
}

func (q *recordingQueue) AddTask(_ context.Context, t task.Task) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, t)
	return "1-0", nil
}

func TestSchedulerCoalescesUntilReleased(t *testing.T) {
	q := &recordingQueue{}
	st := state.NewMemoryStateManager()
	s := NewScheduler(q, st, time.Minute)
	ctx := context.Background()

	ok, err := s.ScheduleItem(ctx, 7, domain.ContentTypeProduct, "post_published")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ScheduleItem(ctx, 7, domain.ContentTypeProduct, "post_saved")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, q.tasks, 1)

	require.NoError(t, st.Release(ctx, ItemKey(7)))
	ok, err = s.ScheduleItem(ctx, 7, domain.ContentTypeProduct, "post_saved")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, q.tasks, 2)
}

func TestSchedulerReleasesGuardWhenQueueFails(t *testing.T) {
	q := &recordingQueue{err: errors.New("redis down")}
	st := state.NewMemoryStateManager()
	s := NewScheduler(q, st, time.Minute)
	ctx := context.Background()

	_, err := s.ScheduleTerm(ctx, taxonomy.ProductCategory, 1, "term_edited")
	require.Error(t, err)

	acquired, err := st.Acquire(ctx, TermKey(taxonomy.ProductCategory, 1), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestSchedulerEventFiltering(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(q, state.NewMemoryStateManager(), time.Minute)
	ctx := context.Background()

	events := []invalidation.Event{
		{Type: invalidation.EventPostSaved, ObjectID: 1, ContentType: domain.ContentTypeProduct, OldStatus: "draft", NewStatus: "draft"},
		{Type: invalidation.EventPostSaved, ObjectID: 2, ContentType: "page", OldStatus: "publish", NewStatus: "publish"},
		{Type: invalidation.EventTermEdited, ObjectID: 3, Taxonomy: taxonomy.Grade},
		{Type: invalidation.EventPostPublished, ObjectID: 4, ContentType: domain.ContentTypeProduct, OldStatus: "draft", NewStatus: "publish"},
		{Type: invalidation.EventTermDeleted, ObjectID: 5, Taxonomy: taxonomy.ProductCategory},
		{Type: invalidation.EventVersionBump},
	}
	for _, ev := range events {
		require.NoError(t, s.Invalidate(ctx, invalidation.ScopeRewrites, ev))
	}

	require.Len(t, q.tasks, 3)
	assert.Equal(t, &task.RewriteItemTask{ItemID: 4, ContentType: domain.ContentTypeProduct, Reason: "post_published"}, q.tasks[0])
	assert.Equal(t, &task.RewriteFlushTask{Taxonomy: taxonomy.ProductCategory, Reason: "term_deleted"}, q.tasks[1])
	assert.Equal(t, &task.RewriteFlushTask{Reason: "version_bump"}, q.tasks[2])
}
