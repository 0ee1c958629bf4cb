package permalink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/domain/task"
	"handy/catalog/internal/invalidation"
	"handy/catalog/internal/queue"
	"handy/catalog/internal/state"
	"handy/catalog/internal/taxonomy"
)

func ItemKey(itemID int64) string {
	return "rewrite:item:" + strconv.FormatInt(itemID, 10)
}

func TermKey(tax string, termID int64) string {
	return "rewrite:term:" + tax + ":" + strconv.FormatInt(termID, 10)
}

// Scheduler defers rule regeneration onto the task queue. While a request for
// the same item or term is pending, new requests are coalesced into it; the
// worker releases the guard when it starts.
type Scheduler struct {
	queue    queue.Enqueuer
	state    state.StateManager
	debounce time.Duration
}

func NewScheduler(q queue.Enqueuer, st state.StateManager, debounce time.Duration) *Scheduler {
	return &Scheduler{queue: q, state: st, debounce: debounce}
}

func (s *Scheduler) ScheduleItem(ctx context.Context, itemID int64, ct domain.ContentType, reason string) (bool, error) {
	return s.schedule(ctx, ItemKey(itemID), &task.RewriteItemTask{ItemID: itemID, ContentType: ct, Reason: reason})
}

func (s *Scheduler) ScheduleTerm(ctx context.Context, tax string, termID int64, reason string) (bool, error) {
	return s.schedule(ctx, TermKey(tax, termID), &task.RewriteFlushTask{Taxonomy: tax, TermID: termID, Reason: reason})
}

func (s *Scheduler) schedule(ctx context.Context, key string, t task.Task) (bool, error) {
	acquired, err := s.state.Acquire(ctx, key, s.debounce)
	if err != nil {
		log.Warnf("⚠️ Debounce guard unavailable for %s, scheduling anyway: %v", key, err)
		acquired = true
	}
	if !acquired {
		log.WithField("key", key).Debug("Rewrite already pending, coalescing")
		return false, nil
	}

	if _, err := s.queue.AddTask(ctx, t); err != nil {
		if relErr := s.state.Release(ctx, key); relErr != nil {
			log.Warnf("⚠️ Failed to release debounce guard %s: %v", key, relErr)
		}
		return false, fmt.Errorf("failed to schedule %s: %w", t.TaskType(), err)
	}
	return true, nil
}

// Invalidate subscribes the scheduler to the rewrites scope.
func (s *Scheduler) Invalidate(ctx context.Context, _ invalidation.Scope, ev invalidation.Event) error {
	reason := string(ev.Type)
	if ev.IsPostEvent() {
		if _, ok := domain.ParseContentType(string(ev.ContentType)); !ok {
			return nil
		}
	}

	switch ev.Type {
	case invalidation.EventPostSaved:
		// edits to drafts never touch public URLs
		if ev.NewStatus != domain.StatusPublish && ev.OldStatus != domain.StatusPublish {
			return nil
		}
		_, err := s.ScheduleItem(ctx, ev.ObjectID, ev.ContentType, reason)
		return err
	case invalidation.EventPostPublished, invalidation.EventPostDeleted, invalidation.EventObjectTermsSet:
		_, err := s.ScheduleItem(ctx, ev.ObjectID, ev.ContentType, reason)
		return err
	case invalidation.EventTermEdited:
		if !isCategoryTaxonomy(ev.Taxonomy) {
			return nil
		}
		_, err := s.ScheduleTerm(ctx, ev.Taxonomy, ev.ObjectID, reason)
		return err
	case invalidation.EventTermDeleted:
		if !isCategoryTaxonomy(ev.Taxonomy) {
			return nil
		}
		// relationships are gone with the term, so rebuild the whole type
		_, err := s.ScheduleTerm(ctx, ev.Taxonomy, 0, reason)
		return err
	case invalidation.EventVersionBump:
		_, err := s.ScheduleTerm(ctx, "", 0, reason)
		return err
	}
	return nil
}

func isCategoryTaxonomy(tax string) bool {
	ct, ok := taxonomy.ContentTypeForTaxonomy(tax)
	if !ok {
		return false
	}
	m, err := taxonomy.For(ct)
	return err == nil && m.CategoryTaxonomy == tax
}
