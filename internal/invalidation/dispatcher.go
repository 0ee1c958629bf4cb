package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Subscriber reacts to one scope becoming stale.
type Subscriber interface {
	Invalidate(ctx context.Context, scope Scope, ev Event) error
}

type SubscriberFunc func(ctx context.Context, scope Scope, ev Event) error

func (f SubscriberFunc) Invalidate(ctx context.Context, scope Scope, ev Event) error {
	return f(ctx, scope, ev)
}

type subscription struct {
	name string
	sub  Subscriber
}

// Dispatcher fans a mutation event out to the subscribers of every scope the
// event touches.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[Scope][]subscription
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[Scope][]subscription)}
}

func (d *Dispatcher) Subscribe(scope Scope, name string, sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[scope] = append(d.subs[scope], subscription{name: name, sub: sub})
}

// Dispatch runs every matching subscriber. A failing subscriber does not stop
// the others; all failures are returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	for _, scope := range ScopesFor(ev.Type) {
		for _, s := range d.subs[scope] {
			if err := s.sub.Invalidate(ctx, scope, ev); err != nil {
				log.WithFields(log.Fields{
					"event":      ev.Type,
					"object_id":  ev.ObjectID,
					"scope":      scope,
					"subscriber": s.name,
				}).Errorf("❌ Invalidation failed: %v", err)
				errs = append(errs, fmt.Errorf("%s/%s: %w", scope, s.name, err))
			}
		}
	}

	log.WithFields(log.Fields{"event": ev.Type, "object_id": ev.ObjectID}).Debug("Dispatched invalidation event")
	return errors.Join(errs...)
}
