package invalidation

import (
	"fmt"

	"handy/catalog/internal/domain"
)

type EventType string

const (
	EventPostSaved       EventType = "post_saved"
	EventPostDeleted     EventType = "post_deleted"
	EventPostPublished   EventType = "post_published"
	EventTermCreated     EventType = "term_created"
	EventTermEdited      EventType = "term_edited"
	EventTermDeleted     EventType = "term_deleted"
	EventTermMetaChanged EventType = "term_meta_changed"
	EventObjectTermsSet  EventType = "object_terms_set"
	EventVersionBump     EventType = "version_bump"
)

// Scope is a class of derived data that one event can make stale.
type Scope string

const (
	ScopeQueries  Scope = "queries"
	ScopeTerms    Scope = "terms"
	ScopeRewrites Scope = "rewrites"
)

var Scopes = []Scope{ScopeQueries, ScopeTerms, ScopeRewrites}

var eventScopes = map[EventType][]Scope{
	EventPostSaved:       {ScopeQueries, ScopeRewrites},
	EventPostDeleted:     {ScopeQueries, ScopeRewrites},
	EventPostPublished:   {ScopeQueries, ScopeRewrites},
	EventTermCreated:     {ScopeQueries, ScopeTerms},
	EventTermEdited:      {ScopeQueries, ScopeTerms, ScopeRewrites},
	EventTermDeleted:     {ScopeQueries, ScopeTerms, ScopeRewrites},
	EventTermMetaChanged: {ScopeQueries, ScopeTerms},
	EventObjectTermsSet:  {ScopeQueries, ScopeRewrites},
	EventVersionBump:     {ScopeQueries, ScopeTerms, ScopeRewrites},
}

// Event is a content mutation reported by the host CMS. ObjectID is a post id
// for post events and a term id for term events.
type Event struct {
	Type        EventType          `json:"type"`
	ObjectID    int64              `json:"object_id"`
	ContentType domain.ContentType `json:"content_type,omitempty"`
	Taxonomy    string             `json:"taxonomy,omitempty"`
	OldStatus   string             `json:"old_status,omitempty"`
	NewStatus   string             `json:"new_status,omitempty"`
	MetaKey     string             `json:"meta_key,omitempty"`
}

func (e Event) Validate() error {
	if _, ok := eventScopes[e.Type]; !ok {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// ScopesFor returns the scopes made stale by an event type.
func ScopesFor(t EventType) []Scope {
	return eventScopes[t]
}

// IsPostEvent reports whether ObjectID refers to a post.
func (e Event) IsPostEvent() bool {
	switch e.Type {
	case EventPostSaved, EventPostDeleted, EventPostPublished, EventObjectTermsSet:
		return true
	default:
		return false
	}
}

// BecamePublished is true for the draft (or pending/future) to publish
// transition.
func (e Event) BecamePublished() bool {
	return e.NewStatus == domain.StatusPublish && e.OldStatus != domain.StatusPublish
}
