// Package synced keeps local caches of remote document collections fresh.
// A collection combines one initial fetch scoped to the current user with a
// subscription to the collection's change-event channel; any event triggers a
// full refetch rather than an incremental patch. Per-user volumes are small
// enough that simplicity wins.
package synced

import (
	"context"
	"errors"
	"sync"

	"habitsync/internal/logger"
	"habitsync/internal/remote"
)

// ErrAlreadyActive is returned when Activate is called on an active collection.
var ErrAlreadyActive = errors.New("collection already active")

// Collection is a local, ordered-by-fetch cache of decoded documents.
// Snapshot reads return copies; event callbacks and readers never share a
// slice.
type Collection[T any] struct {
	name    string
	store   remote.Store
	bus     remote.Bus
	decode  func(remote.Document) (T, error)
	queries func(userID string) []remote.Query

	mu          sync.Mutex
	items       []T
	userID      string
	active      bool
	unsubscribe func()
}

// NewCollection builds an inactive collection. queries scopes the fetch; nil
// defaults to equality on user_id.
func NewCollection[T any](
	name string,
	store remote.Store,
	bus remote.Bus,
	decode func(remote.Document) (T, error),
	queries func(userID string) []remote.Query,
) *Collection[T] {
	if queries == nil {
		queries = func(userID string) []remote.Query {
			return []remote.Query{remote.Equal("user_id", userID)}
		}
	}
	return &Collection[T]{
		name:    name,
		store:   store,
		bus:     bus,
		decode:  decode,
		queries: queries,
	}
}

// Activate issues the initial fetch and opens the event subscription. The
// initial fetch failing is tolerated (the cache starts empty and the next
// event heals it); a subscription failure is not, since without it the cache
// would go permanently stale.
func (c *Collection[T]) Activate(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.active = true
	c.userID = userID
	c.mu.Unlock()

	c.refetch(ctx)

	unsubscribe, err := c.bus.Subscribe(ctx, c.name, func(event remote.Event) {
		switch event.Kind {
		case remote.EventCreate, remote.EventUpdate, remote.EventDelete:
			c.refetch(ctx)
		}
	})
	if err != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return nil
}

// Deactivate closes the subscription. Idempotent; must run before the owning
// user context changes so no stale-user events reach the next user's view.
func (c *Collection[T]) Deactivate() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.active = false
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Refresh refetches on demand, for writers that cannot wait for the event.
func (c *Collection[T]) Refresh(ctx context.Context) {
	c.refetch(ctx)
}

// Items returns a snapshot of the cached documents in fetch order.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// refetch replaces the cache with a fresh fetch. Failures are logged and
// swallowed, keeping the last known good contents: stale-but-available over
// fail-fast.
func (c *Collection[T]) refetch(ctx context.Context) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	userID := c.userID
	c.mu.Unlock()

	docs, err := c.store.List(ctx, c.name, c.queries(userID)...)
	if err != nil {
		logger.Warn("background fetch failed, keeping cached contents", "collection", c.name, "error", err)
		return
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := c.decode(doc)
		if err != nil {
			logger.Warn("skipping undecodable document", "collection", c.name, "document", doc.ID, "error", err)
			continue
		}
		items = append(items, item)
	}

	c.mu.Lock()
	if c.active && c.userID == userID {
		c.items = items
	}
	c.mu.Unlock()
}
