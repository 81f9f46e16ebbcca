package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"habitsync/internal/logger"
	"habitsync/internal/remote"
)

// MemoryStore is an in-process remote.Store used by tests and local
// development. It applies the same query semantics as PostgresStore and
// publishes change events to the bus after each write.
type MemoryStore struct {
	mu   sync.Mutex
	bus  remote.Bus
	docs map[string]map[string]remote.Document
	seq  int64
}

func NewMemoryStore(bus remote.Bus) *MemoryStore {
	return &MemoryStore{
		bus:  bus,
		docs: make(map[string]map[string]remote.Document),
	}
}

func (s *MemoryStore) List(ctx context.Context, collection string, queries ...remote.Query) ([]remote.Document, error) {
	s.mu.Lock()
	docs := make([]remote.Document, 0, len(s.docs[collection]))
	for _, doc := range s.docs[collection] {
		docs = append(docs, doc)
	}
	s.mu.Unlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	limit := 0
	matched := make([]remote.Document, 0, len(docs))
	for _, doc := range docs {
		keep := true
		for _, q := range queries {
			switch q.Op {
			case remote.OpEqual:
				if !fieldEquals(doc, q.Field, q.Value) {
					keep = false
				}
			case remote.OpGreaterThanEqual:
				if !fieldAtLeast(doc, q.Field, q.Value) {
					keep = false
				}
			}
		}
		if keep {
			matched = append(matched, doc)
		}
	}
	for _, q := range queries {
		if q.Op == remote.OpLimit {
			if n, ok := q.Value.(int); ok && n > 0 {
				limit = n
			}
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	s.mu.Lock()
	userID, _ := fields["user_id"].(string)
	s.seq++
	doc := remote.Document{
		ID:         id,
		Collection: collection,
		UserID:     userID,
		CreatedAt:  time.Now().Add(time.Duration(s.seq) * time.Microsecond),
		Fields:     copyFields(fields),
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]remote.Document)
	}
	s.docs[collection][id] = doc
	s.mu.Unlock()

	s.publish(ctx, remote.EventCreate, doc)
	return doc, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	s.mu.Lock()
	doc, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return remote.Document{}, remote.ErrNotFound
	}
	merged := copyFields(doc.Fields)
	for k, v := range fields {
		merged[k] = v
	}
	doc.Fields = merged
	s.docs[collection][id] = doc
	s.mu.Unlock()

	s.publish(ctx, remote.EventUpdate, doc)
	return doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	doc, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return remote.ErrNotFound
	}
	delete(s.docs[collection], id)
	s.mu.Unlock()

	s.publish(ctx, remote.EventDelete, doc)
	return nil
}

func (s *MemoryStore) publish(ctx context.Context, kind remote.EventKind, doc remote.Document) {
	if s.bus == nil {
		return
	}
	event := remote.Event{Kind: kind, Collection: doc.Collection, Document: doc}
	if err := s.bus.Publish(ctx, event); err != nil {
		logger.Warn("publish change event failed", "collection", doc.Collection, "kind", kind, "error", err)
	}
}

func fieldEquals(doc remote.Document, field string, value any) bool {
	if field == "user_id" {
		return doc.UserID == value
	}
	return doc.Fields[field] == value
}

func fieldAtLeast(doc remote.Document, field string, value any) bool {
	want, ok := value.(string)
	if !ok {
		return false
	}
	got, ok := doc.Fields[field].(string)
	if !ok {
		return false
	}
	// Timestamps are RFC3339 strings, so string order is time order.
	return got >= want
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
