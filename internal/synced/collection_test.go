package synced

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"habitsync/internal/realtime"
	"habitsync/internal/remote"
)

type note struct {
	ID   string
	Text string
}

func decodeNote(doc remote.Document) (note, error) {
	text, ok := doc.Fields["text"].(string)
	if !ok {
		return note{}, fmt.Errorf("note %s: missing text", doc.ID)
	}
	return note{ID: doc.ID, Text: text}, nil
}

// fakeStore serves canned documents and records the queries it saw.
type fakeStore struct {
	mu      sync.Mutex
	docs    []remote.Document
	failing bool
	queries [][]remote.Query
}

func (f *fakeStore) List(_ context.Context, _ string, queries ...remote.Query) ([]remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, queries)
	if f.failing {
		return nil, errors.New("network failure")
	}
	out := make([]remote.Document, len(f.docs))
	copy(out, f.docs)
	return out, nil
}

func (f *fakeStore) Create(context.Context, string, string, map[string]any) (remote.Document, error) {
	return remote.Document{}, errors.New("not implemented")
}

func (f *fakeStore) Update(context.Context, string, string, map[string]any) (remote.Document, error) {
	return remote.Document{}, errors.New("not implemented")
}

func (f *fakeStore) Delete(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) setDocs(docs []remote.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = docs
}

func (f *fakeStore) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func noteDoc(id, text string) remote.Document {
	return remote.Document{ID: id, Collection: "notes", UserID: "user-1", Fields: map[string]any{"text": text}}
}

func TestActivateFetchesInitialContents(t *testing.T) {
	store := &fakeStore{docs: []remote.Document{noteDoc("n1", "one"), noteDoc("n2", "two")}}
	bus := realtime.NewMemoryBus()
	col := NewCollection("notes", store, bus, decodeNote, nil)

	if err := col.Activate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	defer col.Deactivate()

	items := col.Items()
	if len(items) != 2 || items[0].Text != "one" || items[1].Text != "two" {
		t.Fatalf("unexpected initial contents: %+v", items)
	}

	// The fetch was scoped to the user.
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.queries) == 0 || len(store.queries[0]) != 1 || store.queries[0][0].Field != "user_id" {
		t.Fatalf("expected user_id equality query, got %+v", store.queries)
	}
}

func TestEventTriggersRefetch(t *testing.T) {
	store := &fakeStore{docs: []remote.Document{noteDoc("n1", "one")}}
	bus := realtime.NewMemoryBus()
	col := NewCollection("notes", store, bus, decodeNote, nil)

	ctx := context.Background()
	if err := col.Activate(ctx, "user-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	defer col.Deactivate()

	for _, kind := range []remote.EventKind{remote.EventCreate, remote.EventUpdate, remote.EventDelete} {
		store.setDocs([]remote.Document{noteDoc("n1", "updated-"+string(kind))})
		if err := bus.Publish(ctx, remote.Event{Kind: kind, Collection: "notes"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		items := col.Items()
		if len(items) != 1 || items[0].Text != "updated-"+string(kind) {
			t.Fatalf("expected refetch after %s event, got %+v", kind, items)
		}
	}
}

func TestFetchFailureKeepsLastKnownGood(t *testing.T) {
	store := &fakeStore{docs: []remote.Document{noteDoc("n1", "one")}}
	bus := realtime.NewMemoryBus()
	col := NewCollection("notes", store, bus, decodeNote, nil)

	ctx := context.Background()
	if err := col.Activate(ctx, "user-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	defer col.Deactivate()

	store.setFailing(true)
	if err := bus.Publish(ctx, remote.Event{Kind: remote.EventUpdate, Collection: "notes"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	items := col.Items()
	if len(items) != 1 || items[0].Text != "one" {
		t.Fatalf("expected stale-but-available contents, got %+v", items)
	}
}

func TestUndecodableDocumentsAreSkipped(t *testing.T) {
	bad := remote.Document{ID: "n2", Collection: "notes", UserID: "user-1", Fields: map[string]any{"text": 42}}
	store := &fakeStore{docs: []remote.Document{noteDoc("n1", "one"), bad}}
	bus := realtime.NewMemoryBus()
	col := NewCollection("notes", store, bus, decodeNote, nil)

	if err := col.Activate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	defer col.Deactivate()

	items := col.Items()
	if len(items) != 1 || items[0].ID != "n1" {
		t.Fatalf("expected the bad document to be skipped, got %+v", items)
	}
}

func TestDeactivateStopsEventDelivery(t *testing.T) {
	store := &fakeStore{docs: []remote.Document{noteDoc("n1", "one")}}
	bus := realtime.NewMemoryBus()
	col := NewCollection("notes", store, bus, decodeNote, nil)

	ctx := context.Background()
	if err := col.Activate(ctx, "user-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	col.Deactivate()

	store.setDocs([]remote.Document{noteDoc("n1", "changed")})
	if err := bus.Publish(ctx, remote.Event{Kind: remote.EventUpdate, Collection: "notes"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	items := col.Items()
	if len(items) != 1 || items[0].Text != "one" {
		t.Fatalf("deactivated collection refetched: %+v", items)
	}
}

func TestDeactivateTwiceIsSafe(t *testing.T) {
	store := &fakeStore{}
	bus := realtime.NewMemoryBus()
	col := NewCollection("notes", store, bus, decodeNote, nil)

	if err := col.Activate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	col.Deactivate()
	col.Deactivate()

	// And reactivation still works after a full stop.
	if err := col.Activate(context.Background(), "user-2"); err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	col.Deactivate()
}

func TestActivateWhileActiveFails(t *testing.T) {
	store := &fakeStore{}
	bus := realtime.NewMemoryBus()
	col := NewCollection("notes", store, bus, decodeNote, nil)

	if err := col.Activate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	defer col.Deactivate()

	if err := col.Activate(context.Background(), "user-2"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}
