package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitsync/internal/realtime"
	"habitsync/internal/remote"
)

func TestMemoryStoreFiltersByUser(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, "habits", "h1", map[string]any{"user_id": "usr_a", "title": "Run"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, "habits", "h2", map[string]any{"user_id": "usr_b", "title": "Read"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	docs, err := s.List(ctx, "habits", remote.Equal("user_id", "usr_a"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "h1" {
		t.Fatalf("expected only h1, got %v", docs)
	}
}

func TestMemoryStoreGreaterThanEqual(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	old := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	recent := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	cutoff := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)

	s.Create(ctx, "habit_completions", "c1", map[string]any{"user_id": "usr_a", "completed_at": old})
	s.Create(ctx, "habit_completions", "c2", map[string]any{"user_id": "usr_a", "completed_at": recent})

	docs, err := s.List(ctx, "habit_completions",
		remote.Equal("user_id", "usr_a"),
		remote.GreaterThanEqual("completed_at", cutoff))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "c2" {
		t.Fatalf("expected only c2, got %v", docs)
	}
}

func TestMemoryStoreLimit(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	s.Create(ctx, "habits", "h1", map[string]any{"user_id": "usr_a"})
	s.Create(ctx, "habits", "h2", map[string]any{"user_id": "usr_a"})
	s.Create(ctx, "habits", "h3", map[string]any{"user_id": "usr_a"})

	docs, err := s.List(ctx, "habits", remote.Limit(2))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	// Oldest first.
	if docs[0].ID != "h1" || docs[1].ID != "h2" {
		t.Fatalf("expected h1, h2, got %s, %s", docs[0].ID, docs[1].ID)
	}
}

func TestMemoryStoreUpdateMergesFields(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	s.Create(ctx, "habits", "h1", map[string]any{"user_id": "usr_a", "title": "Run", "streak_count": 0})

	doc, err := s.Update(ctx, "habits", "h1", map[string]any{"streak_count": 3})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if doc.Fields["streak_count"] != 3 {
		t.Fatalf("expected streak_count 3, got %v", doc.Fields["streak_count"])
	}
	if doc.Fields["title"] != "Run" {
		t.Fatalf("expected title preserved, got %v", doc.Fields["title"])
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	if _, err := s.Update(ctx, "habits", "missing", map[string]any{}); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "habits", "missing"); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStorePublishesEvents(t *testing.T) {
	bus := realtime.NewMemoryBus()
	s := NewMemoryStore(bus)
	ctx := context.Background()

	events := make([]remote.Event, 0, 3)
	unsubscribe, err := bus.Subscribe(ctx, "habits", func(event remote.Event) {
		events = append(events, event)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	s.Create(ctx, "habits", "h1", map[string]any{"user_id": "usr_a"})
	s.Update(ctx, "habits", "h1", map[string]any{"streak_count": 1})
	s.Delete(ctx, "habits", "h1")

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	kinds := []remote.EventKind{remote.EventCreate, remote.EventUpdate, remote.EventDelete}
	for i, kind := range kinds {
		if events[i].Kind != kind {
			t.Fatalf("event %d: expected %s, got %s", i, kind, events[i].Kind)
		}
	}
}
