package realtime

import (
	"context"
	"sync"

	"habitsync/internal/remote"
)

// MemoryBus is an in-process Bus for single-process deployments and tests.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[int]func(remote.Event)
	next int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]func(remote.Event))}
}

func (b *MemoryBus) Publish(_ context.Context, event remote.Event) error {
	b.mu.Lock()
	handlers := make([]func(remote.Event), 0, len(b.subs[event.Collection]))
	for _, fn := range b.subs[event.Collection] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	// Callbacks run outside the lock, each to completion.
	for _, fn := range handlers {
		fn(event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, collection string, fn func(remote.Event)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[collection] == nil {
		b.subs[collection] = make(map[int]func(remote.Event))
	}
	id := b.next
	b.next++
	b.subs[collection][id] = fn

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[collection], id)
	}
	return unsubscribe, nil
}
