package client

import "sync"

// EventBus delivers the single terminal signal: the session can no longer be
// refreshed. Emission is driven through Session.MarkRefreshFailed, so
// subscribers see at most one event per failure episode.
type EventBus struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]func())}
}

// Subscribe registers fn and returns its unsubscribe function.
func (b *EventBus) Subscribe(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *EventBus) emit() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
