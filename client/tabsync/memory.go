package tabsync

import (
	"sync"
)

// MemoryHub connects in-process buses. Every bus attached to the hub
// receives what the others send.
type MemoryHub struct {
	mu    sync.Mutex
	buses map[*MemoryBus]struct{}
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{buses: make(map[*MemoryBus]struct{})}
}

// NewBus attaches a new bus to the hub.
func (h *MemoryHub) NewBus() *MemoryBus {
	b := &MemoryBus{
		hub:   h,
		subs:  make(map[int]func(Message)),
		queue: make(chan Message, 16),
		done:  make(chan struct{}),
	}
	go b.dispatch()

	h.mu.Lock()
	h.buses[b] = struct{}{}
	h.mu.Unlock()

	return b
}

func (h *MemoryHub) broadcast(from *MemoryBus, msg Message) {
	h.mu.Lock()
	targets := make([]*MemoryBus, 0, len(h.buses))
	for b := range h.buses {
		if b != from {
			targets = append(targets, b)
		}
	}
	h.mu.Unlock()

	for _, b := range targets {
		b.deliver(msg)
	}
}

func (h *MemoryHub) detach(b *MemoryBus) {
	h.mu.Lock()
	delete(h.buses, b)
	h.mu.Unlock()
}

// MemoryBus is one endpoint on a MemoryHub. Delivery runs on a single
// per-bus goroutine so handlers of one bus never block senders.
type MemoryBus struct {
	hub       *MemoryHub
	mu        sync.Mutex
	next      int
	subs      map[int]func(Message)
	queue     chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func (b *MemoryBus) Send(msg Message) {
	b.hub.broadcast(b, msg)
}

func (b *MemoryBus) Subscribe(fn func(Message)) func() {
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

func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() {
		b.hub.detach(b)
		close(b.done)
	})
	return nil
}

func (b *MemoryBus) deliver(msg Message) {
	select {
	case b.queue <- msg:
	case <-b.done:
	}
}

func (b *MemoryBus) dispatch() {
	for {
		select {
		case msg := <-b.queue:
			b.mu.Lock()
			fns := make([]func(Message), 0, len(b.subs))
			for _, fn := range b.subs {
				fns = append(fns, fn)
			}
			b.mu.Unlock()

			for _, fn := range fns {
				fn(msg)
			}
		case <-b.done:
			return
		}
	}
}
