// Package bus provides a small in-process broadcast channel used to tell
// independent consumers that shared data changed.
package bus

import "sync"

// Handler is invoked on publish. Signals carry no payload; a handler that
// needs the new state refetches it.
type Handler func()

// Bus delivers a published signal to every handler subscribed at publish
// time. There is no buffering for late subscribers.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]Handler
}

// New creates an empty Bus. Each service wires its own instance; nothing
// is process-global.
func New() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers handler for signal and returns a function that
// removes the registration.
func (b *Bus) Subscribe(signal string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[signal] == nil {
		b.subs[signal] = make(map[int]Handler)
	}
	b.subs[signal][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[signal], id)
	}
}

// Publish synchronously invokes every handler currently subscribed to
// signal. Handlers run outside the bus lock so they may publish or
// subscribe themselves.
func (b *Bus) Publish(signal string) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[signal]))
	for _, h := range b.subs[signal] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}
