// Package bus implements the small synchronous event bus the refresh core
// uses to react to navigation and kubeconfig transitions and to publish its
// own lifecycle events. It is the in-process analogue of
// runtime.EventsEmit/EventsOn; backend.App bridges it onto the real Wails
// runtime the same way it already bridges Logger events (see
// backend/app.go's emitEvent).
package bus

import "sync"

// Bus is a topic-keyed, multi-producer/multi-consumer publish-subscribe hub.
// Handlers run synchronously on the publishing goroutine, matching the
// single-threaded cooperative model the refresh core assumes (spec.md §5).
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string]map[uint64]func(any)
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{topics: make(map[string]map[uint64]func(any))}
}

// Subscribe registers handler for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, handler func(any)) (unsubscribe func()) {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]func(any))
	}
	id := b.nextID
	b.nextID++
	b.topics[topic][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.topics[topic]
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.topics, topic)
		}
	}
}

// Publish invokes every handler currently subscribed to topic with payload.
// Handlers registered or removed during a Publish call do not affect the
// current delivery; Publish snapshots the handler set up front.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	handlers := make([]func(any), 0, len(b.topics[topic]))
	for _, h := range b.topics[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}
