package live

import (
	"log"
	"sync"
)

// Listener is one registered receiver of published payloads. The
// pointer is the subscription's identity: unsubscribing requires the
// exact listener that was registered.
type Listener[T any] struct {
	deliver func(T)
}

// NewListener wraps a delivery callback.
func NewListener[T any](deliver func(T)) *Listener[T] {
	return &Listener[T]{deliver: deliver}
}

// Hub is an in-process broadcast registry keyed by K. It holds no
// durable state: no buffering, no replay, no backpressure. A listener
// subscribed after a publish only sees the next publish.
type Hub[K comparable, T any] struct {
	mu        sync.Mutex
	logger    *log.Logger
	listeners map[K][]*Listener[T]
}

// NewHub constructs an empty hub.
func NewHub[K comparable, T any](logger *log.Logger) *Hub[K, T] {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub[K, T]{
		logger:    logger,
		listeners: make(map[K][]*Listener[T]),
	}
}

// Subscribe registers listener for all future publishes under key.
// Multiple listeners per key are permitted; each receives every
// publish independently, in registration order.
func (h *Hub[K, T]) Subscribe(key K, listener *Listener[T]) {
	if h == nil || listener == nil {
		return
	}
	h.mu.Lock()
	h.listeners[key] = append(h.listeners[key], listener)
	h.mu.Unlock()
}

// Unsubscribe removes listener from key. Removing a listener that is
// not registered is a no-op.
func (h *Hub[K, T]) Unsubscribe(key K, listener *Listener[T]) {
	if h == nil || listener == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.listeners[key]
	for i, candidate := range current {
		if candidate == listener {
			h.listeners[key] = append(current[:i:i], current[i+1:]...)
			break
		}
	}
	if len(h.listeners[key]) == 0 {
		delete(h.listeners, key)
	}
}

// Publish delivers payload to every listener currently registered for
// key, in registration order. The listener set is snapshotted first,
// so listeners may subscribe or unsubscribe from inside a callback. A
// panicking listener does not prevent delivery to the rest.
func (h *Hub[K, T]) Publish(key K, payload T) {
	if h == nil {
		return
	}
	h.mu.Lock()
	snapshot := append([]*Listener[T](nil), h.listeners[key]...)
	h.mu.Unlock()

	for _, listener := range snapshot {
		h.deliver(key, listener, payload)
	}
}

// ListenerCount reports how many listeners are registered for key.
func (h *Hub[K, T]) ListenerCount(key K) int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[key])
}

func (h *Hub[K, T]) deliver(key K, listener *Listener[T], payload T) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Printf("live hub: listener panic for key %v: %v", key, r)
		}
	}()
	listener.deliver(payload)
}
