// Package pubsub broadcasts payload-free events to handlers registered on a
// topic.
//
// Emit is synchronous and walks a snapshot of the topic's handlers taken when
// the pass starts: handlers added during a pass do not run in that pass and
// handlers removed during a pass still receive it. Callers that need removal
// to take effect immediately guard their handler themselves. No lock is held
// while handlers run, so On/Off/Emit may be called from inside a handler.
package pubsub

import "sync"

// HandlerID identifies one registration returned by On.
type HandlerID uint64

type registration struct {
	id HandlerID
	fn func()
}

// Emitter fans out events per topic in registration order.
type Emitter[K comparable] struct {
	mu     sync.Mutex
	next   HandlerID
	topics map[K][]registration
}

// New constructs an empty emitter.
func New[K comparable]() *Emitter[K] {
	return &Emitter[K]{topics: make(map[K][]registration)}
}

// On registers fn under topic and returns the handle Off needs. Nil handlers
// are ignored and yield the zero HandlerID.
func (e *Emitter[K]) On(topic K, fn func()) HandlerID {
	if fn == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.topics == nil {
		e.topics = make(map[K][]registration)
	}
	e.next++
	e.topics[topic] = append(e.topics[topic], registration{id: e.next, fn: fn})
	return e.next
}

// Off removes exactly the registration identified by id. It reports whether
// anything was removed.
func (e *Emitter[K]) Off(topic K, id HandlerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	current := e.topics[topic]
	for i, reg := range current {
		if reg.id != id {
			continue
		}
		// copy-on-write so in-flight snapshots keep their backing array
		updated := make([]registration, 0, len(current)-1)
		updated = append(updated, current[:i]...)
		updated = append(updated, current[i+1:]...)
		if len(updated) == 0 {
			delete(e.topics, topic)
		} else {
			e.topics[topic] = updated
		}
		return true
	}
	return false
}

// Emit invokes every handler registered on topic when the call starts.
func (e *Emitter[K]) Emit(topic K) {
	e.mu.Lock()
	handlers := e.topics[topic]
	e.mu.Unlock()

	for _, reg := range handlers {
		reg.fn()
	}
}

// Count returns the number of handlers registered on topic.
func (e *Emitter[K]) Count(topic K) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.topics[topic])
}
