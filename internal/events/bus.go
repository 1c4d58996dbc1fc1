// Package events is the in-process, per-collection event dispatcher.
// Grounded on the pack's own synchronous dispatcher
// (steveyegge-beads/internal/eventbus/bus.go: Bus{handlers []Handler; mu
// sync.RWMutex}, Register/Unregister/Dispatch sequential-in-order), stripped
// of its NATS/JetStream publishing and retargeted at the typed
// per-collection payloads this core emits.
package events

import "sync"

// Type names a collection lifecycle event.
type Type string

const (
	Insert            Type = "insert"
	InsertMany        Type = "insertMany"
	Update            Type = "update"
	UpdateMany        Type = "updateMany"
	Replace           Type = "replace"
	Delete            Type = "delete"
	DeleteMany        Type = "deleteMany"
	FindOneAndUpdate  Type = "findOneAndUpdate"
	FindOneAndReplace Type = "findOneAndReplace"
	FindOneAndDelete  Type = "findOneAndDelete"
	Drop              Type = "drop"
	Error             Type = "error"
)

// Event is the payload delivered to a Handler.
type Event struct {
	Type       Type
	Collection string
	Payload    any
}

// Handler observes one Event.
type Handler func(Event)

// Bus dispatches events synchronously, in the order handlers registered,
// to the handlers subscribed for a given Type. It is lazily allocated: a
// Bus with no handlers registered never builds an Event.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	inErrorEmit bool
}

// New returns a ready-to-use Bus. Its handler map is allocated by the
// first On call.
func New() *Bus {
	return &Bus{}
}

// On subscribes h to events of type t and returns a func that removes it.
func (b *Bus) On(t Type, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[Type][]Handler)
	}
	b.handlers[t] = append(b.handlers[t], h)
	idx := len(b.handlers[t]) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[t]
		if idx >= len(hs) || hs[idx] == nil {
			return
		}
		hs[idx] = nil
	}
}

// Emit dispatches an event of type t to every subscribed handler, in
// registration order. No Event is constructed if there are no handlers.
// A handler panic is recovered and re-emitted as a Type Error event on the
// same collection; an Error handler that itself panics does not loop,
// because re-entrant Error emission is capped at depth 1.
func (b *Bus) Emit(t Type, collection string, payload any) {
	b.mu.RLock()
	hs := b.handlers[t]
	if len(hs) == 0 {
		b.mu.RUnlock()
		return
	}
	handlers := append([]Handler(nil), hs...)
	b.mu.RUnlock()

	evt := Event{Type: t, Collection: collection, Payload: payload}
	for _, h := range handlers {
		if h == nil {
			continue
		}
		b.dispatchOne(h, evt)
	}
}

func (b *Bus) dispatchOne(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.handlePanic(evt.Collection, r)
		}
	}()
	h(evt)
}

func (b *Bus) handlePanic(collection string, r any) {
	b.mu.Lock()
	if b.inErrorEmit {
		b.mu.Unlock()
		return
	}
	b.inErrorEmit = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inErrorEmit = false
		b.mu.Unlock()
	}()

	b.Emit(Error, collection, r)
}
