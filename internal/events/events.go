// Package events defines the core's outbound event vocabulary and a
// small pub/sub bus to deliver it, mirroring spec.md §9's "sum type of
// core events... consumers match exhaustively."
package events

import (
	"log/slog"
	"sync"
)

// Kind enumerates the closed set of outbound event types (spec.md §6).
type Kind string

const (
	KindOpened      Kind = "opened"
	KindInitialized Kind = "initialized"
	KindClosed      Kind = "closed"
	KindError       Kind = "error"
	KindFrameRx     Kind = "frame_rx"
	KindFrameTx     Kind = "frame_tx"
	KindPaired      Kind = "paired"
	KindUnpaired    Kind = "unpaired"
	KindStatus      Kind = "status"
	KindLog         Kind = "log"
)

// Event is the sum type emitted by the core. Only the fields relevant to
// Kind are populated; consumers switch on Kind.
type Event struct {
	Kind Kind

	// Error
	ErrKind string
	Detail  string

	// FrameRx / FrameTx
	FrameHex string

	// Paired / Unpaired / Status
	DeviceCode string

	// Status
	Fields map[string]string

	// Log
	Level   slog.Level
	Message string
}

// Handler receives one Event.
type Handler func(Event)

// Bus is a minimal pub/sub dispatcher: subscribe by Kind, or to every
// event. Emit runs handlers synchronously on the caller's goroutine and
// recovers from a panicking handler.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Kind]map[uint64]Handler
	allHandlers map[uint64]Handler
	nextID      uint64
	logger      *slog.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers:    make(map[Kind]map[uint64]Handler),
		allHandlers: make(map[uint64]Handler),
		logger:      logger,
	}
}

// On subscribes to one event kind. The returned func unsubscribes.
func (b *Bus) On(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[uint64]Handler)
	}
	b.handlers[kind][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[kind], id)
	}
}

// OnAll subscribes to every event. The returned func unsubscribes.
func (b *Bus) OnAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.allHandlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.allHandlers, id)
	}
}

// Emit delivers e to every matching handler, recovering from any handler
// panic so one bad consumer cannot take down the task loop.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	kindHandlers := make([]Handler, 0, len(b.handlers[e.Kind]))
	for _, h := range b.handlers[e.Kind] {
		kindHandlers = append(kindHandlers, h)
	}
	allHandlers := make([]Handler, 0, len(b.allHandlers))
	for _, h := range b.allHandlers {
		allHandlers = append(allHandlers, h)
	}
	b.mu.RUnlock()

	for _, h := range kindHandlers {
		b.dispatch(h, e)
	}
	for _, h := range allHandlers {
		b.dispatch(h, e)
	}
}

func (b *Bus) dispatch(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error("event handler panicked", "kind", e.Kind, "recover", r)
		}
	}()
	h(e)
}
