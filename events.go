package depcache

import (
	"fmt"
	"sync"
	"time"
)

// EventType classifies cache lifecycle events.
type EventType string

const (
	EventHit        EventType = "hit"
	EventMiss       EventType = "miss"
	EventSet        EventType = "set"
	EventDelete     EventType = "delete"
	EventInvalidate EventType = "invalidate"
	EventClear      EventType = "clear"
)

// Event carries the details of a single cache operation.
type Event struct {
	Type         EventType
	Key          string // logical key; for invalidate events, the tag
	Time         time.Time
	Value        any
	Dependencies []string
	TTL          time.Duration
	Count        int // removed entries for delete/invalidate/clear
}

// Listener observes events. Listeners are fire-and-forget: panics are
// recovered and never reach cache callers.
type Listener func(Event)

// Emitter dispatches events to per-type and global listeners.
// Registration returns a removal func. Safe for concurrent use.
type Emitter struct {
	mu     sync.RWMutex
	nextID int
	byType map[EventType]map[int]Listener
	global map[int]Listener
	silent bool
	log    Logger
}

// NewEmitter builds an emitter. When silent is true listener panics are
// swallowed without logging; otherwise they are logged through log.
func NewEmitter(log Logger, silent bool) *Emitter {
	return &Emitter{
		byType: make(map[EventType]map[int]Listener),
		global: make(map[int]Listener),
		silent: silent,
		log:    coalesce[Logger](log, NopLogger{}),
	}
}

// On registers a listener for one event type and returns its removal func.
func (e *Emitter) On(t EventType, fn Listener) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	if e.byType[t] == nil {
		e.byType[t] = make(map[int]Listener)
	}
	e.byType[t][id] = fn
	return func() {
		e.mu.Lock()
		delete(e.byType[t], id)
		e.mu.Unlock()
	}
}

// OnAll registers a listener for every event type and returns its
// removal func.
func (e *Emitter) OnAll(fn Listener) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.global[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.global, id)
		e.mu.Unlock()
	}
}

// Emit dispatches ev to all matching listeners. Listener failures are
// contained; observer correctness never affects caller correctness.
func (e *Emitter) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.mu.RLock()
	fns := make([]Listener, 0, len(e.byType[ev.Type])+len(e.global))
	for _, fn := range e.byType[ev.Type] {
		fns = append(fns, fn)
	}
	for _, fn := range e.global {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		e.dispatch(fn, ev)
	}
}

func (e *Emitter) dispatch(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil && !e.silent {
			e.log.Error("event listener panicked", Fields{
				"event": string(ev.Type),
				"key":   ev.Key,
				"err":   fmt.Sprint(r),
			})
		}
	}()
	fn(ev)
}

// Reset removes every registered listener.
func (e *Emitter) Reset() {
	e.mu.Lock()
	e.byType = make(map[EventType]map[int]Listener)
	e.global = make(map[int]Listener)
	e.mu.Unlock()
}
