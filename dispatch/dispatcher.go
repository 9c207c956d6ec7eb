// Package dispatch implements the typed publish/subscribe registry that
// delivers decoded events to subscribers.
//
// Listeners are kept per event type in registration order. Emission is
// synchronous on the caller's goroutine, and each listener call is guarded so
// a panicking subscriber cannot affect its siblings or the emitter.
package dispatch

import (
	"sync"
	"time"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/event"
	"github.com/kbukum/streamkit/logger"
)

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Subscription identifies one registration. The zero value matches nothing.
type Subscription struct {
	id        uint64
	eventType string
}

// EventType returns the type the subscription was registered for.
func (s Subscription) EventType() string { return s.eventType }

type entry struct {
	id uint64
	fn event.Listener
}

type statusEntry struct {
	id uint64
	fn event.StatusListener
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report recovered listener panics.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithClock sets the time source used to stamp emitted events.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithPanicHandler registers a callback for every recovered listener panic.
func WithPanicHandler(fn func(*errors.Error)) Option {
	return func(d *Dispatcher) { d.onPanic = fn }
}

// Dispatcher is a typed listener registry. It is safe for concurrent use.
type Dispatcher struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]entry
	once      map[string][]entry
	status    []statusEntry

	log     *logger.Logger
	now     func() time.Time
	onPanic func(*errors.Error)
}

// New creates an empty Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		listeners: make(map[string][]entry),
		once:      make(map[string][]entry),
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// On registers fn for eventType. Registering the same function twice adds
// two independent registrations.
func (d *Dispatcher) On(eventType string, fn event.Listener) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.listeners[eventType] = append(d.listeners[eventType], entry{id: d.nextID, fn: fn})
	return Subscription{id: d.nextID, eventType: eventType}
}

// Once registers fn for the next emission of eventType only.
func (d *Dispatcher) Once(eventType string, fn event.Listener) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.once[eventType] = append(d.once[eventType], entry{id: d.nextID, fn: fn})
	return Subscription{id: d.nextID, eventType: eventType}
}

// Off removes a registration made by On or Once. It reports whether the
// subscription was still registered.
func (d *Dispatcher) Off(sub Subscription) bool {
	if sub.id == 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return removeEntry(d.listeners, sub) || removeEntry(d.once, sub)
}

func removeEntry(table map[string][]entry, sub Subscription) bool {
	entries := table[sub.eventType]
	for i, e := range entries {
		if e.id != sub.id {
			continue
		}
		// copy so snapshots taken by an in-flight emission stay intact
		next := make([]entry, 0, len(entries)-1)
		next = append(next, entries[:i]...)
		next = append(next, entries[i+1:]...)
		if len(next) == 0 {
			delete(table, sub.eventType)
		} else {
			table[sub.eventType] = next
		}
		return true
	}
	return false
}

// OnStatus registers fn for connection status changes.
func (d *Dispatcher) OnStatus(fn event.StatusListener) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.status = append(d.status, statusEntry{id: d.nextID, fn: fn})
	return Subscription{id: d.nextID}
}

// OffStatus removes a status registration.
func (d *Dispatcher) OffStatus(sub Subscription) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.status {
		if e.id == sub.id && sub.id != 0 {
			next := make([]statusEntry, 0, len(d.status)-1)
			next = append(next, d.status[:i]...)
			d.status = append(next, d.status[i+1:]...)
			return true
		}
	}
	return false
}

// Emit builds an event stamped with the current time and delivers it.
func (d *Dispatcher) Emit(eventType string, data any, id string, retry time.Duration) {
	d.EmitEvent(event.Event{Type: eventType, Data: data, ID: id, Retry: retry})
}

// EmitEvent delivers ev to the listeners of ev.Type, then to its one-shot
// listeners, then to wildcard listeners and one-shot wildcard listeners.
// A one-shot wildcard listener fires on the next event of any type.
// One-shot listeners present when
// the emission starts are all removed by it; ones registered from inside a
// callback wait for the next emission.
func (d *Dispatcher) EmitEvent(ev event.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now()
	}

	d.mu.Lock()
	normal := d.listeners[ev.Type]
	once := d.once[ev.Type]
	delete(d.once, ev.Type)
	var wildcard, wildcardOnce []entry
	if ev.Type != Wildcard {
		wildcard = d.listeners[Wildcard]
		wildcardOnce = d.once[Wildcard]
		delete(d.once, Wildcard)
	}
	d.mu.Unlock()

	for _, group := range [][]entry{normal, once, wildcard, wildcardOnce} {
		for _, e := range group {
			d.call(ev, e.fn)
		}
	}
}

// EmitStatus delivers s to every status listener.
func (d *Dispatcher) EmitStatus(s event.Status) {
	d.mu.Lock()
	listeners := d.status
	d.mu.Unlock()

	for _, e := range listeners {
		d.callStatus(s, e.fn)
	}
}

func (d *Dispatcher) call(ev event.Event, fn event.Listener) {
	defer func() {
		if r := recover(); r != nil {
			d.recovered(ev.Type, r)
		}
	}()
	fn(ev)
}

func (d *Dispatcher) callStatus(s event.Status, fn event.StatusListener) {
	defer func() {
		if r := recover(); r != nil {
			d.recovered("status:"+s.String(), r)
		}
	}()
	fn(s)
}

func (d *Dispatcher) recovered(eventType string, r any) {
	err := errors.ListenerPanic(eventType, r)
	d.mu.Lock()
	log := d.log
	d.mu.Unlock()
	log.Error("listener panicked", logger.Fields(
		logger.FieldEventType, eventType,
		logger.FieldError, err.Message,
	))
	if d.onPanic != nil {
		d.onPanic(err)
	}
}

// SetLogger replaces the logger used to report recovered listener panics.
func (d *Dispatcher) SetLogger(l *logger.Logger) {
	d.mu.Lock()
	d.log = l
	d.mu.Unlock()
}

// Clear removes every listener, one-shot listener and status listener.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[string][]entry)
	d.once = make(map[string][]entry)
	d.status = nil
}

// ListenerCount returns the number of normal and one-shot listeners for eventType.
func (d *Dispatcher) ListenerCount(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[eventType]) + len(d.once[eventType])
}

// HasListeners reports whether eventType has any listener.
func (d *Dispatcher) HasListeners(eventType string) bool {
	return d.ListenerCount(eventType) > 0
}

// StatusListenerCount returns the number of status listeners.
func (d *Dispatcher) StatusListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.status)
}
