package mockserver

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/streamkit/logger"
)

// subscriberBuffer is the number of events queued per subscriber before
// new ones are dropped.
const subscriberBuffer = 256

// Subscriber is one connected stream on the mock server.
type Subscriber struct {
	id       string
	metadata map[string]string
	events   chan Event
	log      *logger.Logger
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithMetadata adds a metadata key-value pair to the subscriber.
func WithMetadata(key, value string) SubscriberOption {
	return func(s *Subscriber) {
		if s.metadata == nil {
			s.metadata = make(map[string]string)
		}
		s.metadata[key] = value
	}
}

// WithLastEventID records the Last-Event-ID the subscriber resumed from.
func WithLastEventID(id string) SubscriberOption {
	if id == "" {
		return func(*Subscriber) {}
	}
	return WithMetadata("last_event_id", id)
}

// NewSubscriber creates a subscriber. The id is matched against broadcast patterns.
func NewSubscriber(id string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		id:       id,
		metadata: make(map[string]string),
		events:   make(chan Event, subscriberBuffer),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string { return s.id }

// Metadata returns all subscriber metadata.
func (s *Subscriber) Metadata() map[string]string { return s.metadata }

// LastEventID returns the id the subscriber reconnected with, if any.
func (s *Subscriber) LastEventID() string { return s.metadata["last_event_id"] }

// Events returns the channel of events to write to the subscriber.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Send queues ev. It returns false when the subscriber is too slow and
// its buffer is full.
func (s *Subscriber) Send(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		s.log.Warn("subscriber buffer full, dropping event", logger.Fields(
			"subscriber_id", s.id,
			logger.FieldEventType, ev.Type,
		))
		return false
	}
}

// Close closes the subscriber's event channel.
func (s *Subscriber) Close() { close(s.events) }

// Publisher delivers events to subscribers. Handlers depend on it rather
// than on a concrete Hub.
type Publisher interface {
	// Publish sends ev to every subscriber whose id matches the glob pattern
	// (e.g. "prices:*") and returns how many received it.
	Publish(pattern string, ev Event) int
}

// Hub tracks subscribers and fans events out to them.
type Hub struct {
	subscribers map[string]*Subscriber
	register    chan *Subscriber
	unregister  chan *Subscriber
	done        chan struct{}
	stopped     bool
	mu          sync.RWMutex
	log         *logger.Logger
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub. Call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		done:        make(chan struct{}),
		log:         log,
	}
}

// Run processes registrations until Stop is called. Run it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case s := <-h.register:
			s.log = h.log
			h.mu.Lock()
			h.subscribers[s.id] = s
			total := len(h.subscribers)
			h.mu.Unlock()
			h.log.Debug("subscriber registered", logger.Fields("subscriber_id", s.id, "total", total))

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[s.id]; ok {
				delete(h.subscribers, s.id)
				s.Close()
			}
			total := len(h.subscribers)
			h.mu.Unlock()
			h.log.Debug("subscriber unregistered", logger.Fields("subscriber_id", s.id, "total", total))
		}
	}
}

// Stop closes every subscriber and makes Run return. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subscribers {
		s.Close()
		delete(h.subscribers, id)
	}
	h.log.Debug("all subscribers closed")
}

// Register adds s to the hub. It reports false once the hub has stopped.
func (h *Hub) Register(s *Subscriber) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes s and closes its channel.
func (h *Hub) Unregister(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(pattern string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for id, s := range h.subscribers {
		ok, err := filepath.Match(pattern, id)
		if err != nil {
			h.log.Warn("invalid broadcast pattern", logger.Fields("pattern", pattern, logger.FieldError, err.Error()))
			return 0
		}
		if ok && s.Send(ev) {
			matched++
		}
	}

	h.log.Debug("event published", logger.Fields(
		"pattern", pattern,
		logger.FieldEventType, ev.Type,
		"matched", matched,
	))
	return matched
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IDs returns the ids of all connected subscribers.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// Get returns the subscriber with id, or nil.
func (h *Hub) Get(id string) *Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscribers[id]
}
