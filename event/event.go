// Package event defines the domain event delivered to subscribers and the
// connection status reported alongside it.
package event

import "time"

// Lifecycle event types emitted by the connection state machine.
const (
	TypeMessage = "message"
	TypeOpen    = "open"
	TypeError   = "error"
	TypeClose   = "close"
	// TypeText is the type of raw text frames from chunked streams.
	TypeText = "text"
)

// Event is one decoded unit delivered to listeners.
type Event struct {
	Type string `json:"type"`
	// Data is the decoded JSON value, the raw string, or nil.
	Data any    `json:"data,omitempty"`
	ID   string `json:"id,omitempty"`
	// Retry is the server's reconnect hint; zero means absent.
	Retry     time.Duration `json:"retry,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Millis returns the emission time as Unix milliseconds.
func (e Event) Millis() int64 { return e.Timestamp.UnixMilli() }

// IsLifecycle reports whether t is one of open, error or close.
func IsLifecycle(t string) bool {
	switch t {
	case TypeOpen, TypeError, TypeClose:
		return true
	}
	return false
}

// ErrorData is the payload of an "error" lifecycle event.
type ErrorData struct {
	Err       error
	Status    Status
	Attempts  int
	Retrying  bool
	NextDelay time.Duration
}

// Listener receives events for the types it subscribed to.
type Listener func(Event)

// StatusListener receives connection status changes.
type StatusListener func(Status)
