package sse

import (
	"time"

	"github.com/kbukum/streamkit/event"
)

// State is a snapshot of a client's connection state.
type State struct {
	Status event.Status `json:"status"`
	// ReconnectAttempts counts reconnects scheduled since the last successful open.
	ReconnectAttempts int `json:"reconnect_attempts"`
	// Retrying is set while a reconnect is scheduled.
	Retrying    bool      `json:"retrying"`
	LastError   error     `json:"-"`
	ConnectedAt time.Time `json:"connected_at"`
	// LastEventID is sent back as Last-Event-ID when reconnecting.
	LastEventID string `json:"last_event_id,omitempty"`
}

// Active reports whether the client is connecting or open.
func (s State) Active() bool {
	return s.Status == event.StatusConnecting || s.Status == event.StatusOpen
}
