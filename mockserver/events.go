package mockserver

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Event types the mock server emits on its own.
const (
	EventTypeConnected = "connected"
	EventTypeMessage   = "message"
)

// Event is one message queued for a subscriber.
type Event struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"event,omitempty"`
	// Data is written verbatim. Multi-line data becomes several data lines.
	Data  json.RawMessage `json:"data"`
	Retry time.Duration   `json:"-"`
}

// WriteTo writes ev in the standard dialect: optional id, event and retry
// fields, one data line per line of Data, then a blank line.
func (ev Event) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Type != "" && ev.Type != EventTypeMessage {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	if ev.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", ev.Retry.Milliseconds())
	}
	for _, line := range strings.Split(string(ev.Data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// jsonEvent marshals v into an Event of type t.
func jsonEvent(t, id string, v any) Event {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`null`)
	}
	return Event{ID: id, Type: t, Data: data}
}
