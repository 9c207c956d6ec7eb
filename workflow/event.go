// Package workflow decodes the chunked-JSON event stream of an AI workflow
// backend and provides a client for its streaming endpoints.
//
// A Decoder routes each decoded event to the matching Handlers callback and
// reconstructs the running answer from incremental text fragments.
package workflow

import (
	"math"
	"strconv"
)

// Kinds of workflow events.
const (
	KindWorkflowStarted  = "workflow_started"
	KindNodeStarted      = "node_started"
	KindNodeFinished     = "node_finished"
	KindWorkflowFinished = "workflow_finished"
	KindTTSMessage       = "tts_message"
	KindTextChunk        = "text_chunk"
	KindMessage          = "message"
	KindMessageEnd       = "message_end"
	KindMessageFile      = "message_file"
	KindPing             = "ping"
)

// Event is one decoded workflow stream event.
type Event struct {
	Event         string         `json:"event"`
	TaskID        string         `json:"task_id"`
	WorkflowRunID string         `json:"workflow_run_id,omitempty"`
	ID            string         `json:"id,omitempty"`
	Answer        string         `json:"answer,omitempty"`
	CreatedAt     int64          `json:"created_at"`
	Data          map[string]any `json:"data,omitempty"`
	MessageID     string         `json:"message_id,omitempty"`
	Audio         string         `json:"audio,omitempty"`

	// file reference fields of message_file events
	Type           string `json:"type,omitempty"`
	BelongsTo      string `json:"belongs_to,omitempty"`
	URL            string `json:"url,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// File is the attachment announced by a message_file event.
type File struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	BelongsTo      string `json:"belongs_to"`
	URL            string `json:"url"`
	ConversationID string `json:"conversation_id"`
}

// eventFromObject reads an event from a decoded JSON object. Fields of an
// unexpected type are coerced where the meaning is clear (numeric ids and
// timestamps) and left empty otherwise, so one odd field never costs the
// rest of the event.
func eventFromObject(obj map[string]any) Event {
	ev := Event{
		Event:          stringField(obj["event"]),
		TaskID:         stringField(obj["task_id"]),
		WorkflowRunID:  stringField(obj["workflow_run_id"]),
		ID:             stringField(obj["id"]),
		Answer:         stringField(obj["answer"]),
		CreatedAt:      intField(obj["created_at"]),
		MessageID:      stringField(obj["message_id"]),
		Audio:          stringField(obj["audio"]),
		Type:           stringField(obj["type"]),
		BelongsTo:      stringField(obj["belongs_to"]),
		URL:            stringField(obj["url"]),
		ConversationID: stringField(obj["conversation_id"]),
	}
	if data, ok := obj["data"].(map[string]any); ok {
		ev.Data = data
	}
	return ev
}

func stringField(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(v any) int64 {
	switch v := v.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int64(v)
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return intField(n)
		}
	}
	return 0
}

// DataString returns Data[key] when it is a string.
func (e Event) DataString(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Handlers receives decoded events. Nil callbacks are skipped.
type Handlers struct {
	// OnEvent receives every decoded event except pings, before the kind-specific callback.
	OnEvent            func(Event)
	OnWorkflowStarted  func(Event)
	OnNodeStarted      func(Event)
	OnNodeFinished     func(Event)
	OnWorkflowFinished func(Event)
	OnTTSMessage       func(Event)
	// OnTextChunk receives each fragment and the accumulated text including it.
	OnTextChunk func(fragment, full string)
	// OnComplete fires after workflow_finished or message_end.
	OnComplete func()
	OnFile     func(File)
	// OnError receives parse failures, fallback overflow and handler panics.
	OnError func(error)
}
