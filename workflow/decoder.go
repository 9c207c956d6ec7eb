package workflow

import (
	"fmt"
	"strings"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
)

// DefaultMaxFallbackBytes caps raw-text fallback content per session.
const DefaultMaxFallbackBytes = 1 << 20

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLogger sets the decoder logger.
func WithLogger(l *logger.Logger) DecoderOption {
	return func(d *Decoder) { d.log = l }
}

// WithMaxFallbackBytes caps how much raw text the decoder accepts from
// segments that were neither prefixed nor JSON. Zero or less disables the cap.
func WithMaxFallbackBytes(n int) DecoderOption {
	return func(d *Decoder) { d.maxFallback = n }
}

// Decoder maps frames to workflow events and keeps the accumulated answer
// of the current session. It is not safe for concurrent use.
type Decoder struct {
	handlers    Handlers
	log         *logger.Logger
	maxFallback int

	text          strings.Builder
	fallbackBytes int
	completed     bool
	overflowed    bool
}

// NewDecoder creates a Decoder delivering to h.
func NewDecoder(h Handlers, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		handlers:    h,
		log:         logger.Nop(),
		maxFallback: DefaultMaxFallbackBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reset starts a new session: accumulated text, fallback budget and
// completion state are cleared.
func (d *Decoder) Reset() {
	d.text.Reset()
	d.fallbackBytes = 0
	d.completed = false
	d.overflowed = false
}

// Text returns the accumulated answer of the current session.
func (d *Decoder) Text() string { return d.text.String() }

// Completed reports whether workflow_finished or message_end was seen this session.
func (d *Decoder) Completed() bool { return d.completed }

// Decode handles one frame from either dialect.
func (d *Decoder) Decode(f frame.Frame) {
	if f.Err != nil {
		d.report(f.Err)
		return
	}

	switch f.Kind {
	case frame.KindText:
		d.fallback(f.Raw)
	case frame.KindJSON:
		d.decodeJSON(f)
	case frame.KindFields:
		d.decodeFields(f)
	}
}

// DecodeAll handles frames in order.
func (d *Decoder) DecodeAll(frames []frame.Frame) {
	for _, f := range frames {
		d.Decode(f)
	}
}

func (d *Decoder) decodeJSON(f frame.Frame) {
	obj, ok := f.Data.(map[string]any)
	if !ok {
		d.report(errors.Parse(frame.DialectChunked, fmt.Errorf("payload is %T, not an object", f.Data)))
		return
	}

	if _, typed := obj["event"]; f.Bare && !typed {
		// servers that skip the envelope send {"text": ...} or {"answer": ...}
		if s, _ := obj["text"].(string); s != "" {
			d.fragment(s)
		} else if s, _ := obj["answer"].(string); s != "" {
			d.fragment(s)
		} else {
			d.log.Debug("bare json without text", logger.Fields(logger.FieldBytes, len(f.Raw)))
		}
		return
	}

	d.handle(eventFromObject(obj))
}

// decodeFields accepts workflow events carried by a standard stream, where
// the frame's event field may stand in for a missing discriminator.
func (d *Decoder) decodeFields(f frame.Frame) {
	obj, ok := f.Data.(map[string]any)
	if !ok {
		d.log.Debug("ignoring non-object frame", logger.Fields(logger.FieldEventType, f.Event))
		return
	}
	ev := eventFromObject(obj)
	if ev.Event == "" {
		ev.Event = f.Event
	}
	d.handle(ev)
}

func (d *Decoder) handle(ev Event) {
	if ev.Event == KindPing {
		d.log.Debug("ping")
		return
	}

	h := d.handlers
	d.call(ev.Event, func() {
		if h.OnEvent != nil {
			h.OnEvent(ev)
		}
	})

	switch ev.Event {
	case KindWorkflowStarted:
		d.callEvent(h.OnWorkflowStarted, ev)
	case KindNodeStarted:
		d.callEvent(h.OnNodeStarted, ev)
	case KindNodeFinished:
		d.callEvent(h.OnNodeFinished, ev)
	case KindWorkflowFinished:
		d.callEvent(h.OnWorkflowFinished, ev)
		d.complete()
	case KindTTSMessage:
		d.callEvent(h.OnTTSMessage, ev)
	case KindTextChunk:
		d.fragment(ev.DataString("text"))
	case KindMessage:
		if s := ev.DataString("answer"); s != "" {
			d.fragment(s)
		} else {
			d.fragment(ev.Answer)
		}
	case KindMessageEnd:
		d.complete()
	case KindMessageFile:
		if h.OnFile != nil {
			file := File{
				ID:             ev.ID,
				Type:           ev.Type,
				BelongsTo:      ev.BelongsTo,
				URL:            ev.URL,
				ConversationID: ev.ConversationID,
			}
			d.call(ev.Event, func() { h.OnFile(file) })
		}
	default:
		d.log.Debug("unknown workflow event", logger.Fields(logger.FieldEventType, ev.Event))
	}
}

func (d *Decoder) fallback(s string) {
	if s == "" {
		return
	}
	if d.maxFallback > 0 && d.fallbackBytes+len(s) > d.maxFallback {
		// report once per session; later fragments are dropped silently
		if !d.overflowed {
			d.overflowed = true
			d.log.Warn("raw text fallback limit reached", logger.Fields(logger.FieldBytes, d.fallbackBytes))
			d.report(errors.FallbackOverflow(d.maxFallback))
		}
		return
	}
	d.fallbackBytes += len(s)
	d.fragment(s)
}

func (d *Decoder) fragment(s string) {
	if s == "" {
		return
	}
	d.text.WriteString(s)
	if fn := d.handlers.OnTextChunk; fn != nil {
		full := d.text.String()
		d.call(KindTextChunk, func() { fn(s, full) })
	}
}

func (d *Decoder) complete() {
	d.completed = true
	if fn := d.handlers.OnComplete; fn != nil {
		d.call("complete", fn)
	}
}

func (d *Decoder) callEvent(fn func(Event), ev Event) {
	if fn != nil {
		d.call(ev.Event, func() { fn(ev) })
	}
}

func (d *Decoder) report(err error) {
	if fn := d.handlers.OnError; fn != nil {
		d.guard("error", func() { fn(err) })
		return
	}
	d.log.Warn("workflow stream error", logger.Fields(logger.FieldError, err.Error()))
}

// call runs fn and reports a recovered panic through OnError.
func (d *Decoder) call(kind string, fn func()) {
	if err := d.guard(kind, fn); err != nil {
		d.report(err)
	}
}

func (d *Decoder) guard(kind string, fn func()) (err *errors.Error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ListenerPanic(kind, r)
			d.log.Error("workflow handler panicked", logger.Fields(logger.FieldError, err.Message))
		}
	}()
	fn()
	return nil
}
