// Package frame turns a stream of text chunks into complete protocol frames.
//
// Two dialects implement the Dialect interface: Standard for
// text/event-stream field frames and Chunked for the data-prefixed JSON
// frames of workflow streams. Both retain an incomplete trailing fragment
// until a later chunk completes it, and both isolate parse failures to the
// offending frame.
package frame

import (
	"time"

	"github.com/kbukum/streamkit/errors"
)

// Dialect names accepted by New.
const (
	DialectStandard = "standard"
	DialectChunked  = "chunked"
)

// Kind classifies how a frame's payload was recovered.
type Kind int

const (
	// KindFields is a standard field frame.
	KindFields Kind = iota
	// KindJSON is a JSON object, prefixed or bare.
	KindJSON
	// KindText is raw text that was neither prefixed nor valid JSON.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindFields:
		return "fields"
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Frame is one self-delimited unit of the wire protocol.
type Frame struct {
	Kind  Kind
	Event string
	// Data is the decoded JSON value, a string, or nil.
	Data any
	ID   string
	// Retry is the server reconnect hint. HasRetry distinguishes "retry: 0".
	Retry    time.Duration
	HasRetry bool
	// Raw is the undecoded payload: joined data lines, JSON text or raw text.
	Raw string
	// Bare marks JSON recovered from a segment without the data prefix.
	Bare bool
	// Err is set when the frame could not be decoded. Such frames carry no event.
	Err error
}

// Dialect is a framing strategy. Implementations are not safe for concurrent use.
type Dialect interface {
	// Name returns the dialect name.
	Name() string
	// Feed appends chunk and returns every frame it completed, in wire order.
	Feed(chunk string) []Frame
	// Flush treats the retained tail as a final frame and clears it.
	Flush() []Frame
	// Reset discards any retained input.
	Reset()
	// Pending returns the number of retained bytes.
	Pending() int
}

// New returns the dialect registered under name.
func New(name string) (Dialect, error) {
	switch name {
	case DialectStandard, "":
		return NewStandard(), nil
	case DialectChunked:
		return NewChunked(), nil
	}
	return nil, errors.UnsupportedTransport("dialect", name)
}

// Names lists the supported dialects.
func Names() []string { return []string{DialectStandard, DialectChunked} }
