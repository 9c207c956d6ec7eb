package frame

import (
	"encoding/json"
	"strings"

	"github.com/kbukum/streamkit/errors"
)

const dataPrefix = "data:"

// Chunked parses data-prefixed JSON segments with a three-tier fallback:
// prefixed JSON, then bare JSON, then raw text.
type Chunked struct {
	split splitter
}

// NewChunked returns an empty chunked-dialect parser.
func NewChunked() *Chunked { return &Chunked{} }

// Name implements Dialect.
func (p *Chunked) Name() string { return DialectChunked }

// Feed implements Dialect.
func (p *Chunked) Feed(chunk string) []Frame {
	return p.parseAll(p.split.feed(chunk))
}

// Flush implements Dialect.
func (p *Chunked) Flush() []Frame {
	return p.parseAll([]string{p.split.flush()})
}

// Reset implements Dialect.
func (p *Chunked) Reset() { p.split.reset() }

// Pending implements Dialect.
func (p *Chunked) Pending() int { return p.split.pending() }

func (p *Chunked) parseAll(segments []string) []Frame {
	var frames []Frame
	for _, seg := range segments {
		if f, ok := parseChunkedSegment(seg); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

func parseChunkedSegment(seg string) (Frame, bool) {
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return Frame{}, false
	}

	if strings.HasPrefix(seg, dataPrefix) {
		payload := strings.TrimPrefix(seg[len(dataPrefix):], " ")
		f, err := decodeJSONFrame(payload)
		if err != nil {
			return Frame{Kind: KindJSON, Raw: payload, Err: errors.Parse(DialectChunked, err)}, true
		}
		return f, true
	}

	if f, err := decodeJSONFrame(seg); err == nil {
		if _, isObject := f.Data.(map[string]any); isObject {
			f.Bare = true
			return f, true
		}
	}
	return Frame{Kind: KindText, Event: "text", Data: seg, Raw: seg}, true
}

func decodeJSONFrame(payload string) (Frame, error) {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return Frame{}, err
	}
	f := Frame{Kind: KindJSON, Event: defaultEventType, Data: v, Raw: payload}
	if obj, ok := v.(map[string]any); ok {
		if name, ok := obj["event"].(string); ok && name != "" {
			f.Event = name
		}
		if id, ok := obj["id"].(string); ok {
			f.ID = id
		}
	}
	return f, nil
}
