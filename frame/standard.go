package frame

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const defaultEventType = "message"

// Standard parses text/event-stream field frames.
type Standard struct {
	split splitter
}

// NewStandard returns an empty standard-dialect parser.
func NewStandard() *Standard { return &Standard{} }

// Name implements Dialect.
func (p *Standard) Name() string { return DialectStandard }

// Feed implements Dialect.
func (p *Standard) Feed(chunk string) []Frame {
	return p.parseAll(p.split.feed(chunk))
}

// Flush implements Dialect.
func (p *Standard) Flush() []Frame {
	return p.parseAll([]string{p.split.flush()})
}

// Reset implements Dialect.
func (p *Standard) Reset() { p.split.reset() }

// Pending implements Dialect.
func (p *Standard) Pending() int { return p.split.pending() }

func (p *Standard) parseAll(segments []string) []Frame {
	var frames []Frame
	for _, seg := range segments {
		if f, ok := parseFieldFrame(seg); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// parseFieldFrame decodes one blank-line terminated segment. Segments made
// only of blank lines or comments are keep-alives and yield no frame.
func parseFieldFrame(seg string) (Frame, bool) {
	f := Frame{Kind: KindFields, Event: defaultEventType}
	var (
		data    []string
		hasData bool
		content bool
	)

	for _, line := range strings.Split(seg, "\n") {
		if line == "" || line[0] == ':' {
			continue
		}
		content = true

		field, value := parseFieldLine(line)
		switch field {
		case "event":
			if value != "" {
				f.Event = value
			}
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			// ids containing NUL are ignored by conforming clients
			if !strings.ContainsRune(value, 0) {
				f.ID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && ms >= 0 {
				f.Retry = time.Duration(ms) * time.Millisecond
				f.HasRetry = true
			}
		}
	}
	if !content {
		return Frame{}, false
	}

	if hasData {
		f.Raw = strings.Join(data, "\n")
		f.Data = decodeData(f.Raw)
	}
	return f, true
}

// parseFieldLine splits "field: value" at the first colon and strips a
// single leading space from the value. A line without a colon is a field
// with an empty value.
func parseFieldLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}
	return field, value
}

// decodeData returns the JSON value of raw when it parses, raw otherwise.
func decodeData(raw string) any {
	if !json.Valid([]byte(raw)) {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
