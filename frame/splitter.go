package frame

import "strings"

// splitter normalizes line endings and cuts input into blank-line separated
// segments. A CR at the end of a chunk is held back so a CRLF split across
// two chunks still counts as one line break.
type splitter struct {
	buf       string
	scanned   int
	pendingCR bool
}

func (s *splitter) feed(chunk string) []string {
	if chunk == "" {
		return nil
	}
	if s.pendingCR {
		chunk = "\r" + chunk
		s.pendingCR = false
	}
	if strings.HasSuffix(chunk, "\r") {
		s.pendingCR = true
		chunk = chunk[:len(chunk)-1]
	}
	s.buf += normalizeNewlines(chunk)

	var segments []string
	for {
		// a separator may straddle the previous scan boundary by one byte
		from := s.scanned - 1
		if from < 0 {
			from = 0
		}
		idx := strings.Index(s.buf[from:], "\n\n")
		if idx < 0 {
			s.scanned = len(s.buf)
			return segments
		}
		idx += from
		segments = append(segments, s.buf[:idx])
		s.buf = s.buf[idx+2:]
		s.scanned = 0
	}
}

func (s *splitter) flush() string {
	tail := s.buf
	if s.pendingCR {
		tail += "\n"
	}
	s.reset()
	return tail
}

func (s *splitter) reset() {
	s.buf = ""
	s.scanned = 0
	s.pendingCR = false
}

func (s *splitter) pending() int {
	n := len(s.buf)
	if s.pendingCR {
		n++
	}
	return n
}

func normalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
