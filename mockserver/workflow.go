package mockserver

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
)

const claimsKey = "claims"

// runRequest is the subset of a workflow or chat request the mock reads.
type runRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	User           string         `json:"user"`
	ConversationID string         `json:"conversation_id"`
}

// prompt returns the text the scripted answer echoes.
func (r runRequest) prompt() string {
	if r.Query != "" {
		return r.Query
	}
	if q, ok := r.Inputs["query"].(string); ok {
		return q
	}
	return "hello"
}

// caller returns the request user, falling back to the token's user and subject.
func (r runRequest) caller(c *gin.Context) string {
	if r.User != "" {
		return r.User
	}
	v, _ := c.Get(claimsKey)
	if claims, ok := v.(*Claims); ok {
		if claims.User != "" {
			return claims.User
		}
		return claims.Subject
	}
	return ""
}

// Script returns the chunked-JSON frames of a workflow run answering query.
// The answer is streamed one word per text_chunk with a ping in between.
func Script(taskID, runID, query string) []string {
	frames := []map[string]any{
		{"event": "workflow_started", "task_id": taskID, "workflow_run_id": runID, "data": map[string]any{"id": runID}},
		{"event": "node_started", "task_id": taskID, "data": map[string]any{"node_id": "llm", "title": "LLM"}},
	}
	words := strings.Fields("echo: " + query)
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		frames = append(frames, map[string]any{"event": "text_chunk", "task_id": taskID, "data": map[string]any{"text": w}})
		if i == 0 {
			frames = append(frames, map[string]any{"event": "ping"})
		}
	}
	frames = append(frames,
		map[string]any{"event": "node_finished", "task_id": taskID, "data": map[string]any{"node_id": "llm", "status": "succeeded"}},
		map[string]any{"event": "workflow_finished", "task_id": taskID, "workflow_run_id": runID, "data": map[string]any{"status": "succeeded"}},
	)
	return encodeChunks(frames)
}

// chatScript answers a chat message with message frames and message_end.
func chatScript(taskID, conversationID, query string) []string {
	var frames []map[string]any
	for i, w := range strings.Fields("echo: " + query) {
		if i > 0 {
			w = " " + w
		}
		frames = append(frames, map[string]any{"event": "message", "task_id": taskID, "conversation_id": conversationID, "answer": w})
	}
	frames = append(frames, map[string]any{"event": "message_end", "task_id": taskID, "conversation_id": conversationID})
	return encodeChunks(frames)
}

func encodeChunks(frames []map[string]any) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		b, _ := json.Marshal(f)
		out = append(out, "data: "+string(b)+"\n\n")
	}
	return out
}

// authorize admits the API key or a valid token. Routes are open when
// neither is configured.
func (s *Server) authorize(c *gin.Context) bool {
	if s.config.APIKey == "" && s.tokens == nil {
		return true
	}
	bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if ok && s.config.APIKey != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(s.config.APIKey)) == 1 {
		return true
	}
	if ok && s.tokens != nil {
		claims, err := s.tokens.Verify(bearer)
		if err == nil {
			c.Set(claimsKey, claims)
			return true
		}
		s.log.Debug("token rejected", logger.Fields(logger.FieldError, err.Error()))
	}
	e := errors.New(errors.ErrCodeHTTPStatus, "invalid api key or token")
	e.StatusCode = http.StatusUnauthorized
	respondError(c, http.StatusUnauthorized, e)
	return false
}

// runWorkflow streams a scripted workflow run.
func (s *Server) runWorkflow(c *gin.Context) {
	if !s.authorize(c) {
		return
	}
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errors.InvalidConfig("body", err.Error()))
		return
	}
	s.log.Debug("workflow run", logger.Fields("workflow_id", c.Param("id"), "user", req.caller(c)))
	s.writeChunks(c, Script(uuid.NewString(), uuid.NewString(), req.prompt()))
}

// chat streams a scripted chat reply.
func (s *Server) chat(c *gin.Context) {
	if !s.authorize(c) {
		return
	}
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errors.InvalidConfig("body", err.Error()))
		return
	}
	s.log.Debug("chat message", logger.Fields("user", req.caller(c)))
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	s.writeChunks(c, chatScript(uuid.NewString(), conversationID, req.prompt()))
}

// writeChunks writes frames, cut into SplitBytes pieces when configured.
func (s *Server) writeChunks(c *gin.Context, frames []string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for _, piece := range split(strings.Join(frames, ""), frames, s.config.SplitBytes) {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.Writer.WriteString(piece); err != nil {
			return
		}
		c.Writer.Flush()
		if s.config.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.config.ChunkDelay):
			}
		}
	}
}

// split returns frames unchanged when size is not positive, otherwise the
// joined stream cut every size bytes.
func split(joined string, frames []string, size int) []string {
	if size <= 0 {
		return frames
	}
	var out []string
	for len(joined) > size {
		out = append(out, joined[:size])
		joined = joined[size:]
	}
	if joined != "" {
		out = append(out, joined)
	}
	return out
}
