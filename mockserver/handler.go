package mockserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
)

// connectedEvent is the payload of the first event on every /events stream.
type connectedEvent struct {
	SubscriberID string `json:"subscriber_id"`
	Channel      string `json:"channel"`
	LastEventID  string `json:"last_event_id,omitempty"`
}

// serveEvents streams the channel in the standard dialect until the client
// goes away or the hub stops.
func (s *Server) serveEvents(c *gin.Context) {
	channel := c.Param("channel")
	sub := NewSubscriber(channel+":"+uuid.NewString(),
		WithMetadata("channel", channel),
		WithLastEventID(c.GetHeader("Last-Event-ID")),
	)
	if !s.hub.Register(sub) {
		respondError(c, http.StatusServiceUnavailable, errors.Closed())
		return
	}
	defer s.hub.Unregister(sub)

	// streams outlive the server write timeout
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log.Debug("could not clear write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	hello := jsonEvent(EventTypeConnected, s.nextID(), connectedEvent{
		SubscriberID: sub.ID(),
		Channel:      channel,
		LastEventID:  sub.LastEventID(),
	})
	hello.Retry = s.config.Retry
	if _, err := hello.WriteTo(c.Writer); err != nil {
		return
	}
	c.Writer.Flush()

	keepAlive := time.NewTicker(s.config.KeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if _, err := ev.WriteTo(c.Writer); err != nil {
				return
			}
			c.Writer.Flush()

		case <-keepAlive.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// publishRequest is the body of POST /broadcast/:channel.
type publishRequest struct {
	Event string          `json:"event"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data" binding:"required"`
}

// publish fans the posted event out to every subscriber of the channel.
func (s *Server) publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errors.InvalidConfig("body", err.Error()))
		return
	}
	if req.ID == "" {
		req.ID = s.nextID()
	}

	n := s.Publisher().Publish(c.Param("channel")+":*", Event{ID: req.ID, Type: req.Event, Data: req.Data})
	c.JSON(http.StatusAccepted, gin.H{"id": req.ID, "delivered": n})
}

// health reports the server component health.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"subscribers": s.hub.Count(),
	})
}
