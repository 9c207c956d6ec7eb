package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/event"
)

var (
	_ component.Component   = (*Client)(nil)
	_ component.Describable = (*Client)(nil)
)

// Start connects the client. It fails once the client has been destroyed.
func (c *Client) Start(ctx context.Context) error {
	if c.destroyed.Load() {
		return errors.Closed()
	}
	c.Connect()
	return nil
}

// Stop destroys the client and waits for its loop to exit or ctx to end.
func (c *Client) Stop(ctx context.Context) error {
	c.Destroy()
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health maps the connection status to a component health.
func (c *Client) Health(ctx context.Context) component.Health {
	st := c.State()
	h := component.Health{Name: c.name, Message: st.Status.String()}
	switch st.Status {
	case event.StatusOpen:
		h.Status = component.StatusHealthy
	case event.StatusConnecting:
		h.Status = component.StatusDegraded
	case event.StatusError:
		h.Status = component.StatusUnhealthy
		if st.Retrying {
			h.Status = component.StatusDegraded
		}
		if st.LastError != nil {
			h.Message = st.LastError.Error()
		}
	default:
		h.Status = component.StatusUnhealthy
	}
	return h
}

// Describe implements component.Describable.
func (c *Client) Describe() component.Description {
	cfg := c.Config()
	return component.Description{
		Name:    c.name,
		Type:    "sse",
		Details: fmt.Sprintf("%s %s dialect=%s", cfg.Method, cfg.URL, cfg.Dialect),
	}
}
