package mockserver

import (
	"context"
	"fmt"

	"github.com/kbukum/streamkit/component"
)

var (
	_ component.Component     = (*Component)(nil)
	_ component.Describable   = (*Component)(nil)
	_ component.RouteProvider = (*Component)(nil)
)

// Component wraps a Server for a component.Registry.
type Component struct {
	server *Server
}

// NewComponent returns a component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Server returns the wrapped server.
func (c *Component) Server() *Server { return c.server }

// Name implements component.Component.
func (c *Component) Name() string { return "mockserver" }

// Start implements component.Component.
func (c *Component) Start(ctx context.Context) error { return c.server.Start(ctx) }

// Stop implements component.Component.
func (c *Component) Stop(ctx context.Context) error { return c.server.Stop(ctx) }

// Health implements component.Component.
func (c *Component) Health(ctx context.Context) component.Health {
	c.server.mu.Lock()
	running := c.server.http != nil
	c.server.mu.Unlock()

	if !running {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	if r := c.server.relay; r != nil {
		if err := r.Ping(ctx); err != nil {
			return component.Health{Name: c.Name(), Status: component.StatusDegraded, Message: "relay: " + err.Error()}
		}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers connected", c.server.hub.Count()),
	}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Mock Server",
		Type:    "server",
		Details: c.server.URL(),
		Port:    c.server.config.Port,
	}
}

// Routes implements component.RouteProvider.
func (c *Component) Routes() []component.Route { return c.server.Routes() }
