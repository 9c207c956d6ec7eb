package component

import "context"

// HealthStatus is a component's health.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Health is one component's report. A retrying stream is degraded, a
// stream that gave up is unhealthy.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Worst folds reports into the least healthy status. No reports is healthy.
func Worst(reports ...Health) HealthStatus {
	worst := StatusHealthy
	for _, h := range reports {
		if h.Status.rank() > worst.rank() {
			worst = h.Status
		}
	}
	return worst
}

// Component is started and stopped with the process: a stream client or
// the mock server.
type Component interface {
	Name() string
	// Start must return once the component is running. Streams connect in
	// the background.
	Start(ctx context.Context) error
	// Stop releases the component, giving up when ctx ends.
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is the startup summary line for a component.
type Description struct {
	// Name defaults to the component's Name().
	Name string
	// Type is "sse" or "server".
	Type    string
	Details string
	// Port is zero for clients.
	Port int
}

// Describable components report a Description to the startup summary.
type Describable interface {
	Describe() Description
}

// Route is one HTTP route served by a server component.
type Route struct {
	Method  string
	Path    string
	Handler string
}

func (r Route) String() string { return r.Method + " " + r.Path }

// RouteProvider is implemented by server components that list their routes.
type RouteProvider interface {
	Routes() []Route
}
