package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of a changefeed service: the table
// store, a relay or the HTTP server.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description is a one-line summary logged at startup.
type Description struct {
	// Type categorizes the component: "store", "relay", "server".
	Type string
	// Details is a short human-readable configuration summary.
	Details string
}

// Describable is optionally implemented by components to describe
// themselves in the startup log.
type Describable interface {
	Describe() Description
}

// Overall folds component health into a single status: unhealthy wins over
// degraded, which wins over healthy.
func Overall(hs []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range hs {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
