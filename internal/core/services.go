package core

import (
	"github.com/go-chi/chi/v5"
)

// Service is the interface every HTTP-facing module implements.
// New modules are added by implementing it and registering with a Registry.
type Service interface {
	// Name returns the unique identifier for this service (e.g., "stores").
	// It is also the path prefix the edge router mounts the service under.
	Name() string

	// RegisterRoutes sets up HTTP routes for this service on the provided router.
	// The router is a sub-router scoped to this service's path prefix.
	RegisterRoutes(router chi.Router)
}

// Registry holds the services of one server instance.
// It is built during startup and passed to the edge router; there is no
// process-wide registry.
type Registry struct {
	services []Service
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a service to the registry.
func (r *Registry) Register(s Service) {
	r.services = append(r.services, s)
}

// Services returns all registered services in registration order.
func (r *Registry) Services() []Service {
	return r.services
}
