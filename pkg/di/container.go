// Package di provides dependency injection container
package di

import (
	"github.com/ssargent/pngchunk/pkg/api" //nolint:depguard
)

// Container holds all the dependencies for the application
type Container struct {
	serverStarter api.ServerStarter
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverStarter: api.NewServerStarter(),
	}
}

// GetServerStarter returns the API server starter
func (c *Container) GetServerStarter() api.ServerStarter {
	return c.serverStarter
}

// SetServerStarter allows overriding the server starter (for testing)
func (c *Container) SetServerStarter(starter api.ServerStarter) {
	c.serverStarter = starter
}
