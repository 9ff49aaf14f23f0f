package server

import (
	"context"
	"fmt"

	"github.com/kbukum/changefeed/component"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Health implements component.Component.
func (s *Server) Health(ctx context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	auth := "off"
	if s.config.Auth.Enabled {
		auth = "jwt"
	}
	return component.Description{
		Type:    "server",
		Details: fmt.Sprintf("%s auth=%s routes=%d", s.Addr(), auth, len(s.engine.Routes())),
	}
}
