package redisstream

import (
	"context"
	"fmt"

	"github.com/kbukum/changefeed/component"
)

var (
	_ component.Component   = (*Client)(nil)
	_ component.Describable = (*Client)(nil)
)

// Name returns the component name.
func (c *Client) Name() string { return "redis-stream" }

// Start verifies connectivity.
func (c *Client) Start(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("redis start: %w", err)
	}
	c.log.Info("Redis stream component started")
	return nil
}

// Stop closes the Redis connection.
func (c *Client) Stop(_ context.Context) error {
	return c.Close()
}

// Health pings Redis.
func (c *Client) Health(ctx context.Context) component.Health {
	if c.isClosed() {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "redis closed"}
	}
	if err := c.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns a startup summary.
func (c *Client) Describe() component.Description {
	return component.Description{
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d prefix=%s", c.cfg.Addr, c.cfg.DB, c.cfg.KeyPrefix),
	}
}
