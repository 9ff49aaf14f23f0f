package config

import (
	"fmt"

	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/version"
)

var validEnvironments = []string{"development", "staging", "production"}

// ServiceConfig contains the fields every changefeed binary shares.
// Binaries embed it in their own config structs:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Server server.Config `yaml:"server" mapstructure:"server"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logger      logger.Config `yaml:"logger" mapstructure:"logger"`
}

// GetServiceConfig returns the embedded ServiceConfig. Embedding structs
// inherit it, which satisfies bootstrap.Config.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults fills unset fields. Embedding structs call it first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = version.Short()
	}
	if c.Environment == "development" {
		c.Debug = true
		if c.Logger.Level == "" {
			c.Logger.Level = "debug"
		}
	}
	c.Logger.ApplyDefaults()
}

// Validate checks the shared fields. Embedding structs call it first.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	found := false
	for _, v := range validEnvironments {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", validEnvironments, c.Environment)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("config.logger: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *ServiceConfig) IsProduction() bool {
	return c.Environment == "production"
}
