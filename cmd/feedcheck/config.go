package main

import (
	"fmt"
	"time"

	"github.com/kbukum/changefeed/client"
	"github.com/kbukum/changefeed/config"
)

// Config is the feedcheck configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Client client.Config `yaml:"client" mapstructure:"client"`
	// Table is dropped and recreated by the scenarios.
	Table string `yaml:"table" mapstructure:"table"`
	// Timeout bounds the whole run.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Scenarios selects scenarios by name. Empty runs all of them.
	Scenarios []string `yaml:"scenarios" mapstructure:"scenarios"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "feedcheck"
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8080"
	}
	c.Client.ApplyDefaults()
	if c.Table == "" {
		c.Table = "test"
	}
	if c.Timeout == 0 {
		c.Timeout = time.Minute
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got: %s)", c.Timeout)
	}
	_, err := c.selected()
	return err
}
