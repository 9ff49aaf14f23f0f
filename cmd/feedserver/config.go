package main

import (
	"fmt"
	"time"

	"github.com/kbukum/changefeed/config"
	"github.com/kbukum/changefeed/server"
	"github.com/kbukum/changefeed/transport/kafka"
	"github.com/kbukum/changefeed/transport/pgnotify"
	"github.com/kbukum/changefeed/transport/redisstream"
)

// Config is the feedserver configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config       `yaml:"server" mapstructure:"server"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	// Tables are created at startup.
	Tables []string     `yaml:"tables" mapstructure:"tables"`
	Relays RelaysConfig `yaml:"relays" mapstructure:"relays"`
}

// ObservabilityConfig enables OTLP export of traces and feed metrics.
type ObservabilityConfig struct {
	Tracing    bool          `yaml:"tracing" mapstructure:"tracing"`
	Metrics    bool          `yaml:"metrics" mapstructure:"metrics"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// RelaysConfig publishes the changes of Tables to every enabled transport.
type RelaysConfig struct {
	Tables   []string           `yaml:"tables" mapstructure:"tables"`
	Redis    redisstream.Config `yaml:"redis" mapstructure:"redis"`
	Kafka    kafka.Config       `yaml:"kafka" mapstructure:"kafka"`
	Postgres pgnotify.Config    `yaml:"postgres" mapstructure:"postgres"`
}

func (c *RelaysConfig) enabled() bool {
	return c.Redis.Enabled || c.Kafka.Enabled || c.Postgres.Enabled
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "feedserver"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	if c.Observability.Endpoint == "" {
		c.Observability.Endpoint = "localhost:4318"
	}
	if c.Observability.SampleRate == 0 {
		c.Observability.SampleRate = 1.0
	}
	if c.Observability.Interval == 0 {
		c.Observability.Interval = 15 * time.Second
	}
	c.Relays.Redis.ApplyDefaults()
	c.Relays.Kafka.ApplyDefaults()
	c.Relays.Postgres.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if r := c.Observability.SampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.sample_rate must be between 0 and 1 (got: %v)", r)
	}
	if len(c.Relays.Tables) > 0 && !c.Relays.enabled() {
		return fmt.Errorf("relays.tables is set but no relay transport is enabled")
	}
	if err := c.Relays.Redis.Validate(); err != nil {
		return fmt.Errorf("relays.redis: %w", err)
	}
	if err := c.Relays.Kafka.Validate(); err != nil {
		return fmt.Errorf("relays.kafka: %w", err)
	}
	if err := c.Relays.Postgres.Validate(); err != nil {
		return fmt.Errorf("relays.postgres: %w", err)
	}
	return nil
}

// tables returns every table to create at startup, relayed ones included.
func (c *Config) tables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append(append([]string(nil), c.Tables...), c.Relays.Tables...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
