package pgnotify

import (
	"fmt"
	"strings"
	"time"
)

// maxChannelLen is PostgreSQL's identifier limit (NAMEDATALEN - 1).
const maxChannelLen = 63

// Config holds PostgreSQL LISTEN/NOTIFY configuration.
type Config struct {
	// Enabled controls whether the PostgreSQL transport is active.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// DSN is the lib/pq connection string.
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	// ChannelPrefix is prepended to a table name to form its channel.
	ChannelPrefix string `yaml:"channel_prefix" mapstructure:"channel_prefix"`

	// MinReconnect and MaxReconnect bound the listener's reconnect backoff.
	MinReconnect string `yaml:"min_reconnect" mapstructure:"min_reconnect"`
	MaxReconnect string `yaml:"max_reconnect" mapstructure:"max_reconnect"`

	// MaxOpenConns caps the publisher's connection pool.
	MaxOpenConns int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "changefeed_"
	}
	if c.MinReconnect == "" {
		c.MinReconnect = "1s"
	}
	if c.MaxReconnect == "" {
		c.MaxReconnect = "1m"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}
	minimum, err := time.ParseDuration(c.MinReconnect)
	if err != nil {
		return fmt.Errorf("invalid min_reconnect %q: %w", c.MinReconnect, err)
	}
	maximum, err := time.ParseDuration(c.MaxReconnect)
	if err != nil {
		return fmt.Errorf("invalid max_reconnect %q: %w", c.MaxReconnect, err)
	}
	if minimum <= 0 || maximum < minimum {
		return fmt.Errorf("reconnect bounds must satisfy 0 < min_reconnect <= max_reconnect")
	}
	return nil
}

// Channel returns the notification channel for a table: the prefixed name
// lowercased, with anything outside [a-z0-9_] replaced by '_' and cut to
// the identifier limit.
func (c *Config) Channel(table string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, c.ChannelPrefix+table)
	if len(name) > maxChannelLen {
		name = name[:maxChannelLen]
	}
	return name
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
