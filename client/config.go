package client

import (
	"fmt"
	"time"

	"github.com/kbukum/changefeed/resilience"
	"github.com/kbukum/changefeed/validation"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultTokenTTL = time.Hour
)

// Config configures the feed server client.
type Config struct {
	// BaseURL is the feed server root, e.g. http://localhost:8080.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url" validate:"required,url"`

	// Timeout bounds admin requests. Change streams are bounded only by
	// their context. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`

	// Token is a static bearer token. When empty and Secret is set, a
	// token is signed for every request.
	Token    string        `yaml:"token" mapstructure:"token" json:"token"`
	Secret   string        `yaml:"secret" mapstructure:"secret" json:"secret"`
	Issuer   string        `yaml:"issuer" mapstructure:"issuer" json:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl" json:"token_ttl"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers" json:"headers"`

	// Retry governs opening change streams.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry" json:"-"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	c.Retry.ApplyDefaults()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("client: timeout must be positive")
	}
	return nil
}
