package bootstrap

import (
	"time"

	"github.com/kbukum/changefeed/logger"
)

// Option customizes NewApp.
type Option func(*settings)

type settings struct {
	log   *logger.Logger
	grace time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{grace: DefaultGracefulTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger replaces the logger built from the config's logger section.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithGracefulTimeout bounds the shutdown phase.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *settings) { s.grace = d }
}
