package feed

import (
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/observability"
)

type options struct {
	id      string
	log     *logger.Logger
	metrics *observability.FeedMetrics
}

// Option configures a Feed.
type Option func(*options)

// WithID sets the feed id used in logs. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithLogger sets the feed logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics sets the instruments the feed records to. Defaults to
// observability.DefaultFeedMetrics.
func WithMetrics(m *observability.FeedMetrics) Option {
	return func(o *options) { o.metrics = m }
}
