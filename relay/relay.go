package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/changefeed/component"
	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/observability"
)

// Publisher forwards payloads of a table to a transport. The redisstream,
// kafka and pgnotify transports implement it.
type Publisher interface {
	Publish(ctx context.Context, table string, p feed.Payload) error
}

// Relay consumes a table's feed in push mode and publishes every change
// and error, aborts included, in delivery order.
type Relay struct {
	src     feed.Source
	table   string
	pub     Publisher
	log     *logger.Logger
	metrics *observability.FeedMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	feed *feed.Feed
	done chan struct{}

	published atomic.Int64
	failed    atomic.Int64
	lastErr   atomic.Pointer[string]
}

var (
	_ component.Component   = (*Relay)(nil)
	_ component.Describable = (*Relay)(nil)
)

// New creates a relay from src's table to pub. It does nothing until
// started.
func New(src feed.Source, table string, pub Publisher, log *logger.Logger) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		src:    src,
		table:  table,
		pub:    pub,
		log:    logger.OrNop(log).WithComponent("relay").WithFields(logger.Fields(logger.FieldTable, table)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// WithMetrics records feed metrics for the relay's feed.
func (r *Relay) WithMetrics(m *observability.FeedMetrics) *Relay {
	r.metrics = m
	return r
}

// Name implements component.Component.
func (r *Relay) Name() string { return "relay:" + r.table }

// Start opens the feed and begins publishing.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feed != nil {
		return apperrors.ProtocolMisuse("relay already started")
	}

	f, err := feed.Open(ctx, r.src, feed.Request{Table: r.table},
		feed.WithLogger(r.log), feed.WithMetrics(r.metrics))
	if err != nil {
		return fmt.Errorf("relay %s: %w", r.table, err)
	}

	done := make(chan struct{})
	if err := f.Each(r.forward, func() { close(done) }); err != nil {
		_ = f.Close()
		return fmt.Errorf("relay %s: %w", r.table, err)
	}
	r.feed, r.done = f, done
	r.log.Info("relay started", logger.Fields(logger.FieldFeedID, f.ID()))
	return nil
}

func (r *Relay) forward(rec *feed.ChangeRecord, err error) {
	var p feed.Payload
	if err != nil {
		p = feed.ErrorPayload(err)
	} else if p, err = feed.ChangePayload(*rec); err != nil {
		p = feed.ErrorPayload(err)
	}

	if err := r.pub.Publish(r.ctx, r.table, p); err != nil {
		r.failed.Add(1)
		msg := err.Error()
		r.lastErr.Store(&msg)
		r.log.Warn("publish failed", logger.Fields(
			logger.FieldError, msg,
			"payload_type", string(p.Type),
		))
		return
	}
	r.published.Add(1)
	r.lastErr.Store(nil)
}

// Stop closes the feed and waits for the publisher loop to finish.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	f, done := r.feed, r.done
	r.mu.Unlock()

	r.cancel()
	if f == nil {
		return nil
	}
	_ = f.Close()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("relay %s: stop: %w", r.table, ctx.Err())
	}
	r.log.Info("relay stopped", logger.Fields("published", r.published.Load(), "failed", r.failed.Load()))
	return nil
}

// Health reports unhealthy when the feed is not running and degraded while
// the latest publish failed.
func (r *Relay) Health(context.Context) component.Health {
	r.mu.Lock()
	f := r.feed
	r.mu.Unlock()

	switch {
	case f == nil:
		return component.Health{Name: r.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	case f.State() == feed.StateClosed:
		return component.Health{Name: r.Name(), Status: component.StatusUnhealthy, Message: "feed closed"}
	}
	if msg := r.lastErr.Load(); msg != nil {
		return component.Health{Name: r.Name(), Status: component.StatusDegraded, Message: *msg}
	}
	return component.Health{
		Name:    r.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d published", r.published.Load()),
	}
}

// Describe implements component.Describable.
func (r *Relay) Describe() component.Description {
	return component.Description{Type: "relay", Details: fmt.Sprintf("table=%s publisher=%T", r.table, r.pub)}
}

// Published returns the number of payloads published so far.
func (r *Relay) Published() int64 { return r.published.Load() }
