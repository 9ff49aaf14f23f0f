package pgnotify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lib/pq"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
)

// listener is the part of *pq.Listener a subscription uses.
type listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// Source subscribes to table channels with one pq.Listener per
// subscription. It implements feed.Source.
type Source struct {
	cfg Config
	log *logger.Logger

	newListener func(log *logger.Logger) listener
}

var _ feed.Source = (*Source)(nil)

// NewSource creates a Source.
func NewSource(cfg Config, log *logger.Logger) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("postgres source config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("postgres is disabled")
	}
	s := &Source{cfg: cfg, log: logger.OrNop(log).WithComponent("pgnotify.source")}
	s.newListener = s.dialListener
	return s, nil
}

func (s *Source) dialListener(log *logger.Logger) listener {
	return pq.NewListener(s.cfg.DSN, parseDuration(s.cfg.MinReconnect), parseDuration(s.cfg.MaxReconnect),
		func(ev pq.ListenerEventType, err error) {
			fields := logger.Fields("event", listenerEvent(ev))
			if err != nil {
				fields[logger.FieldError] = err.Error()
				log.Warn("listener connection event", fields)
				return
			}
			log.Debug("listener connection event", fields)
		})
}

func listenerEvent(ev pq.ListenerEventType) string {
	switch ev {
	case pq.ListenerEventConnected:
		return "connected"
	case pq.ListenerEventDisconnected:
		return "disconnected"
	case pq.ListenerEventReconnected:
		return "reconnected"
	case pq.ListenerEventConnectionAttemptFailed:
		return "connection_attempt_failed"
	default:
		return "unknown"
	}
}

// Open starts listening on the table's channel. Notifications sent after
// Open returns are delivered.
func (s *Source) Open(ctx context.Context, req feed.Request) (feed.Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	channel := s.cfg.Channel(req.Table)
	log := s.log.WithFields(logger.Fields(logger.FieldTable, req.Table, "channel", channel))

	l := s.newListener(log)
	if err := l.Listen(channel); err != nil {
		_ = l.Close()
		return nil, apperrors.Transport(fmt.Errorf("listen %s: %w", channel, err))
	}
	log.Debug("channel subscription opened")
	return &handle{listener: l, done: make(chan struct{})}, nil
}

type handle struct {
	listener  listener
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Poll waits for the next notification. A nil notification means the
// listener reconnected and may have missed some; it is reported as a
// TRANSPORT error and the subscription carries on.
func (h *handle) Poll(ctx context.Context) (feed.Payload, error) {
	select {
	case n, ok := <-h.listener.NotificationChannel():
		if !ok {
			return feed.Payload{}, io.EOF
		}
		if n == nil {
			return feed.Payload{}, apperrors.Transport(fmt.Errorf("listener reconnected; notifications may have been lost"))
		}
		return feed.DecodePayload([]byte(n.Extra))
	case <-h.done:
		return feed.Payload{}, io.EOF
	case <-ctx.Done():
		return feed.Payload{}, ctx.Err()
	}
}

// Close stops the listener.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.closeErr = h.listener.Close()
	})
	return h.closeErr
}
