package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
)

// messageReader is the part of *kafkago.Reader a subscription uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Source opens subscriptions on table topics. It implements feed.Source.
type Source struct {
	cfg    Config
	dialer *kafkago.Dialer
	log    *logger.Logger

	// lastOffset resolves the end of a partition; replaced in tests.
	lastOffset func(ctx context.Context, topic string) (int64, error)
}

var _ feed.Source = (*Source)(nil)

// NewSource creates a Source.
func NewSource(cfg Config, log *logger.Logger) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka source config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}

	dialer, err := newDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka source dialer: %w", err)
	}
	s := &Source{cfg: cfg, dialer: dialer, log: logger.OrNop(log).WithComponent("kafka.source")}
	s.lastOffset = s.readLastOffset
	return s, nil
}

// Open subscribes to a table's topic. Without a group the subscription
// reads partition 0 from the offset that is last at Open time; with a
// group it resumes from the group's committed offset, or the end of the
// topic for a new group.
func (s *Source) Open(ctx context.Context, req feed.Request) (feed.Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	topic := s.cfg.Topic(req.Table)

	rc := kafkago.ReaderConfig{
		Brokers:     s.cfg.Brokers,
		Topic:       topic,
		Dialer:      s.dialer,
		StartOffset: kafkago.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     parseDuration(s.cfg.MaxWait),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			s.log.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields(logger.FieldTable, req.Table))
		}),
	}

	var offset int64
	if s.cfg.GroupID != "" {
		rc.GroupID = s.cfg.GroupID
		rc.SessionTimeout = parseDuration(s.cfg.SessionTimeout)
		rc.HeartbeatInterval = parseDuration(s.cfg.HeartbeatInterval)
	} else {
		var err error
		if offset, err = s.lastOffset(ctx, topic); err != nil {
			return nil, classify(fmt.Errorf("resolve offset of %s: %w", topic, err))
		}
	}

	reader := kafkago.NewReader(rc)
	if rc.GroupID == "" {
		if err := reader.SetOffset(offset); err != nil {
			_ = reader.Close()
			return nil, apperrors.Transport(err)
		}
	}

	s.log.Debug("topic subscription opened", logger.Fields(
		logger.FieldTable, req.Table,
		"topic", topic,
		"group_id", rc.GroupID,
		"offset", offset,
	))
	return newHandle(reader, rc.GroupID != "", s.log.WithFields(logger.Fields(logger.FieldTable, req.Table))), nil
}

func (s *Source) readLastOffset(ctx context.Context, topic string) (int64, error) {
	conn, err := s.dialer.DialLeader(ctx, "tcp", s.cfg.Brokers[0], topic, 0)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()
	return conn.ReadLastOffset()
}

type handle struct {
	reader messageReader
	commit bool
	log    *logger.Logger

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newHandle(r messageReader, commit bool, log *logger.Logger) *handle {
	return &handle{reader: r, commit: commit, log: log, done: make(chan struct{})}
}

// Poll fetches the next message. With a group, the message is committed
// before its payload is returned.
func (h *handle) Poll(ctx context.Context) (feed.Payload, error) {
	msg, err := h.reader.FetchMessage(ctx)
	if err != nil {
		select {
		case <-h.done:
			return feed.Payload{}, io.EOF
		default:
		}
		switch {
		case errors.Is(err, io.EOF):
			return feed.Payload{}, io.EOF
		case ctx.Err() != nil:
			return feed.Payload{}, ctx.Err()
		}
		return feed.Payload{}, classify(err)
	}

	if h.commit {
		if err := h.reader.CommitMessages(ctx, msg); err != nil {
			h.log.Warn("commit failed", logger.Fields("offset", msg.Offset, logger.FieldError, err.Error()))
		}
	}
	return feed.DecodePayload(msg.Value)
}

// Close closes the reader, unblocking Poll.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.closeErr = h.reader.Close()
	})
	return h.closeErr
}
