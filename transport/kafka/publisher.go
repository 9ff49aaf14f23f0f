package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/changefeed/component"
	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
)

// messageWriter is the part of *kafkago.Writer a Publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes payloads to table topics, keyed by document id so the
// changes of one document stay in order.
type Publisher struct {
	writer messageWriter
	cfg    Config
	log    *logger.Logger
	mu     sync.RWMutex
	closed bool
}

var _ component.Component = (*Publisher)(nil)

// NewPublisher creates a Publisher.
func NewPublisher(cfg Config, log *logger.Logger) (*Publisher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka publisher config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}

	transport, err := newTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher transport: %w", err)
	}

	log = logger.OrNop(log).WithComponent("kafka.publisher")
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Transport:              transport,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           parseDuration(cfg.BatchTimeout),
		RequiredAcks:           kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression(cfg.Compression),
		WriteTimeout:           parseDuration(cfg.WriteTimeout),
		AllowAutoTopicCreation: true,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("writer: " + fmt.Sprintf(msg, args...))
		}),
	}

	log.Info("Kafka publisher initialized", logger.Fields(
		"brokers", cfg.Brokers,
		"compression", cfg.Compression,
		"topic_prefix", cfg.TopicPrefix,
	))
	return &Publisher{writer: writer, cfg: cfg, log: log}, nil
}

// Publish writes one payload to the table's topic, retrying up to
// Config.Retries times.
func (p *Publisher) Publish(ctx context.Context, table string, payload feed.Payload) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return apperrors.ServiceUnavailable("kafka publisher")
	}

	msg, err := p.message(table, payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			return nil
		}
		if attempt < p.cfg.Retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	return classify(fmt.Errorf("write after %d retries: %w", p.cfg.Retries, lastErr))
}

func (p *Publisher) message(table string, payload feed.Payload) (kafkago.Message, error) {
	data, err := feed.EncodePayload(payload)
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Topic: p.cfg.Topic(table),
		Key:   []byte(messageKey(payload)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "payload-type", Value: []byte(payload.Type)},
		},
	}, nil
}

// messageKey is the id of the changed document, or "" for error payloads.
func messageKey(p feed.Payload) string {
	if !p.IsChange() {
		return ""
	}
	rec, err := p.Record()
	if err != nil {
		return ""
	}
	return rec.Key()
}

// Name implements component.Component.
func (p *Publisher) Name() string { return "kafka-publisher" }

// Start implements component.Component. The writer connects lazily.
func (p *Publisher) Start(context.Context) error { return nil }

// Stop closes the writer, flushing pending messages.
func (p *Publisher) Stop(context.Context) error { return p.Close() }

// Health implements component.Component.
func (p *Publisher) Health(context.Context) component.Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return component.Health{Name: p.Name(), Status: component.StatusUnhealthy, Message: "publisher closed"}
	}
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}

// Close shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("Kafka publisher closing")
	return p.writer.Close()
}
