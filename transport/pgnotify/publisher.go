package pgnotify

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/kbukum/changefeed/component"
	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
)

// maxPayloadLen is the NOTIFY payload limit of a default PostgreSQL build.
const maxPayloadLen = 7999

// execer is the part of *sql.DB a Publisher uses.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Publisher sends payloads with pg_notify.
type Publisher struct {
	db  execer
	cfg Config
	log *logger.Logger
}

var _ component.Component = (*Publisher)(nil)

// NewPublisher opens a connection pool for notifications. No connection
// is made until first use.
func NewPublisher(cfg Config, log *logger.Logger) (*Publisher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("postgres publisher config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("postgres is disabled")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	return &Publisher{db: db, cfg: cfg, log: logger.OrNop(log).WithComponent("pgnotify.publisher")}, nil
}

// Publish notifies the table's channel with the payload envelope.
func (p *Publisher) Publish(ctx context.Context, table string, payload feed.Payload) error {
	data, err := feed.EncodePayload(payload)
	if err != nil {
		return err
	}
	if len(data) > maxPayloadLen {
		return apperrors.InvalidInput("payload", fmt.Sprintf("encoded payload is %d bytes; notifications carry at most %d", len(data), maxPayloadLen))
	}
	channel := p.cfg.Channel(table)
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, string(data)); err != nil {
		return apperrors.Transport(fmt.Errorf("notify %s: %w", channel, err))
	}
	return nil
}

// Name implements component.Component.
func (p *Publisher) Name() string { return "pgnotify-publisher" }

// Start verifies connectivity.
func (p *Publisher) Start(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres start: %w", err)
	}
	p.log.Info("PostgreSQL publisher started")
	return nil
}

// Stop closes the pool.
func (p *Publisher) Stop(context.Context) error { return p.db.Close() }

// Health pings the database.
func (p *Publisher) Health(ctx context.Context) component.Health {
	if err := p.db.PingContext(ctx); err != nil {
		return component.Health{Name: p.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}
