// Command feedserver serves in-memory tables over HTTP with server-sent
// change streams, and optionally relays table changes to Redis Streams,
// Kafka or PostgreSQL NOTIFY.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/changefeed/bootstrap"
	"github.com/kbukum/changefeed/config"
	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/memtable"
	"github.com/kbukum/changefeed/observability"
	"github.com/kbukum/changefeed/relay"
	"github.com/kbukum/changefeed/server"
	"github.com/kbukum/changefeed/transport/kafka"
	"github.com/kbukum/changefeed/transport/pgnotify"
	"github.com/kbukum/changefeed/transport/redisstream"
)

func main() {
	var cfg Config
	if err := config.LoadConfig("feedserver", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "feedserver: %v\n", err)
		os.Exit(1)
	}

	app, err := newApp(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "feedserver: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(context.Background()); err != nil {
		app.Logger.Error("feedserver failed", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}

func newApp(cfg *Config, opts ...bootstrap.Option) (*bootstrap.App[*Config], error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}

	store := memtable.New(app.Logger)
	if err := app.RegisterComponent(store); err != nil {
		return nil, err
	}

	app.OnStart(func(ctx context.Context) error {
		return initObservability(ctx, app)
	})
	app.OnStart(func(ctx context.Context) error {
		for _, t := range cfg.tables() {
			if err := store.CreateTable(ctx, t); err != nil && !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
				return fmt.Errorf("create table %s: %w", t, err)
			}
		}
		return nil
	})

	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		pubs, err := registerPublishers(a)
		if err != nil {
			return err
		}
		for _, t := range a.Cfg.Relays.Tables {
			if err := a.RegisterComponent(relay.New(store, t, pubs, a.Logger)); err != nil {
				return err
			}
		}
		return a.RegisterComponent(server.New(a.Cfg.Server, store, a.Components.HealthAll, a.Logger))
	})
	return app, nil
}

// registerPublishers registers a component for every enabled transport and
// returns them as one publisher.
func registerPublishers(a *bootstrap.App[*Config]) (relay.Fanout, error) {
	rc := a.Cfg.Relays
	var pubs relay.Fanout

	if rc.Redis.Enabled {
		c, err := redisstream.New(rc.Redis, a.Logger)
		if err != nil {
			return nil, err
		}
		if err := a.RegisterComponent(c); err != nil {
			return nil, err
		}
		pubs = append(pubs, c)
	}
	if rc.Kafka.Enabled {
		p, err := kafka.NewPublisher(rc.Kafka, a.Logger)
		if err != nil {
			return nil, err
		}
		if err := a.RegisterComponent(p); err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if rc.Postgres.Enabled {
		p, err := pgnotify.NewPublisher(rc.Postgres, a.Logger)
		if err != nil {
			return nil, err
		}
		if err := a.RegisterComponent(p); err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

func initObservability(ctx context.Context, a *bootstrap.App[*Config]) error {
	oc := a.Cfg.Observability
	if oc.Tracing {
		tc := observability.DefaultTracerConfig(a.Name)
		tc.ServiceVersion = a.Version
		tc.Environment = a.Cfg.Environment
		tc.Endpoint = oc.Endpoint
		tc.Insecure = oc.Insecure
		tc.SampleRate = oc.SampleRate
		tp, err := observability.InitTracer(ctx, tc)
		if err != nil {
			return err
		}
		a.OnStop(tp.Shutdown)
	}
	if oc.Metrics {
		mc := observability.DefaultMeterConfig(a.Name)
		mc.ServiceVersion = a.Version
		mc.Environment = a.Cfg.Environment
		mc.Endpoint = oc.Endpoint
		mc.Insecure = oc.Insecure
		mc.Interval = oc.Interval
		mp, err := observability.InitMeter(ctx, &mc)
		if err != nil {
			return err
		}
		a.OnStop(mp.Shutdown)
	}
	return nil
}
