package main

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/changefeed/bootstrap"
	"github.com/kbukum/changefeed/client"
	"github.com/kbukum/changefeed/config"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/harness"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/server"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Name != "feedserver" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected defaults: name=%q port=%d", cfg.Name, cfg.Server.Port)
	}
	if cfg.Relays.Redis.KeyPrefix != "changefeed:" || cfg.Relays.Kafka.TopicPrefix != "changefeed." {
		t.Errorf("expected transport defaults applied")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relay tables without transport", func(c *Config) { c.Relays.Tables = []string{"test"} }, "no relay transport"},
		{"bad sample rate", func(c *Config) { c.Observability.SampleRate = 2 }, "sample_rate"},
		{"short auth secret", func(c *Config) { c.Server.Auth.Enabled = true }, "auth.secret"},
		{"redis without addr", func(c *Config) { c.Relays.Redis.Enabled = true; c.Relays.Redis.Addr = "" }, "relays.redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigTables(t *testing.T) {
	cfg := Config{Tables: []string{"test", "users"}, Relays: RelaysConfig{Tables: []string{"users", "orders"}}}
	if got := strings.Join(cfg.tables(), ","); got != "test,users,orders" {
		t.Errorf("tables() = %s", got)
	}
}

func TestServeAndRelay(t *testing.T) {
	mini := miniredis.RunT(t)

	cfg := &Config{
		ServiceConfig: config.ServiceConfig{Name: "feedserver", Version: "test"},
		Tables:        []string{"test"},
	}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Relays.Tables = []string{"orders"}
	cfg.Relays.Redis.Enabled = true
	cfg.Relays.Redis.Addr = mini.Addr()
	cfg.Relays.Redis.Block = "50ms"

	app, err := newApp(cfg, bootstrap.WithLogger(logger.Nop()), bootstrap.WithGracefulTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	err = app.RunTask(ctx, func(ctx context.Context) error {
		for _, name := range []string{"memtable", "redis-stream", "relay:orders", "http-server"} {
			if app.Components.Get(name) == nil {
				t.Errorf("component %s not registered", name)
			}
		}
		srv := app.Components.Get("http-server").(*server.Server)

		c, err := client.New(client.Config{BaseURL: "http://" + srv.Addr()}, logger.Nop())
		if err != nil {
			return err
		}
		if report := harness.Run(ctx, harness.Env{Source: c, Admin: c, Table: "test"}); !report.Passed() {
			t.Errorf("harness failed:\n%s", report)
		}

		if _, err := c.Insert(ctx, "orders", feed.Document{"id": "o-1"}); err != nil {
			return err
		}
		deadline := time.Now().Add(5 * time.Second)
		for {
			entries, _ := mini.Stream("changefeed:orders")
			if len(entries) == 1 {
				return nil
			}
			if time.Now().After(deadline) {
				t.Errorf("expected one relayed entry, got %d", len(entries))
				return nil
			}
			time.Sleep(10 * time.Millisecond)
		}
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}
