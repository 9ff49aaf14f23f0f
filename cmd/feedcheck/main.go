// Command feedcheck runs the changefeed scenarios against a running
// feedserver and exits non-zero when any of them fails.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kbukum/changefeed/bootstrap"
	"github.com/kbukum/changefeed/client"
	"github.com/kbukum/changefeed/config"
	"github.com/kbukum/changefeed/harness"
	"github.com/kbukum/changefeed/logger"
)

func main() {
	var cfg Config
	if err := config.LoadConfig("feedcheck", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "feedcheck: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "feedcheck: %v\n", err)
		os.Exit(1)
	}

	err = app.RunTask(context.Background(), func(ctx context.Context) error {
		return check(ctx, app.Cfg, app.Logger, os.Stdout)
	})
	if err != nil {
		app.Logger.Error("feedcheck failed", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}

// check runs the selected scenarios within cfg.Timeout and writes the
// report to w.
func check(ctx context.Context, cfg *Config, log *logger.Logger, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c, err := client.New(cfg.Client, log)
	if err != nil {
		return err
	}
	scenarios, err := cfg.selected()
	if err != nil {
		return err
	}

	report := harness.Run(ctx, harness.Env{Source: c, Admin: c, Table: cfg.Table, Log: log}, scenarios...)
	fmt.Fprint(w, report)
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d scenarios failed", len(failed), len(report.Results))
	}
	return nil
}

// selected resolves cfg.Scenarios by name. Nil means all.
func (c *Config) selected() ([]harness.Scenario, error) {
	if len(c.Scenarios) == 0 {
		return nil, nil
	}
	byName := make(map[string]harness.Scenario)
	var names []string
	for _, sc := range harness.All() {
		byName[sc.Name] = sc
		names = append(names, sc.Name)
	}

	out := make([]harness.Scenario, 0, len(c.Scenarios))
	for _, name := range c.Scenarios {
		sc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (known: %s)", name, strings.Join(names, ", "))
		}
		out = append(out, sc)
	}
	return out, nil
}
