package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
)

// Admin performs the writes the scenarios observe. memtable.Store and
// client.Client implement it.
type Admin interface {
	CreateTable(ctx context.Context, name string) error
	DropTable(ctx context.Context, name string) error
	Insert(ctx context.Context, table string, doc feed.Document) (feed.Document, error)
	Update(ctx context.Context, table string, id any, patch feed.Document) (feed.Document, error)
	Replace(ctx context.Context, table string, id any, doc feed.Document) (feed.Document, error)
	Delete(ctx context.Context, table string, id any) (feed.Document, error)
}

// Env is what scenarios run against.
type Env struct {
	Source feed.Source
	Admin  Admin
	// Table is created when missing and is dropped and recreated by the
	// abort scenarios.
	Table string
	// ID is the document id the ordering scenario writes. Defaults to 7.
	ID  any
	Log *logger.Logger
}

func (e Env) id() any {
	if e.ID == nil {
		return 7
	}
	return e.ID
}

// Scenario is one named check.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, env Env) error
}

// Result is the outcome of one scenario.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Report collects scenario results in run order.
type Report struct {
	Results []Result
}

// Passed reports whether every scenario passed.
func (r Report) Passed() bool {
	return len(r.Failed()) == 0
}

// Failed returns the failing results.
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// String renders one line per scenario.
func (r Report) String() string {
	var b strings.Builder
	for _, res := range r.Results {
		status := "ok"
		if res.Err != nil {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%-4s %-22s %8s", status, res.Name, res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Fprintf(&b, "  %v", res.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// All returns every scenario in the order they are meant to run.
func All() []Scenario {
	return []Scenario{
		PullOrdering(),
		PushAbort(),
		RestrictedOperations(),
		CloseInFlight(),
		AbortRecovery(),
	}
}

// Run runs scenarios in order, all of them when none are given. The table
// is created first if needed. A failing scenario does not stop the run,
// but a done ctx does.
func Run(ctx context.Context, env Env, scenarios ...Scenario) Report {
	if len(scenarios) == 0 {
		scenarios = All()
	}
	log := logger.OrNop(env.Log).WithComponent("harness")

	var report Report
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			report.Results = append(report.Results, Result{Name: sc.Name, Err: ctx.Err()})
			continue
		}

		start := time.Now()
		err := ensureTable(ctx, env)
		if err == nil {
			err = sc.Run(ctx, env)
		}
		res := Result{Name: sc.Name, Err: err, Duration: time.Since(start)}
		report.Results = append(report.Results, res)

		fields := logger.Fields("scenario", sc.Name, logger.FieldDuration, res.Duration.Milliseconds())
		if err != nil {
			fields[logger.FieldError] = err.Error()
			log.Error("scenario failed", fields)
		} else {
			log.Info("scenario passed", fields)
		}
	}
	return report
}

func ensureTable(ctx context.Context, env Env) error {
	err := env.Admin.CreateTable(ctx, env.Table)
	if err != nil && !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		return fmt.Errorf("create table %s: %w", env.Table, err)
	}
	return nil
}
