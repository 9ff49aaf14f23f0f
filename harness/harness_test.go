package harness_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/changefeed/client"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/harness"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/memtable"
	"github.com/kbukum/changefeed/server"
)

func runAll(t *testing.T, env harness.Env) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	report := harness.Run(ctx, env)
	if len(report.Results) != len(harness.All()) {
		t.Fatalf("expected %d results, got %d", len(harness.All()), len(report.Results))
	}
	for _, res := range report.Results {
		if res.Err != nil {
			t.Errorf("%s: %v", res.Name, res.Err)
		}
	}
	if !report.Passed() {
		t.Log("\n" + report.String())
	}
}

func TestScenariosInProcess(t *testing.T) {
	store := memtable.New(nil)
	defer store.Close()

	runAll(t, harness.Env{Source: store, Admin: store, Table: "test", Log: logger.Nop()})
}

func TestScenariosOverHTTP(t *testing.T) {
	cfg := server.Config{}
	cfg.ApplyDefaults()
	store := memtable.New(nil)
	ts := httptest.NewServer(server.New(cfg, store, nil, logger.Nop()).Handler())
	t.Cleanup(func() {
		_ = store.Close()
		ts.CloseClientConnections()
		ts.Close()
	})

	c, err := client.New(client.Config{BaseURL: ts.URL}, logger.Nop())
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	runAll(t, harness.Env{Source: c, Admin: c, Table: "test", ID: "seven", Log: logger.Nop()})
}

func TestScenariosLeaveTableUsable(t *testing.T) {
	store := memtable.New(nil)
	defer store.Close()
	ctx := context.Background()

	// Runs twice so the second pass starts from the first pass's leftovers.
	env := harness.Env{Source: store, Admin: store, Table: "test"}
	for i := 0; i < 2; i++ {
		if report := harness.Run(ctx, env, harness.PullOrdering(), harness.AbortRecovery()); !report.Passed() {
			t.Fatalf("pass %d:\n%s", i, report)
		}
	}
	if tables, _ := store.Tables(ctx); len(tables) != 1 || tables[0] != "test" {
		t.Errorf("expected only the test table, got %v", tables)
	}
}

func TestReport(t *testing.T) {
	store := memtable.New(nil)
	defer store.Close()
	boom := errors.New("boom")
	report := harness.Run(context.Background(), harness.Env{Source: store, Admin: store, Table: "test"},
		harness.Scenario{Name: "passes", Run: func(context.Context, harness.Env) error { return nil }},
		harness.Scenario{Name: "fails", Run: func(context.Context, harness.Env) error { return boom }},
	)

	if report.Passed() {
		t.Fatal("expected a failing report")
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Name != "fails" || !errors.Is(failed[0].Err, boom) {
		t.Errorf("unexpected failures %+v", failed)
	}
	out := report.String()
	if !strings.Contains(out, "ok   passes") || !strings.Contains(out, "FAIL fails") || !strings.Contains(out, "boom") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestRunStopsOnDoneContext(t *testing.T) {
	store := memtable.New(nil)
	defer store.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	report := harness.Run(ctx, harness.Env{Source: store, Admin: store, Table: "test"},
		harness.Scenario{Name: "skipped", Run: func(context.Context, harness.Env) error { called = true; return nil }},
	)
	if called {
		t.Error("scenario ran on a done context")
	}
	if report.Passed() || !errors.Is(report.Results[0].Err, context.Canceled) {
		t.Errorf("unexpected report %+v", report.Results)
	}
}

func TestScenarioDetectsMissingAbort(t *testing.T) {
	store := memtable.New(nil)
	ctx := context.Background()

	// A store closed after the writes ends the stream instead of aborting.
	env := harness.Env{Source: store, Admin: closingAdmin{store}, Table: "test"}
	report := harness.Run(ctx, env, harness.PullOrdering())
	if report.Passed() {
		t.Fatal("expected pull-ordering to fail without an abort")
	}
	if !strings.Contains(report.Results[0].Err.Error(), "table abort") {
		t.Errorf("unexpected failure %v", report.Results[0].Err)
	}
}

// closingAdmin closes the store instead of dropping the table.
type closingAdmin struct{ *memtable.Store }

func (a closingAdmin) DropTable(ctx context.Context, name string) error { return a.Store.Close() }

// slowSource opens handles that take a while inside Poll before reaching
// the store, and counts the polls that started.
type slowSource struct {
	*memtable.Store
	polls atomic.Int32
}

func (s *slowSource) Open(ctx context.Context, req feed.Request) (feed.Handle, error) {
	h, err := s.Store.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return &slowHandle{Handle: h, src: s}, nil
}

type slowHandle struct {
	feed.Handle
	src *slowSource
}

func (h *slowHandle) Poll(ctx context.Context) (feed.Payload, error) {
	h.src.polls.Add(1)
	time.Sleep(100 * time.Millisecond)
	return h.Handle.Poll(ctx)
}

func TestCloseInFlightWaitsForPoll(t *testing.T) {
	store := memtable.New(nil)
	defer store.Close()
	src := &slowSource{Store: store}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report := harness.Run(ctx, harness.Env{Source: src, Admin: store, Table: "test", Log: logger.Nop()}, harness.CloseInFlight())
	if !report.Passed() {
		t.Fatalf("close-in-flight failed:\n%s", report.String())
	}
	if src.polls.Load() == 0 {
		t.Error("expected the feed to be polled before Close")
	}
}
