package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/changefeed/component"
	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/memtable"
)

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []feed.Payload
	tables   []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, table string, payload feed.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tables = append(p.tables, table)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *recordingPublisher) snapshot() []feed.Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]feed.Payload(nil), p.payloads...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayPublishesInOrder(t *testing.T) {
	ctx := context.Background()
	store := memtable.New(nil)
	if err := store.CreateTable(ctx, "test"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	pub := &recordingPublisher{}
	r := New(store, "test", pub, logger.Nop())

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(ctx); !apperrors.HasCode(err, apperrors.ErrCodeProtocolMisuse) {
		t.Errorf("expected PROTOCOL_MISUSE on second start, got %v", err)
	}

	_, _ = store.Insert(ctx, "test", feed.Document{"id": 7, "v": 1})
	_, _ = store.Update(ctx, "test", 7, feed.Document{"v": 2})
	_, _ = store.Delete(ctx, "test", 7)
	_ = store.DropTable(ctx, "test")

	waitFor(t, "four payloads", func() bool { return len(pub.snapshot()) == 4 })

	got := pub.snapshot()
	wantKinds := []feed.Kind{feed.KindInsert, feed.KindUpdate, feed.KindDelete}
	for i, want := range wantKinds {
		rec, err := got[i].Record()
		if err != nil || rec.Kind() != want {
			t.Errorf("payload %d = %+v, %v; want %s", i, rec, err, want)
		}
	}
	if !apperrors.IsAborted(got[3].Err()) {
		t.Errorf("expected abort payload last, got %+v", got[3])
	}
	if pub.tables[0] != "test" {
		t.Errorf("published to %q", pub.tables[0])
	}
	if h := r.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy relay, got %+v", h)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h := r.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy after stop, got %+v", h)
	}
	if store.Subscribers("test") != 0 {
		t.Error("expected the relay's subscription to be released")
	}
}

func TestRelayPublishFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := memtable.New(nil)
	_ = store.CreateTable(ctx, "test")
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := New(store, "test", pub, logger.Nop())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop(ctx)

	_, _ = store.Insert(ctx, "test", feed.Document{"id": 1})
	waitFor(t, "degraded health", func() bool { return r.Health(ctx).Status == component.StatusDegraded })

	pub.setErr(nil)
	_, _ = store.Insert(ctx, "test", feed.Document{"id": 2})
	waitFor(t, "recovery", func() bool { return r.Health(ctx).Status == component.StatusHealthy })
	if r.Published() != 1 {
		t.Errorf("expected 1 published payload, got %d", r.Published())
	}
}

func TestRelayStartUnknownTable(t *testing.T) {
	r := New(memtable.New(nil), "missing", &recordingPublisher{}, logger.Nop())
	if err := r.Start(context.Background()); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if h := r.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy, got %+v", h)
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("Stop on unstarted relay: %v", err)
	}
}

func TestRelayEndsWithSource(t *testing.T) {
	ctx := context.Background()
	store := memtable.New(nil)
	_ = store.CreateTable(ctx, "test")
	r := New(store, "test", &recordingPublisher{}, logger.Nop())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_ = store.Close()
	waitFor(t, "feed to close", func() bool { return r.Health(ctx).Message == "feed closed" })
	if err := r.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestFanout(t *testing.T) {
	first, broken, last := &recordingPublisher{}, &recordingPublisher{}, &recordingPublisher{}
	boom := errors.New("broker down")
	broken.setErr(boom)

	err := Fanout{first, broken, last}.Publish(context.Background(), "test", feed.AbortPayload("table unavailable"))
	if !errors.Is(err, boom) {
		t.Errorf("expected the broken publisher's error, got %v", err)
	}
	if len(first.snapshot()) != 1 || len(last.snapshot()) != 1 {
		t.Errorf("expected the healthy publishers to receive the payload")
	}
	if err := (Fanout{}).Publish(context.Background(), "test", feed.AbortPayload("x")); err != nil {
		t.Errorf("empty fanout: %v", err)
	}
}
