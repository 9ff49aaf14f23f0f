package harness

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
)

var abortPattern = regexp.MustCompile(`^Changefeed aborted \(table unavailable`)

const (
	hasNextMessage = "`hasNext` is not available for feeds."
	toArrayMessage = "`toArray` is not available for feeds."
)

func isTableAbort(err error) bool {
	return apperrors.IsAborted(err) && abortPattern.MatchString(err.Error())
}

func open(ctx context.Context, env Env) (*feed.Feed, error) {
	return openFrom(ctx, env, env.Source)
}

func openFrom(ctx context.Context, env Env, src feed.Source) (*feed.Feed, error) {
	f, err := feed.Open(ctx, src, feed.Request{Table: env.Table}, feed.WithLogger(env.Log))
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	return f, nil
}

// matches reports whether doc is exactly {id, value}.
func matches(doc feed.Document, id any, value string) bool {
	return doc != nil && len(doc) == 2 && doc.Key() == feed.KeyOf(id) && doc["value"] == value
}

// PullOrdering inserts, updates, replaces and deletes one document, then
// drops the table. Four Next calls must yield the four changes in order
// with the right before and after images, and the fifth the table abort.
// The table is recreated afterwards.
func PullOrdering() Scenario {
	return Scenario{Name: "pull-ordering", Run: func(ctx context.Context, env Env) error {
		id := env.id()
		if _, err := env.Admin.Delete(ctx, env.Table, id); err != nil && !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return fmt.Errorf("clear document %v: %w", id, err)
		}

		f, err := open(ctx, env)
		if err != nil {
			return err
		}
		defer f.Close()

		writes := func() error {
			if _, err := env.Admin.Insert(ctx, env.Table, feed.Document{"id": id, "value": "insert"}); err != nil {
				return err
			}
			if _, err := env.Admin.Update(ctx, env.Table, id, feed.Document{"value": "update"}); err != nil {
				return err
			}
			if _, err := env.Admin.Replace(ctx, env.Table, id, feed.Document{"id": id, "value": "replace"}); err != nil {
				return err
			}
			if _, err := env.Admin.Delete(ctx, env.Table, id); err != nil {
				return err
			}
			return env.Admin.DropTable(ctx, env.Table)
		}
		if err := writes(); err != nil {
			return fmt.Errorf("writes: %w", err)
		}

		type image struct{ old, new string }
		want := []image{{"", "insert"}, {"insert", "update"}, {"update", "replace"}, {"replace", ""}}
		for i, w := range want {
			rec, err := f.Next(ctx)
			if err != nil {
				return fmt.Errorf("change %d: %w", i, err)
			}
			if (w.old == "") != (rec.OldVal == nil) || (w.old != "" && !matches(rec.OldVal, id, w.old)) {
				return fmt.Errorf("change %d: unexpected old_val %v", i, rec.OldVal)
			}
			if (w.new == "") != (rec.NewVal == nil) || (w.new != "" && !matches(rec.NewVal, id, w.new)) {
				return fmt.Errorf("change %d: unexpected new_val %v", i, rec.NewVal)
			}
		}

		if _, err := f.Next(ctx); !isTableAbort(err) {
			return fmt.Errorf("expected table abort after the delete, got %v", err)
		}
		return env.Admin.CreateTable(ctx, env.Table)
	}}
}

// PushAbort inserts three documents and drops the table while a push
// consumer is registered. The consumer must see the three inserts, then
// the abort, on which it closes the feed; onDone must then fire once and
// no event may follow it. The table is recreated from onDone.
func PushAbort() Scenario {
	return Scenario{Name: "push-abort", Run: func(ctx context.Context, env Env) error {
		f, err := open(ctx, env)
		if err != nil {
			return err
		}
		defer f.Close()

		var (
			mu       sync.Mutex
			count    int
			failure  error
			finished bool
			dones    int
		)
		fail := func(err error) {
			if failure == nil {
				failure = err
			}
		}
		recreated := make(chan error, 1)

		onEvent := func(rec *feed.ChangeRecord, err error) {
			mu.Lock()
			defer mu.Unlock()
			switch {
			case finished:
				fail(errors.New("event delivered after onDone"))
			case (rec == nil) == (err == nil):
				fail(fmt.Errorf("event with record %v and error %v", rec, err))
			case err != nil:
				if count != 3 || !isTableAbort(err) {
					fail(fmt.Errorf("unexpected error after %d inserts: %w", count, err))
				}
				_ = f.Close()
			case count < 3:
				if rec.OldVal != nil || rec.NewVal == nil {
					fail(fmt.Errorf("insert %d: unexpected record %+v", count, rec))
				}
				count++
			default:
				fail(errors.New("more than three changes delivered"))
			}
		}
		onDone := func() {
			mu.Lock()
			finished = true
			dones++
			mu.Unlock()
			recreated <- env.Admin.CreateTable(context.WithoutCancel(ctx), env.Table)
		}
		if err := f.Each(onEvent, onDone); err != nil {
			return fmt.Errorf("each: %w", err)
		}

		for i := 0; i < 3; i++ {
			if _, err := env.Admin.Insert(ctx, env.Table, feed.Document{}); err != nil {
				return fmt.Errorf("insert %d: %w", i, err)
			}
		}
		if err := env.Admin.DropTable(ctx, env.Table); err != nil {
			return fmt.Errorf("drop: %w", err)
		}

		select {
		case err := <-recreated:
			if err != nil {
				return fmt.Errorf("recreate table: %w", err)
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for onDone: %w", ctx.Err())
		}

		mu.Lock()
		defer mu.Unlock()
		if failure != nil {
			return failure
		}
		if count != 3 || dones != 1 {
			return fmt.Errorf("saw %d inserts and %d onDone calls", count, dones)
		}
		return nil
	}}
}

// RestrictedOperations checks that hasNext and toArray fail on a feed with
// their literal messages, both while it is open and after Close.
func RestrictedOperations() Scenario {
	return Scenario{Name: "restricted-operations", Run: func(ctx context.Context, env Env) error {
		f, err := open(ctx, env)
		if err != nil {
			return err
		}
		check := func(state string) error {
			if _, err := feed.HasNext(f); err == nil || err.Error() != hasNextMessage {
				return fmt.Errorf("hasNext on %s feed: got %v", state, err)
			}
			if _, err := feed.ToArray(ctx, f); err == nil || err.Error() != toArrayMessage {
				return fmt.Errorf("toArray on %s feed: got %v", state, err)
			}
			return nil
		}
		if err := check("open"); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
		return check("closed")
	}}
}

// CloseInFlight closes a feed once a Next has reached the source. The Next
// must return CURSOR_CLOSED, and repeated Close calls must not fail.
func CloseInFlight() Scenario {
	return Scenario{Name: "close-in-flight", Run: func(ctx context.Context, env Env) error {
		src := &pollSignal{Source: env.Source, polling: make(chan struct{})}
		f, err := openFrom(ctx, env, src)
		if err != nil {
			return err
		}

		type result struct {
			rec *feed.ChangeRecord
			err error
		}
		results := make(chan result, 2)
		go func() {
			rec, err := f.Next(ctx)
			results <- result{rec, err}
		}()

		select {
		case res := <-results:
			_ = f.Close()
			return fmt.Errorf("Next returned before Close: %+v", res)
		case <-src.polling:
		case <-ctx.Done():
			_ = f.Close()
			return fmt.Errorf("Next never reached the source: %w", ctx.Err())
		}

		for i := 0; i < 3; i++ {
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %d: %w", i, err)
			}
		}

		select {
		case res := <-results:
			if res.rec != nil || !apperrors.IsCursorClosed(res.err) {
				return fmt.Errorf("in-flight Next resolved with %+v", res)
			}
		case <-ctx.Done():
			return fmt.Errorf("in-flight Next did not resolve: %w", ctx.Err())
		}

		if _, err := f.Next(ctx); !apperrors.IsCursorClosed(err) {
			return fmt.Errorf("Next on closed feed: got %v", err)
		}
		return nil
	}}
}

// AbortRecovery drops the table under an open feed, then recreates it.
// The feed reports the abort and then delivers writes to the new table.
func AbortRecovery() Scenario {
	return Scenario{Name: "abort-recovery", Run: func(ctx context.Context, env Env) error {
		f, err := open(ctx, env)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := env.Admin.DropTable(ctx, env.Table); err != nil {
			return fmt.Errorf("drop: %w", err)
		}
		if _, err := f.Next(ctx); !isTableAbort(err) {
			return fmt.Errorf("expected table abort, got %v", err)
		}

		if err := env.Admin.CreateTable(ctx, env.Table); err != nil {
			return fmt.Errorf("recreate: %w", err)
		}
		doc, err := env.Admin.Insert(ctx, env.Table, feed.Document{"value": "recovered"})
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		rec, err := f.Next(ctx)
		if err != nil {
			return fmt.Errorf("next after recovery: %w", err)
		}
		if rec.OldVal != nil || rec.NewVal.Key() != doc.Key() {
			return fmt.Errorf("unexpected record after recovery %+v", rec)
		}
		if f.State() != feed.StateOpen {
			return errors.New("feed closed by a transient abort")
		}
		return nil
	}}
}

// pollSignal closes polling once a handle it opened starts its first Poll.
type pollSignal struct {
	feed.Source
	polling chan struct{}
	once    sync.Once
}

func (s *pollSignal) Open(ctx context.Context, req feed.Request) (feed.Handle, error) {
	h, err := s.Source.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return &signalHandle{Handle: h, signal: s}, nil
}

type signalHandle struct {
	feed.Handle
	signal *pollSignal
}

func (h *signalHandle) Poll(ctx context.Context) (feed.Payload, error) {
	h.signal.once.Do(func() { close(h.signal.polling) })
	return h.Handle.Poll(ctx)
}
