package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/observability"
)

// State is the lifecycle state of a Feed.
type State int32

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	if s == StateClosed {
		return "closed"
	}
	return "open"
}

// Feed is a long-lived, possibly infinite cursor over change records.
//
// A Feed is consumed either by pulling with Next or by pushing with Each
// (or Stream), never both at once. It owns its Handle exclusively and never
// polls ahead of demand. Once closed it delivers nothing more.
type Feed struct {
	id      string
	table   string
	handle  Handle
	log     *logger.Logger
	metrics *observability.FeedMetrics

	state atomic.Int32
	// busy is held by an in-flight Next or for the lifetime of a push consumer.
	busy atomic.Bool

	// deliver orders push deliveries against Close.
	deliver sync.Mutex

	// ctx is canceled by Close to unblock an in-flight poll.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Open validates req, opens a subscription on src and wraps it in a Feed.
func Open(ctx context.Context, src Source, req Request, opts ...Option) (f *Feed, err error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.metrics == nil {
		o.metrics = observability.DefaultFeedMetrics()
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanFeedOpen)
	span.SetAttributes(
		attribute.String(observability.AttrTable, req.Table),
		attribute.String(observability.AttrFeedID, o.id),
	)
	defer func() { observability.EndSpan(span, err) }()

	h, err := src.Open(ctx, req)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); !ok {
			err = apperrors.Transport(err)
		}
		return nil, err
	}

	return newFeed(h, req.Table, o), nil
}

// FromHandle wraps an already open handle. table is used for logs and metrics.
func FromHandle(h Handle, table string, opts ...Option) *Feed {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.metrics == nil {
		o.metrics = observability.DefaultFeedMetrics()
	}
	return newFeed(h, table, o)
}

func newFeed(h Handle, table string, o options) *Feed {
	f := &Feed{
		id:      o.id,
		table:   table,
		handle:  h,
		metrics: o.metrics,
	}
	f.log = logger.OrNop(o.log).WithFields(logger.Fields(
		logger.FieldFeedID, f.id,
		logger.FieldTable, table,
	))
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.metrics.RecordOpen(f.ctx, table)
	f.log.Debug("feed opened")
	return f
}

// ID returns the feed id.
func (f *Feed) ID() string { return f.id }

// Table returns the watched table name.
func (f *Feed) Table() string { return f.table }

// State returns the current lifecycle state.
func (f *Feed) State() State { return State(f.state.Load()) }

// Done returns a channel that is closed once the feed is closed.
func (f *Feed) Done() <-chan struct{} { return f.ctx.Done() }

func (f *Feed) closed() bool { return f.State() == StateClosed }

// Next returns the next change, or the error delivered in its place.
// Exactly one of the results is non-nil.
//
// On a closed feed it returns CURSOR_CLOSED without polling. When the
// source ends the stream it returns NO_MORE_ELEMENTS and closes the feed.
// When ctx is done first it returns ctx.Err() and the feed stays open.
// A Close during the call makes it return CURSOR_CLOSED.
func (f *Feed) Next(ctx context.Context) (*ChangeRecord, error) {
	if f.closed() {
		return nil, apperrors.CursorClosed()
	}
	if !f.busy.CompareAndSwap(false, true) {
		return nil, apperrors.ProtocolMisuse("feed is already being read")
	}
	defer f.busy.Store(false)

	return f.poll(ctx)
}

// poll runs exactly one Handle.Poll and classifies its outcome.
func (f *Feed) poll(ctx context.Context) (*ChangeRecord, error) {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(f.ctx, cancel)
	defer stop()

	start := time.Now()
	p, err := f.handle.Poll(pctx)
	f.metrics.RecordPoll(f.ctx, f.table, time.Since(start))

	if f.closed() {
		return nil, apperrors.CursorClosed()
	}

	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			f.log.Debug("source ended the stream")
			_ = f.Close()
			return nil, apperrors.NoMoreElements()
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		if _, ok := apperrors.AsAppError(err); !ok {
			err = apperrors.Transport(err)
		}
		f.recordError(err)
		return nil, err
	}

	if !p.IsChange() {
		appErr := p.Err()
		f.recordError(appErr)
		return nil, appErr
	}

	rec, err := p.Record()
	if err != nil {
		f.recordError(err)
		return nil, err
	}
	f.metrics.RecordDelivery(f.ctx, f.table, string(rec.Kind()), "")
	return rec, nil
}

func (f *Feed) recordError(err error) {
	code := string(apperrors.ErrCodeInternal)
	if appErr, ok := apperrors.AsAppError(err); ok {
		code = string(appErr.Code)
	}
	f.metrics.RecordDelivery(f.ctx, f.table, "error", code)
	f.log.Debug("delivering error", logger.Fields(logger.FieldCode, code, logger.FieldError, err.Error()))
}

// Each registers a push consumer and returns immediately. A dedicated
// goroutine polls the source and calls onEvent for every item, with exactly
// one non-nil argument, until the feed is closed (from any goroutine,
// including inside onEvent) or the source ends the stream. Then onDone is
// called once, if non-nil. onEvent is never called after onDone. A Close
// from another goroutine wins against every delivery not yet begun; the one
// delivery already begun may still run after that Close returns.
//
// Each returns CURSOR_CLOSED on a closed feed and PROTOCOL_MISUSE when the
// feed is already being consumed.
func (f *Feed) Each(onEvent func(*ChangeRecord, error), onDone func()) error {
	if onEvent == nil {
		return apperrors.MissingField("onEvent")
	}
	if f.closed() {
		return apperrors.CursorClosed()
	}
	if !f.busy.CompareAndSwap(false, true) {
		return apperrors.ProtocolMisuse("feed is already being read")
	}

	f.log.Debug("push consumer registered", logger.Fields(logger.FieldMode, "push"))
	go f.pump(onEvent, onDone)
	return nil
}

func (f *Feed) pump(onEvent func(*ChangeRecord, error), onDone func()) {
	defer func() {
		if onDone != nil {
			onDone()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("push consumer panicked", logger.Fields(logger.FieldError, fmt.Sprint(r)))
			_ = f.Close()
		}
	}()

	for !f.closed() {
		rec, err := f.poll(f.ctx)
		if !f.beginDelivery() {
			return
		}
		onEvent(rec, err)
	}
}

// beginDelivery reports whether the feed is still open, ordered against
// Close. The lock is not held while onEvent runs, so Close stays callable
// from the callback.
func (f *Feed) beginDelivery() bool {
	f.deliver.Lock()
	defer f.deliver.Unlock()
	return !f.closed()
}

// Close closes the feed and its handle. It is idempotent and safe from any
// state and from inside push callbacks; the handle's close error is
// returned on every call.
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		f.deliver.Lock()
		f.state.Store(int32(StateClosed))
		f.deliver.Unlock()
		f.cancel()
		f.closeErr = f.handle.Close()
		f.metrics.RecordClose(context.Background(), f.table)
		if f.closeErr != nil {
			f.log.Warn("closing feed handle failed", logger.Fields(logger.FieldError, f.closeErr.Error()))
		}
		f.log.Debug("feed closed")
	})
	return f.closeErr
}
