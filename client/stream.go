package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
	"github.com/kbukum/changefeed/resilience"
)

// Open subscribes to a table's change stream. It returns once the server
// has confirmed the subscription, so writes issued afterwards are
// delivered. Retryable failures are retried per Config.Retry.
func (c *Client) Open(ctx context.Context, req feed.Request) (feed.Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cfg := c.config.Retry
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		if onRetry != nil {
			onRetry(attempt, err, backoff)
		}
		c.log.Warn("retrying change stream", logger.Fields(
			logger.FieldTable, req.Table,
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			logger.FieldError, err.Error(),
		))
	}
	return resilience.Retry(ctx, cfg, func(ctx context.Context) (feed.Handle, error) {
		return c.subscribe(ctx, req.Table)
	})
}

func (c *Client) subscribe(ctx context.Context, table string) (feed.Handle, error) {
	// The stream outlives ctx once connected; ctx only bounds the handshake.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	fail := func(err error) (feed.Handle, error) {
		stop()
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	req, err := c.newRequest(sctx, http.MethodGet, c.path("tables", table, "changes"), nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fail(apperrors.Transport(err))
	}
	if resp.StatusCode != http.StatusOK {
		err := decodeError(resp)
		_ = resp.Body.Close()
		return fail(err)
	}

	events := newEventReader(resp.Body)
	ev, err := events.Next()
	if err == nil && ev.Event != eventConnected {
		err = fmt.Errorf("expected %q event, got %q", eventConnected, ev.Event)
	}
	if err != nil || !stop() {
		_ = events.Close()
		return fail(apperrors.Transport(err))
	}

	var hello struct {
		FeedID string `json:"feed_id"`
	}
	_ = json.Unmarshal([]byte(ev.Data), &hello)

	h := &streamHandle{
		events:  events,
		cancel:  cancel,
		results: make(chan pollResult),
		done:    make(chan struct{}),
		log:     c.log.WithFields(logger.Fields(logger.FieldTable, table, logger.FieldFeedID, hello.FeedID)),
	}
	go h.read()
	h.log.Debug("change stream connected")
	return h, nil
}

type pollResult struct {
	payload feed.Payload
	err     error
}

// streamHandle is a feed.Handle over one SSE response. A single goroutine
// reads ahead by at most one event.
type streamHandle struct {
	events    *eventReader
	cancel    context.CancelFunc
	results   chan pollResult
	done      chan struct{}
	closeOnce sync.Once
	log       *logger.Logger
}

// read forwards events until the stream ends. A read failure is delivered
// once as TRANSPORT, after which the handle reports end of stream.
func (h *streamHandle) read() {
	defer close(h.results)

	for {
		ev, err := h.events.Next()
		var res pollResult
		switch {
		case errors.Is(err, io.EOF):
			h.log.Debug("change stream ended by server")
			return
		case err != nil:
			select {
			case <-h.done:
				return
			default:
			}
			h.log.Warn("change stream read failed", logger.Fields(logger.FieldError, err.Error()))
			res.err = apperrors.Transport(err)
		case ev.Event == eventEnd:
			return
		case ev.Event == eventChange, ev.Event == eventError:
			res.payload, res.err = feed.DecodePayload([]byte(ev.Data))
		default:
			continue
		}

		select {
		case h.results <- res:
		case <-h.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Poll returns the next payload, io.EOF once the stream has ended.
func (h *streamHandle) Poll(ctx context.Context) (feed.Payload, error) {
	select {
	case res, ok := <-h.results:
		if !ok {
			return feed.Payload{}, io.EOF
		}
		return res.payload, res.err
	case <-h.done:
		return feed.Payload{}, io.EOF
	case <-ctx.Done():
		return feed.Payload{}, ctx.Err()
	}
}

// Close ends the request and unblocks Poll.
func (h *streamHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		h.cancel()
		err = h.events.Close()
	})
	return err
}
