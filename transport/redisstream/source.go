package redisstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
)

var _ feed.Source = (*Client)(nil)

// startID reads a stream from its beginning.
const startID = "0-0"

// Open subscribes to a table's stream. Only entries added after Open are
// delivered: the newest entry id is pinned now, so no poll can skip an
// entry written in between.
func (c *Client) Open(ctx context.Context, req feed.Request) (feed.Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if c.isClosed() {
		return nil, apperrors.ServiceUnavailable("redis")
	}

	key := c.Key(req.Table)
	last, err := c.rdb.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return nil, apperrors.Transport(fmt.Errorf("read stream head %s: %w", key, err))
	}
	h := &handle{client: c, key: key, lastID: startID}
	if len(last) > 0 {
		h.lastID = last[0].ID
	}
	c.log.Debug("stream subscription opened", logger.Fields(logger.FieldTable, req.Table, "last_id", h.lastID))
	return h, nil
}

// handle polls one stream. Only one Poll runs at a time, so lastID needs
// no lock.
type handle struct {
	client *Client
	key    string
	lastID string
	closed atomic.Bool
}

// Poll blocks in XREAD slices of Config.Block until an entry arrives, ctx
// is done or the handle is closed.
func (h *handle) Poll(ctx context.Context) (feed.Payload, error) {
	for {
		if h.closed.Load() {
			return feed.Payload{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return feed.Payload{}, err
		}

		streams, err := h.client.rdb.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{h.key, h.lastID},
			Count:   1,
			Block:   h.client.cfg.block(),
		}).Result()
		switch {
		case errors.Is(err, goredis.Nil):
			continue
		case err != nil:
			if h.closed.Load() || errors.Is(err, goredis.ErrClosed) {
				return feed.Payload{}, io.EOF
			}
			if ctx.Err() != nil {
				return feed.Payload{}, ctx.Err()
			}
			return feed.Payload{}, apperrors.Transport(err)
		}
		if len(streams) == 0 || len(streams[0].Messages) == 0 {
			continue
		}

		msg := streams[0].Messages[0]
		h.lastID = msg.ID
		raw, ok := msg.Values[PayloadField].(string)
		if !ok {
			return feed.Payload{}, apperrors.MalformedPayload(fmt.Errorf("entry %s has no %q field", msg.ID, PayloadField))
		}
		return feed.DecodePayload([]byte(raw))
	}
}

// Close stops polling. The shared connection pool stays open.
func (h *handle) Close() error {
	h.closed.Store(true)
	return nil
}
