package redisstream

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
)

// Publish appends a payload to the table's stream, trimming it to about
// Config.MaxLen entries.
func (c *Client) Publish(ctx context.Context, table string, p feed.Payload) error {
	data, err := feed.EncodePayload(p)
	if err != nil {
		return err
	}
	args := &goredis.XAddArgs{
		Stream: c.Key(table),
		Values: map[string]any{PayloadField: string(data)},
	}
	if c.cfg.MaxLen > 0 {
		args.MaxLen = c.cfg.MaxLen
		args.Approx = true
	}
	if err := c.rdb.XAdd(ctx, args).Err(); err != nil {
		return apperrors.Transport(fmt.Errorf("xadd %s: %w", args.Stream, err))
	}
	return nil
}
