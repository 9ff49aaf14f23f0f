package relay

import (
	"context"
	"errors"

	"github.com/kbukum/changefeed/feed"
)

// Fanout publishes each payload to every publisher in order. A failing
// publisher does not stop the others; their errors are joined.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, table string, p feed.Payload) error {
	var errs []error
	for _, pub := range f {
		if err := pub.Publish(ctx, table, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
