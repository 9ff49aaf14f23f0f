package feed

import "context"

// Change is one delivery on a Stream channel. Exactly one field is set.
type Change struct {
	Record *ChangeRecord
	Err    error
}

// Stream is the channel form of Each. Every delivery is sent on the
// returned channel, which is closed after the push consumer finishes.
// Canceling ctx closes the feed. A receiver that stops reading must cancel
// ctx or Close the feed to release the pump.
func (f *Feed) Stream(ctx context.Context) (<-chan Change, error) {
	out := make(chan Change)
	stop := context.AfterFunc(ctx, func() { _ = f.Close() })

	err := f.Each(func(rec *ChangeRecord, err error) {
		select {
		case out <- Change{Record: rec, Err: err}:
		case <-f.Done():
		}
	}, func() {
		stop()
		close(out)
	})
	if err != nil {
		stop()
		return nil, err
	}
	return out, nil
}
