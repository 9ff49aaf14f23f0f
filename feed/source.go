package feed

import (
	"context"

	"github.com/kbukum/changefeed/validation"
)

// Request describes the subscription a Source should open.
type Request struct {
	Table string `json:"table" validate:"required,tablename"`
}

// Validate checks the request fields.
func (r Request) Validate() error {
	return validation.Validate(r)
}

// Source opens subscriptions against a change producer.
type Source interface {
	// Open issues the subscription. Failures are TRANSPORT errors unless the
	// source can report something more specific, such as NOT_FOUND.
	Open(ctx context.Context, req Request) (Handle, error)
}

// Handle is one open subscription.
//
// Poll returns the next payload, blocking until one is available or ctx is
// done. It returns io.EOF once the stream has ended; any other error is a
// transport failure. Callers never run two Polls at once.
//
// Close releases the subscription. It is idempotent, safe after errors and
// may run concurrently with Poll, which it unblocks.
type Handle interface {
	Poll(ctx context.Context) (Payload, error)
	Close() error
}
