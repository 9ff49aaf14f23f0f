package feed

import (
	"context"
	"sync"

	apperrors "github.com/kbukum/changefeed/errors"
)

// Cursor is what feeds and finite result cursors have in common.
type Cursor interface {
	Close() error
}

// Finite is implemented by cursors over a bounded result set.
type Finite interface {
	Cursor
	HasNext() bool
	ToArray(ctx context.Context) ([]Document, error)
}

var _ Finite = (*Rows)(nil)

// HasNext reports whether a finite cursor has more rows. For a feed it
// fails immediately without touching the source.
func HasNext(c Cursor) (bool, error) {
	fc, ok := c.(Finite)
	if !ok {
		return false, apperrors.Unavailable("hasNext")
	}
	return fc.HasNext(), nil
}

// ToArray drains a finite cursor into a slice. For a feed it fails
// immediately without touching the source.
func ToArray(ctx context.Context, c Cursor) ([]Document, error) {
	fc, ok := c.(Finite)
	if !ok {
		return nil, apperrors.Unavailable("toArray")
	}
	return fc.ToArray(ctx)
}

// Rows is a finite cursor over a materialized result set, such as a table scan.
//
// Closing Rows does not discard rows already fetched: Next and ToArray keep
// returning them, then NO_MORE_ELEMENTS. Only a cursor closed with nothing
// left reports CURSOR_CLOSED.
type Rows struct {
	mu     sync.Mutex
	docs   []Document
	pos    int
	closed bool
	// empty is set when Close finds no buffered rows.
	empty bool
}

// NewRows returns a cursor over docs.
func NewRows(docs []Document) *Rows {
	return &Rows{docs: docs}
}

// Next returns the next row, NO_MORE_ELEMENTS when exhausted, or
// CURSOR_CLOSED when the cursor was closed after being exhausted.
func (r *Rows) Next(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.empty {
		return nil, apperrors.CursorClosed()
	}
	if r.pos >= len(r.docs) {
		return nil, apperrors.NoMoreElements()
	}
	doc := r.docs[r.pos]
	r.pos++
	return doc, nil
}

// HasNext reports whether Next would return a row.
func (r *Rows) HasNext() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos < len(r.docs)
}

// ToArray returns the remaining rows and exhausts the cursor.
func (r *Rows) ToArray(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.empty {
		return nil, apperrors.CursorClosed()
	}
	rest := make([]Document, len(r.docs)-r.pos)
	copy(rest, r.docs[r.pos:])
	r.pos = len(r.docs)
	return rest, nil
}

// Close ends the cursor. Rows not yet read stay readable. It is idempotent.
func (r *Rows) Close() error {
	r.mu.Lock()
	if !r.closed && r.pos >= len(r.docs) {
		r.empty = true
		r.docs = nil
		r.pos = 0
	}
	r.closed = true
	r.mu.Unlock()
	return nil
}
