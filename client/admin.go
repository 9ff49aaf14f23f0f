package client

import (
	"context"
	"net/http"

	"github.com/kbukum/changefeed/feed"
)

// Tables lists the server's tables.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, c.path("tables"), nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// CreateTable creates a table.
func (c *Client) CreateTable(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, c.path("tables", name), nil, nil)
}

// DropTable drops a table. Its subscribers receive an abort.
func (c *Client) DropTable(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, c.path("tables", name), nil, nil)
}

// Insert stores a new document and returns it as stored.
func (c *Client) Insert(ctx context.Context, table string, doc feed.Document) (feed.Document, error) {
	return c.document(ctx, http.MethodPost, c.path("tables", table, "docs"), doc)
}

// Update merges patch into the document with the given id.
func (c *Client) Update(ctx context.Context, table string, id any, patch feed.Document) (feed.Document, error) {
	return c.document(ctx, http.MethodPatch, c.path("tables", table, "docs", feed.KeyOf(id)), patch)
}

// Replace swaps the document with the given id for doc.
func (c *Client) Replace(ctx context.Context, table string, id any, doc feed.Document) (feed.Document, error) {
	return c.document(ctx, http.MethodPut, c.path("tables", table, "docs", feed.KeyOf(id)), doc)
}

// Delete removes the document with the given id and returns it.
func (c *Client) Delete(ctx context.Context, table string, id any) (feed.Document, error) {
	return c.document(ctx, http.MethodDelete, c.path("tables", table, "docs", feed.KeyOf(id)), nil)
}

// Get returns the document with the given id.
func (c *Client) Get(ctx context.Context, table string, id any) (feed.Document, error) {
	return c.document(ctx, http.MethodGet, c.path("tables", table, "docs", feed.KeyOf(id)), nil)
}

// Scan returns every document of a table as a finite cursor.
func (c *Client) Scan(ctx context.Context, table string) (*feed.Rows, error) {
	var docs []feed.Document
	if err := c.do(ctx, http.MethodGet, c.path("tables", table, "docs"), nil, &docs); err != nil {
		return nil, err
	}
	return feed.NewRows(docs), nil
}

func (c *Client) document(ctx context.Context, method, target string, body feed.Document) (feed.Document, error) {
	var doc feed.Document
	var in any
	if body != nil {
		in = body
	}
	if err := c.do(ctx, method, target, in, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
