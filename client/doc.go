// Package client is an HTTP client for a feed server.
//
// A Client is a feed.Source: Open subscribes to a table's server-sent
// change stream and returns once the server has confirmed the
// subscription, so it plugs directly into feed.Open:
//
//	c, err := client.New(client.Config{BaseURL: "http://localhost:8080"}, log)
//	f, err := feed.Open(ctx, c, feed.Request{Table: "test"})
//
// The admin methods (CreateTable, Insert, Update and so on) mirror the
// memtable store.
package client
