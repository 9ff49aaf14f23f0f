// Package server exposes a table store over HTTP using Gin, with cleartext
// HTTP/2 support.
//
// Routes:
//
//	GET    /health
//	GET    /tables
//	POST   /tables/:table
//	DELETE /tables/:table
//	GET    /tables/:table/docs
//	POST   /tables/:table/docs
//	GET    /tables/:table/docs/:id
//	PATCH  /tables/:table/docs/:id
//	PUT    /tables/:table/docs/:id
//	DELETE /tables/:table/docs/:id
//	GET    /tables/:table/changes
//
// The changes route is a server-sent event stream. It starts with a
// "connected" event, then sends one "change" or "error" event per feed
// delivery with the payload envelope as data, keep-alive comments while
// idle and a final "end" event when the feed ends.
//
// Errors are rendered as apperrors.ErrorResponse bodies. Middleware
// (server/middleware) adds panic recovery, request ids, CORS, request
// logging and optional JWT bearer authentication.
package server
