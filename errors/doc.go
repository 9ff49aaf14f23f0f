// Package errors provides the error taxonomy shared by cursors, transports and
// the feed server. Every error is an *AppError carrying a machine-readable code;
// Error() returns the human-readable message verbatim so callers can match on it.
package errors
