// Package memtable is an in-memory table store that produces changefeeds.
//
// Every write on a table is queued, in order, for each subscription on
// that table name. Dropping a table sends subscribers a FEED_ABORTED error
// but keeps them attached, so they resume when the table is recreated.
// Closing the store ends every subscription.
package memtable
