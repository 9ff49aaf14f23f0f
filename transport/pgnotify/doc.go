// Package pgnotify carries changefeed payloads over PostgreSQL
// LISTEN/NOTIFY using lib/pq.
//
// Each table maps to the channel <channel_prefix><table>, lowercased and
// restricted to [a-z0-9_]. The Publisher runs SELECT pg_notify(channel,
// payload); a Source opens one pq.Listener per subscription. Notifications
// are not durable: a listener that reconnects reports one TRANSPORT error
// and keeps delivering.
package pgnotify
