// Package redisstream carries changefeed payloads over Redis streams using
// go-redis.
//
// Each table maps to the stream <key_prefix><table>; every entry holds one
// payload envelope in its "payload" field. Client.Publish appends with
// XADD (trimmed with MAXLEN ~ when max_len is set) and Client.Open returns
// a subscription that polls with XREAD BLOCK COUNT 1 from the entry that
// was newest at Open time.
package redisstream
