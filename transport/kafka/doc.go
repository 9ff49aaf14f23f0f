// Package kafka carries changefeed payloads over Kafka topics using
// segmentio/kafka-go.
//
// Each table maps to the topic <topic_prefix><table>. A Publisher writes
// every payload envelope keyed by the changed document's id. A Source
// opens a kafka-go reader per subscription: without a group id it reads
// partition 0 from the offset that was last at Open time; with one it
// joins the group and commits each message before delivering it.
package kafka
