// Package signaling coordinates two-party WebRTC handshakes keyed by a short
// session code.
//
// A Coordinator owns a fixed set of shards. Every code hashes to exactly one
// shard and every operation on that code's session runs on the shard's single
// goroutine, so a session record is never touched concurrently. Transports
// plug in through the Conn interface; Send and Close must not block.
package signaling
