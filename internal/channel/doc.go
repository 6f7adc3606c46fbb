// Package channel connects the client core to the authoritative backend.
//
// A Session is the process-scoped connection: commands go out through Send
// (fire-and-forget), backend change notifications come back on the Events
// stream, and command failures arrive as notices on the Errors stream.
//
// Streams are lossless. Every subscriber owns an unbounded FIFO drained by a
// pump goroutine, so Publish never blocks and never drops, and each
// subscriber observes items in publish order.
package channel
