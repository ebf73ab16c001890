// Package meetingsync keeps a client's view of a remote multi-agent
// meeting in sync with the server.
//
// Two independent channels observe the same meeting: a StreamChannel
// holds a websocket open for fine-grained progress events (who is
// speaking, each message, round and meeting completion), and a
// StatusPoller samples the coarse meeting status on an interval. The
// channels share no state; callers compose them, typically using the
// poller as the source of truth for liveness and the stream for the
// live transcript. Because both channels can report the same
// real-world completion, callers must tolerate a completion callback
// firing once per channel.
package meetingsync
