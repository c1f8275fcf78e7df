// Package audiocore holds the audio capture handoff shared by every capture
// backend and the frame loop.
//
// # Data flow
//
//	Backend.Stream -> Channel.Write -> Drainer.Frame -> Analyzer -> bars
//
// Exactly one backend goroutine writes into a Channel and exactly one consumer
// drains it. The channel keeps only the most recent window of samples: a
// write replaces whatever the consumer has not drained yet, so a slow
// consumer sees fresh audio instead of a growing backlog.
//
// # Concurrency
//
// Channel guards its buffer, unread count, format metadata and termination
// flag with a single mutex. There are no condition variables; the consumer
// polls once per frame and the backend polls ShouldTerminate once per read.
// A backend parked in a blocking read is woken with Backend.Interrupt.
//
// # Format metadata
//
// A fresh channel carries sentinel metadata: sample rate 0 and format code -1.
// Backends overwrite it once the source is open. Consumers that need the
// negotiated format wait for Negotiated (see capture.Handle.AwaitFormat).
package audiocore
