// Package audit implements the append-only security event log.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, user, email, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. Deciding which events
// to emit belongs to the engine.
package audit
