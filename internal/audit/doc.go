// Package audit relays session lifecycle events (login, renewal, forced logout, redirect)
// to a caller-supplied sink without blocking the engine.
//
// # Components
//
//   - [Sink] receives events: channel, JSON lines, slog, or no-op.
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the record. The dispatcher stamps a UUID and a timestamp.
//
// # What this package must NOT do
//
//   - Decide which events to emit. That belongs to the engine.
//   - Import goSession or any sibling internal package.
package audit
