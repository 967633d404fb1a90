// Package receiver implements the listening side of the messenger.
//
// The Receiver installs the context's single bus listener and decides, for
// every payload, between three outcomes: dispatch it to a registered
// handler, forward it toward its embedded target (the central relay path),
// or decline it so foreign bus traffic stays untouched for other consumers.
//
// Arming is lazy and idempotent: the first handler registration arms the
// listener through the registry hook, and explicit early arming is available
// to close the startup race between a caller's first attempt and this
// context's registrations.
//
// # Responsibilities (abridged)
//   - Envelope recognition and the silent-decline contract
//   - Handler dispatch with panic containment and bounded concurrency
//   - Relay of targeted envelopes with trace accumulation
//   - Response serialization back onto the bus
//
// See receiver.go for the operational implementation details.
package receiver
