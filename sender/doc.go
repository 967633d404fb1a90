// Package sender implements the calling side of the messenger.
//
// The Caller turns a typed call into a wire envelope, routes it to the
// addressed context (directly, or through the central relay when the current
// context cannot address documents), and drives the retry state machine over
// the unreliable bus. Failure classification is delegated to the core
// package; the Caller only decides, per attempt, whether the classified
// failure is worth another try.
//
// # Responsibilities (abridged)
//   - Target validation and the central-context local bypass
//   - Envelope encoding and per-target routing
//   - Exponential retry with a hard ceiling on total elapsed time
//   - Liveness probing of document targets between attempts
//   - Fire-and-forget notification delivery
//
// See caller.go for the operational implementation details.
package sender
