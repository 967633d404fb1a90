// Package core provides the foundational domain types, interfaces and call
// contexts used by the messenger. It defines the core abstractions for:
//
//   - Targets (document and named-page addresses inside the host application)
//   - Envelopes (tagged, typed wire messages with routing and trace options)
//   - Handlers and the per-context Registry with single-registration semantics
//   - CallContext (scoped execution state handed to dispatched handlers)
//   - The Host interface over the underlying string-addressed message bus
//   - The error taxonomy and the classification of raw transport failures
//
// The package intentionally keeps implementation concerns (retry loops,
// dispatch, concrete bus adapters) out of scope, exposing small interfaces to
// enable custom backends and extensions. All exported identifiers include
// concise documentation to aid discoverability and external consumption.
package core
