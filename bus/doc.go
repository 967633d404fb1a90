// Package bus provides a volatile in-memory message bus implementing the
// messenger's Host interface. It models the host application's topology,
// named pages plus per-tab/per-frame documents, inside a single process and
// is best suited for tests, examples and ephemeral demos.
//
// The bus reproduces the failure modes of the real transport: messages to
// absent or listener-less endpoints fail with the receiving-end-missing
// vocabulary, claimed-but-unanswered deliveries fail as closed ports, and an
// injectable filter cuts individual links to simulate partitions and slow
// startups. Payloads are deep-copied at every hop, so endpoints never share
// memory.
package bus
