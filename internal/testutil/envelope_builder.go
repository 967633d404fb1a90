package testutil

import (
	"encoding/json"

	"github.com/fungairino/webext-messenger/core"
)

// EnvelopeBuilder provides a fluent helper for constructing envelopes in
// tests. Example:
//
//	payload := NewEnvelopeBuilder("sum").Args(1, 2).BuildWire()
//
// Chain only the parts you need; sensible defaults are applied.
type EnvelopeBuilder struct {
	method       string
	args         []any
	target       *core.Target
	trace        []core.Sender
	notification bool
}

// NewEnvelopeBuilder creates a builder for a call to the given method.
func NewEnvelopeBuilder(method string) *EnvelopeBuilder {
	return &EnvelopeBuilder{method: method}
}

// Args sets the positional call arguments (chainable).
func (b *EnvelopeBuilder) Args(args ...any) *EnvelopeBuilder {
	b.args = args
	return b
}

// Target embeds a forwarding target, producing a relay envelope (chainable).
func (b *EnvelopeBuilder) Target(t core.Target) *EnvelopeBuilder {
	b.target = &t
	return b
}

// TraceFrom appends senders to the accumulated trace (chainable).
func (b *EnvelopeBuilder) TraceFrom(senders ...core.Sender) *EnvelopeBuilder {
	b.trace = append(b.trace, senders...)
	return b
}

// Notification marks the envelope fire-and-forget (chainable).
func (b *EnvelopeBuilder) Notification() *EnvelopeBuilder {
	b.notification = true
	return b
}

// Build constructs the core.Envelope value.
func (b *EnvelopeBuilder) Build() core.Envelope {
	return core.Envelope{
		Type:           b.method,
		Args:           b.args,
		Target:         b.target,
		Trace:          b.trace,
		IsNotification: b.notification,
	}
}

// BuildWire constructs the encoded wire payload, panicking on builder
// misuse so tests fail loudly.
func (b *EnvelopeBuilder) BuildWire() []byte {
	payload, err := core.EncodeEnvelope(b.Build())
	if err != nil {
		panic("testutil: envelope not encodable: " + err.Error())
	}
	return payload
}

// ForeignPayload returns a syntactically valid JSON payload that does not
// belong to the messenger, standing in for third-party bus traffic.
func ForeignPayload() []byte {
	raw, _ := json.Marshal(map[string]any{"kind": "third-party", "data": 42})
	return raw
}

// ForeignReply returns a response-position payload produced by a
// third-party listener: valid JSON, no protocol tag.
func ForeignReply() []byte {
	raw, _ := json.Marshal(map[string]any{"ok": true})
	return raw
}
