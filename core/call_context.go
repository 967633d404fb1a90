package core

import (
	"context"

	"github.com/fungairino/webext-messenger/logging"
)

// CallContext carries per-dispatch state and helpers into a Handler. It
// aggregates:
//
//   - The ambient cancellation Context
//   - A unique CallID for correlating log lines across contexts
//   - The invoked Method name
//   - The accumulated sender Trace (origin first, immediate sender last)
//   - Logging helpers via the embedded logger adapter
//
// A fresh CallContext is built for every dispatch; handlers must not retain
// it beyond the call.
type CallContext struct {
	*loggerAdapter

	Context context.Context
	CallID  string
	Method  string
	Trace   []Sender
}

// NewCallContext constructs a CallContext for a single dispatch. A nil ctx
// defaults to context.Background, a nil logger to the no-op logger.
func NewCallContext(ctx context.Context, method string, trace []Sender, logger logging.Logger) *CallContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CallContext{
		loggerAdapter: newLoggerAdapter(logger),
		Context:       ctx,
		CallID:        NewID(),
		Method:        method,
		Trace:         trace,
	}
}

// Done returns a channel closed when the underlying context is cancelled.
// Done mirrors context.Context's Done.
func (cc *CallContext) Done() <-chan struct{} { return cc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (cc *CallContext) Err() error { return cc.Context.Err() }

// Sender returns the immediate sender of the call, the last trace entry.
// The boolean is false for local bypass calls, which never cross the bus.
func (cc *CallContext) Sender() (Sender, bool) {
	if len(cc.Trace) == 0 {
		return Sender{}, false
	}
	return cc.Trace[len(cc.Trace)-1], true
}

// Origin returns the first hop of the call, the context that initiated it.
// For unforwarded calls Origin and Sender coincide.
func (cc *CallContext) Origin() (Sender, bool) {
	if len(cc.Trace) == 0 {
		return Sender{}, false
	}
	return cc.Trace[0], true
}

// Forwarded reports whether the call passed through at least one relay hop.
func (cc *CallContext) Forwarded() bool { return len(cc.Trace) > 1 }
