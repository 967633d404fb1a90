package receiver

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/fungairino/webext-messenger/core"
	"github.com/fungairino/webext-messenger/logging"
	"github.com/fungairino/webext-messenger/sender"
)

// Options configures a Receiver instance using the functional options pattern.
type Options struct {
	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger

	// MaxConcurrentDispatches bounds how many handlers may run at once.
	// 0 means unbounded.
	MaxConcurrentDispatches int
}

// WithLogger sets the logger used for dispatch and relay diagnostics.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithMaxConcurrentDispatches bounds concurrent handler execution.
func WithMaxConcurrentDispatches(n int) func(o *Options) {
	return func(o *Options) { o.MaxConcurrentDispatches = n }
}

// Receiver owns the inbound half of the messenger for one context. It holds
// the registry of local handlers and, through the caller, the ability to
// relay envelopes addressed to other contexts.
type Receiver struct {
	host     core.Host
	registry *core.Registry
	caller   *sender.Caller
	logger   logging.Logger
	limiter  *core.DispatchLimiter

	armOnce sync.Once
	armed   atomic.Bool
}

// New creates a Receiver bound to the current context's host, registry and
// caller. The caller is required even in contexts that never forward: relay
// capability is decided per message, not at construction.
func New(host core.Host, registry *core.Registry, caller *sender.Caller, optFns ...func(o *Options)) *Receiver {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Receiver{
		host:     host,
		registry: registry,
		caller:   caller,
		logger:   opts.Logger,
		limiter:  core.NewDispatchLimiter(opts.MaxConcurrentDispatches),
	}
}

// Arm installs the bus listener. Arming is idempotent; the first handler
// registration arms implicitly, and calling Arm earlier closes the startup
// race: an armed-but-empty context answers callers with a retryable error
// instead of silence.
func (r *Receiver) Arm() {
	r.armOnce.Do(func() {
		r.host.Listen(r.onMessage)
		r.armed.Store(true)
		r.logger.Debug("listener armed", "context", r.host.ContextName())
	})
}

// Armed reports whether the bus listener is installed.
func (r *Receiver) Armed() bool { return r.armed.Load() }

// onMessage is the single bus listener of this context. It decides
// synchronously whether the payload is claimed and completes claimed work in
// a dispatch goroutine, answering on the returned channel.
func (r *Receiver) onMessage(ctx context.Context, from core.Sender, payload []byte) (<-chan []byte, bool) {
	env, ok := core.DecodeEnvelope(payload)
	if !ok {
		// Foreign bus traffic. Decline silently so whoever it belongs to
		// still sees it.
		return nil, false
	}

	if env.Target != nil {
		return r.forward(ctx, from, env)
	}
	return r.dispatch(ctx, from, env)
}

// forward relays an envelope addressed to another context. The observed
// sender joins the trace, so the final handler sees every hop.
func (r *Receiver) forward(ctx context.Context, from core.Sender, env core.Envelope) (<-chan []byte, bool) {
	reply := make(chan []byte, 1)

	if !r.host.CanAddressDocuments() {
		err := core.NewConfigurationError(
			fmt.Sprintf("context %s cannot forward calls to documents", r.host.ContextName()))
		r.logger.Error("refusing to forward",
			"method", env.Type, "target", env.Target.String(), "error", err)
		reply <- core.EncodeErrorResponse(err)
		close(reply)
		return reply, true
	}

	env.Trace = core.AppendTrace(env.Trace, from)

	go func() {
		defer close(reply)
		start := time.Now()
		value, err := r.caller.Forward(ctx, env)
		r.logger.Debug("relayed call",
			"method", env.Type, "sender", from.String(), "target", env.Target.String(),
			"duration", time.Since(start), "error", err)
		if err != nil {
			reply <- core.EncodeErrorResponse(err)
			return
		}
		reply <- core.EncodeValueResponse(value)
	}()
	return reply, true
}

// dispatch runs a local handler for the envelope, or declines when this
// context does not serve the method.
func (r *Receiver) dispatch(ctx context.Context, from core.Sender, env core.Envelope) (<-chan []byte, bool) {
	if r.registry.Empty() {
		// Armed before any registration. Answering with a retryable error
		// beats silence: the caller keeps trying while startup completes.
		reply := make(chan []byte, 1)
		err := core.NewHandlerNotReady(r.host.ContextName())
		r.logger.Debug("no handlers registered yet", "method", env.Type)
		reply <- core.EncodeErrorResponse(err)
		close(reply)
		return reply, true
	}

	h, ok := r.registry.Lookup(env.Type)
	if !ok {
		r.logger.Debug("ignoring unknown method",
			"method", env.Type, "context", r.host.ContextName())
		return nil, false
	}

	reply := make(chan []byte, 1)
	trace := core.AppendTrace(env.Trace, from)

	go func() {
		defer close(reply)
		r.limiter.Acquire()
		defer r.limiter.Release()

		cc := core.NewCallContext(ctx, env.Type, trace, r.logger)
		start := time.Now()
		value, err := r.invoke(cc, h, env.Args)
		r.logger.Debug("dispatched call",
			"method", env.Type, "sender", from.String(), "call_id", cc.CallID,
			"duration", time.Since(start), "error", err)
		if err != nil {
			reply <- core.EncodeErrorResponse(err)
			return
		}
		reply <- core.EncodeValueResponse(value)
	}()
	return reply, true
}

// invoke runs the handler with panic containment. A panicking handler must
// not take down the whole context; it answers an internal error instead.
func (r *Receiver) invoke(cc *core.CallContext, h core.Handler, args []any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic",
				"method", cc.Method, "panic", rec, "stack", string(debug.Stack()))
			err = goerrors.New(fmt.Sprintf("handler for %s panicked: %v", cc.Method, rec), goerrors.CategoryInternal).
				WithTextCode(core.ErrCodeInternal)
			value = nil
		}
	}()
	return h(cc, args...)
}
