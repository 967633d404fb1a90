package sender

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/fungairino/webext-messenger/core"
	"github.com/fungairino/webext-messenger/logging"
)

// Options configures a Caller instance using the functional options pattern.
type Options struct {
	// Retry tunes the exponential backoff between attempts. The zero value
	// behaves like core.DefaultRetryPolicy.
	Retry core.RetryPolicy

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger
}

// WithRetryPolicy overrides the retry tuning.
func WithRetryPolicy(p core.RetryPolicy) func(o *Options) {
	return func(o *Options) { o.Retry = p }
}

// WithLogger sets the logger used for retry and notification diagnostics.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Caller issues calls from the current context to any other context in the
// application. It owns the outbound half of the messenger: routing,
// serialization, retry and the local bypass for central self-calls.
//
// A Caller is safe for concurrent use; every call runs its own retry state.
type Caller struct {
	host     core.Host
	registry *core.Registry
	retry    core.RetryPolicy
	logger   logging.Logger
}

// New creates a Caller bound to the current context's host and registry.
// The registry is consulted only for the local bypass, when the central
// context calls itself.
func New(host core.Host, registry *core.Registry, optFns ...func(o *Options)) *Caller {
	opts := Options{
		Retry:  core.DefaultRetryPolicy(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Caller{
		host:     host,
		registry: registry,
		retry:    opts.Retry.Normalized(),
		logger:   opts.Logger,
	}
}

// Call invokes method in the target context and returns its decoded result.
// Arguments must be JSON-serializable. The call is retried on transient
// failures until the policy's elapsed-time ceiling; terminal failures and
// remote application errors surface immediately.
func (c *Caller) Call(ctx context.Context, target core.Target, method string, args ...any) (any, error) {
	return c.call(ctx, target, core.Envelope{Type: method, Args: args})
}

// Notify invokes method in the target context without waiting for a result.
// Delivery happens in the background, exactly once, with no retry; failures
// are only logged. Use it for events where the caller cannot act on an error
// anyway.
func (c *Caller) Notify(ctx context.Context, target core.Target, method string, args ...any) {
	_, err := c.call(ctx, target, core.Envelope{Type: method, Args: args, IsNotification: true})
	if err != nil {
		c.logger.Warn("notification dropped before delivery",
			"method", method, "target", target.String(), "error", err)
	}
}

// Forward re-issues a relayed envelope from this context. The envelope's
// embedded target decides the new route; its trace rides along so the final
// handler sees the full chain. Used by the receiver when an envelope arrives
// addressed to somebody else.
func (c *Caller) Forward(ctx context.Context, env core.Envelope) (any, error) {
	if env.Target == nil {
		return nil, core.NewConfigurationError("forwarded envelope carries no target")
	}
	target := *env.Target
	env.Target = nil
	return c.call(ctx, target, env)
}

// call runs the full outbound pipeline for one envelope.
func (c *Caller) call(ctx context.Context, target core.Target, env core.Envelope) (any, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	// A central context calling itself never touches the bus.
	if target.IsCentral() && c.host.IsCentral() {
		return c.callLocal(ctx, env)
	}

	// Contexts that cannot address documents hand the envelope to the
	// central context with the target embedded, and the relay takes over.
	relayed := target.IsDocument() && !c.host.CanAddressDocuments()
	wireEnv := env
	if relayed {
		t := target
		wireEnv.Target = &t
	}
	payload, err := core.EncodeEnvelope(wireEnv)
	if err != nil {
		return nil, err
	}

	send := func(sendCtx context.Context) ([]byte, error) {
		switch {
		case relayed:
			return c.host.SendToNamedPage(sendCtx, core.CentralPageName, payload)
		case target.IsDocument():
			return c.host.SendToDocument(sendCtx, target.TabID(), target.FrameID(), payload)
		default:
			return c.host.SendToNamedPage(sendCtx, target.PageName(), payload)
		}
	}

	if env.IsNotification {
		// Detach from the caller's cancellation: fire-and-forget delivery
		// must not die with the function that triggered it.
		bgCtx := context.WithoutCancel(ctx)
		go func() {
			if _, err := send(bgCtx); err != nil {
				c.logger.Warn("notification delivery failed",
					"method", env.Type, "target", target.String(), "error", err)
			}
		}()
		return nil, nil
	}

	return c.callWithRetry(ctx, target, env.Type, send)
}

// callLocal dispatches a central self-call straight through the registry,
// skipping serialization and retry. Handler errors keep their identity.
func (c *Caller) callLocal(ctx context.Context, env core.Envelope) (any, error) {
	h, ok := c.registry.Lookup(env.Type)
	if !ok {
		err := core.NewHandlerMissing(env.Type, c.host.ContextName())
		if env.IsNotification {
			c.logger.Warn("notification had no handler",
				"method", env.Type, "error", err)
			return nil, nil
		}
		return nil, err
	}

	cc := core.NewCallContext(ctx, env.Type, env.Trace, c.logger)
	if env.IsNotification {
		go func() {
			if _, err := h(cc, env.Args...); err != nil {
				c.logger.Warn("notification handler failed",
					"method", env.Type, "error", err)
			}
		}()
		return nil, nil
	}
	return h(cc, env.Args...)
}

// callWithRetry drives send through the retry state machine until it yields
// a usable response, a terminal failure, or the elapsed-time ceiling.
func (c *Caller) callWithRetry(
	ctx context.Context,
	target core.Target,
	method string,
	send func(context.Context) ([]byte, error),
) (any, error) {
	expo := &backoff.ExponentialBackOff{
		InitialInterval:     c.retry.InitialInterval,
		RandomizationFactor: c.retry.RandomizationFactor,
		Multiplier:          c.retry.Multiplier,
		MaxInterval:         c.retry.MaxElapsedTime,
	}

	attempt := 0
	operation := func() (any, error) {
		attempt++

		raw, err := send(ctx)
		if err != nil {
			return nil, c.retryDecision(ctx, target, err)
		}

		// The undefined response: nothing answered. A page that is not on
		// the bus at all and a page whose messenger is not loaded yet are
		// indistinguishable here, which is why both cases stay retryable.
		if raw == nil {
			if target.IsPage() {
				err = core.NewTargetNotFound(target)
			} else {
				err = core.NewHandlerUnavailable(target)
			}
			return nil, c.retryDecision(ctx, target, err)
		}

		resp, ok := core.DecodeResponse(raw)
		if !ok {
			return nil, backoff.Permanent(core.NewConflict(target, method))
		}
		if resp.Err != nil {
			return nil, c.retryDecision(ctx, target, resp.Err)
		}
		return resp.Value, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxElapsedTime(c.retry.MaxElapsedTime),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.logger.Debug("retrying call",
				"method", method, "target", target.String(),
				"attempt", attempt, "delay", delay, "error", err)
		}),
	)
}

// retryDecision classifies a failed attempt and either wraps it as permanent
// or lets it through for another try. Document targets are liveness-probed
// first: retrying against a closed tab would just burn the ceiling.
func (c *Caller) retryDecision(ctx context.Context, target core.Target, err error) error {
	switch core.ClassifyFailure(err) {
	case core.TagClosedEarly:
		return backoff.Permanent(core.NewTargetClosedEarly(target))
	case core.TagConflict:
		return backoff.Permanent(err)
	case core.TagFatal:
		// The central context is assumed to exist for the whole application
		// lifetime, so calls addressed to it keep retrying through failures
		// that would be terminal anywhere else.
		if !target.IsCentral() {
			return backoff.Permanent(err)
		}
	}

	if target.IsDocument() {
		exists, perr := c.host.DocumentExists(ctx, target.TabID())
		if perr == nil && !exists {
			return backoff.Permanent(core.NewTargetGone(target))
		}
	}
	return err
}
