// Package messenger provides a high-level façade over the core call
// machinery (targets, registry, retry & logging) enabling typed RPC between
// the isolated contexts of a host application. Most applications interact
// with this package by:
//  1. Creating a Messenger via New() with the context's Host adapter
//  2. Registering one or more handlers (Register, RegisterMethods)
//  3. Calling other contexts (Call, CallAs, Notify) by target and method name
//
// The façade delegates outbound calls to sender.Caller and inbound dispatch
// to receiver.Receiver while keeping setup and usage ergonomics concise. All
// defaults are safe for local development and testing; production
// deployments typically supply a real bus adapter and a structured logger.
package messenger

import (
	"context"
	"encoding/json"
	"sort"

	goerrors "github.com/goliatone/go-errors"

	"github.com/fungairino/webext-messenger/core"
	"github.com/fungairino/webext-messenger/logging"
	"github.com/fungairino/webext-messenger/receiver"
	"github.com/fungairino/webext-messenger/sender"
)

// Options configures the Messenger instance.
type Options struct {
	// Retry tunes the exponential backoff applied to transient call
	// failures. The zero value behaves like core.DefaultRetryPolicy.
	Retry core.RetryPolicy

	// MaxConcurrentDispatches bounds how many inbound handlers may run at
	// once. Set to 0 for unlimited.
	MaxConcurrentDispatches int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// WithRetryPolicy overrides the retry tuning for outbound calls.
func WithRetryPolicy(p core.RetryPolicy) func(o *Options) {
	return func(o *Options) { o.Retry = p }
}

// WithMaxConcurrentDispatches bounds concurrent inbound handler execution.
func WithMaxConcurrentDispatches(n int) func(o *Options) {
	return func(o *Options) { o.MaxConcurrentDispatches = n }
}

// WithLogger sets the logger shared by the caller and receiver.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Messenger is the high-level façade aggregating the registry, the calling
// side and the receiving side of one execution context.
type Messenger struct {
	opts     Options
	host     core.Host
	registry *core.Registry
	caller   *sender.Caller
	receiver *receiver.Receiver
}

// New creates a Messenger bound to the given host adapter. The bus listener
// is armed lazily by the first handler registration; contexts that only
// place calls never listen.
func New(host core.Host, optFns ...func(o *Options)) *Messenger {
	opts := Options{
		Retry:  core.DefaultRetryPolicy(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := core.NewRegistry()

	caller := sender.New(host, registry,
		sender.WithRetryPolicy(opts.Retry),
		sender.WithLogger(opts.Logger),
	)

	recv := receiver.New(host, registry, caller,
		receiver.WithLogger(opts.Logger),
		receiver.WithMaxConcurrentDispatches(opts.MaxConcurrentDispatches),
	)

	registry.OnFirstRegister(recv.Arm)

	return &Messenger{
		opts:     opts,
		host:     host,
		registry: registry,
		caller:   caller,
		receiver: recv,
	}
}

// Register adds a handler for the given method name. Each name may be
// registered at most once for the lifetime of the context; duplicates fail
// with a configuration error and leave the first handler in place. The
// first successful registration arms the bus listener.
func (m *Messenger) Register(method string, h core.Handler) error {
	return m.registry.Register(method, h)
}

// RegisterMethods registers a batch of handlers. Registration stops at the
// first failure, leaving earlier registrations in effect.
func (m *Messenger) RegisterMethods(methods map[string]core.Handler) error {
	for _, method := range sortedMethodNames(methods) {
		if err := m.registry.Register(method, methods[method]); err != nil {
			return err
		}
	}
	return nil
}

// Arm installs the bus listener before any handler is registered. Early
// arming closes the startup race: callers reaching this context while its
// registrations are still running receive a retryable error instead of
// silence.
func (m *Messenger) Arm() { m.receiver.Arm() }

// Call invokes method in the target context and returns its decoded result.
func (m *Messenger) Call(ctx context.Context, target core.Target, method string, args ...any) (any, error) {
	return m.caller.Call(ctx, target, method, args...)
}

// Notify invokes method in the target context without waiting for a result.
// Delivery is fire-and-forget: failures are logged, never returned.
func (m *Messenger) Notify(ctx context.Context, target core.Target, method string, args ...any) {
	m.caller.Notify(ctx, target, method, args...)
}

// Host returns the bus adapter this messenger is bound to.
func (m *Messenger) Host() core.Host { return m.host }

// Methods returns the locally registered method names in sorted order.
func (m *Messenger) Methods() []string { return m.registry.Names() }

// CallAs invokes method in the target context and decodes the result into T.
// It is the typed companion of Messenger.Call for callers that know the
// handler's return shape.
func CallAs[T any](ctx context.Context, m *Messenger, target core.Target, method string, args ...any) (T, error) {
	var out T

	value, err := m.Call(ctx, target, method, args...)
	if err != nil {
		return out, err
	}
	if value == nil {
		return out, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return out, goerrors.Wrap(err, goerrors.CategoryInternal, "call result cannot be re-encoded").
			WithTextCode(core.ErrCodeInternal)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, goerrors.Wrap(err, goerrors.CategoryBadInput, "call result does not match the requested type").
			WithTextCode(core.ErrCodeConfiguration)
	}
	return out, nil
}

// sortedMethodNames returns the map keys in deterministic order so batch
// registration failures are reproducible.
func sortedMethodNames(methods map[string]core.Handler) []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
