package core

import (
	"sort"
	"sync"
)

// Handler is a registered method implementation. Args arrive as decoded JSON
// values in call order; the returned value must be JSON-serializable when the
// call crosses a context boundary. Errors are serialized and re-raised on the
// calling side.
type Handler func(cc *CallContext, args ...any) (any, error)

// Registry holds the methods a context serves, keyed by method name. Each
// name can be registered at most once per context lifetime; the first
// registration wins and later ones fail. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	arm      func()
	armed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// OnFirstRegister installs the hook invoked exactly once, when the first
// handler lands in the registry. The receiver uses it to arm its bus
// listener lazily, so a context that never registers never listens.
func (r *Registry) OnFirstRegister(arm func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arm = arm
}

// Register adds a handler under the given method name. Registering a name
// twice is a configuration error; the existing handler stays in effect.
func (r *Registry) Register(method string, h Handler) error {
	if method == "" {
		return NewConfigurationError("method name must not be empty")
	}
	if h == nil {
		return NewConfigurationError("handler must not be nil")
	}

	r.mu.Lock()
	if _, exists := r.handlers[method]; exists {
		r.mu.Unlock()
		return NewDuplicateHandler(method)
	}
	r.handlers[method] = h
	arm := r.arm
	first := !r.armed
	r.armed = true
	r.mu.Unlock()

	if first && arm != nil {
		arm()
	}
	return nil
}

// Lookup returns the handler registered under method.
func (r *Registry) Lookup(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// Empty reports whether no handler is registered yet.
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers) == 0
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
