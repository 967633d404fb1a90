package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/fungairino/webext-messenger/core"
)

// EndpointOptions configures an attached page endpoint.
type EndpointOptions struct {
	// Central marks the endpoint as the privileged central context.
	// Defaults to true for the endpoint named core.CentralPageName.
	Central bool

	// CanAddressDocuments grants direct delivery to tab/frame documents.
	// Defaults to true for pages; documents never get it.
	CanAddressDocuments bool

	// ContextName overrides the name reported in logs and wire errors.
	// Defaults to the page name.
	ContextName string
}

// WithContextName overrides the endpoint's reported context name.
func WithContextName(name string) func(o *EndpointOptions) {
	return func(o *EndpointOptions) { o.ContextName = name }
}

// WithoutDocumentAccess removes the endpoint's ability to address documents
// directly, forcing it onto the central relay like a sandboxed page.
func WithoutDocumentAccess() func(o *EndpointOptions) {
	return func(o *EndpointOptions) { o.CanAddressDocuments = false }
}

// Endpoint is one attached execution context on the in-memory bus. It
// implements core.Host, so a Messenger can run against it unchanged.
type Endpoint struct {
	bus         *Bus
	id          string
	page        string
	tabID       int
	frameID     int
	identity    core.Sender
	contextName string
	central     bool
	canDocs     bool

	mu       sync.RWMutex
	listener core.OnMessage
}

// ID returns the endpoint's bus identity, as seen by filter functions.
func (e *Endpoint) ID() string { return e.id }

// Identity returns the sender identity this endpoint advertises.
func (e *Endpoint) Identity() core.Sender { return e.identity }

// Detach disconnects the endpoint from the bus: pages disappear from the
// name table, documents count as closed tabs.
func (e *Endpoint) Detach() {
	if e.page != "" {
		e.bus.DetachPage(e.page)
		return
	}
	e.bus.CloseDocument(e.tabID)
}

// SendToDocument delivers a payload to the document in the given tab and
// frame. Endpoints without document access cannot use it; the caller is
// expected to relay through the central context instead.
func (e *Endpoint) SendToDocument(ctx context.Context, tabID, frameID int, payload []byte) ([]byte, error) {
	if !e.canDocs {
		return nil, errors.New("tabs API is not available in " + e.contextName)
	}
	to, _ := e.bus.lookupDocument(tabID, frameID)
	return e.bus.deliver(ctx, e, to, payload)
}

// SendToNamedPage delivers a payload to the named page. A page never
// receives its own sends; the bus treats that as an absent receiver.
func (e *Endpoint) SendToNamedPage(ctx context.Context, page string, payload []byte) ([]byte, error) {
	if e.page != "" && e.page == page {
		return nil, errors.New(core.HostErrReceivingEndMissing)
	}
	to, _ := e.bus.lookupPage(page)
	return e.bus.deliver(ctx, e, to, payload)
}

// DocumentExists probes whether any frame of the tab is still attached.
func (e *Endpoint) DocumentExists(ctx context.Context, tabID int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.bus.documentExists(tabID), nil
}

// Listen installs the endpoint's message listener, replacing any previous
// one.
func (e *Endpoint) Listen(fn core.OnMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

// currentListener returns the installed listener, nil when unarmed.
func (e *Endpoint) currentListener() core.OnMessage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.listener
}

// ContextName names this context for logs and wire errors.
func (e *Endpoint) ContextName() string { return e.contextName }

// IsCentral reports whether this endpoint is the privileged central context.
func (e *Endpoint) IsCentral() bool { return e.central }

// CanAddressDocuments reports whether this endpoint may send to documents
// directly.
func (e *Endpoint) CanAddressDocuments() bool { return e.canDocs }
