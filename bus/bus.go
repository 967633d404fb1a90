package bus

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/fungairino/webext-messenger/core"
	"github.com/fungairino/webext-messenger/logging"
)

// FilterFunc specifies a function used to selectively cut communication
// links. It receives the endpoint identities of the sending and receiving
// side ("page:background", "tab:3:0") and returns false to drop the link.
// A dropped link behaves exactly like an absent receiver.
type FilterFunc func(from, to string) bool

// Options configures a Bus instance using the functional options pattern.
type Options struct {
	// Logger provides structured logging for delivery diagnostics.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger
}

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Bus is an in-memory message bus connecting named pages and tab/frame
// documents. It is safe for concurrent access; endpoints attach and detach
// at any time, mirroring pages opening and tabs closing in the host
// application.
type Bus struct {
	mu      sync.RWMutex
	pages   map[string]*Endpoint
	docs    map[docKey]*Endpoint
	filter  FilterFunc
	nextTab int
	logger  logging.Logger
}

// docKey identifies a document endpoint by tab and frame.
type docKey struct {
	tab   int
	frame int
}

// New constructs an empty in-memory bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{
		pages:  make(map[string]*Endpoint),
		docs:   make(map[docKey]*Endpoint),
		logger: opts.Logger,
	}
}

// Filter sets the link filter. If filterF is nil, no filtering occurs and
// every attached endpoint is reachable.
func (b *Bus) Filter(filterF FilterFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = filterF
}

// Attach creates a named-page endpoint and connects it to the bus. Attaching
// an already-taken name replaces the previous endpoint, like a page being
// reloaded. Page endpoints can address documents by default; the endpoint
// for core.CentralPageName additionally reports itself central.
func (b *Bus) Attach(name string, optFns ...func(o *EndpointOptions)) *Endpoint {
	opts := EndpointOptions{
		Central:             name == core.CentralPageName,
		CanAddressDocuments: true,
		ContextName:         name,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ep := &Endpoint{
		bus:         b,
		id:          "page:" + name,
		page:        name,
		identity:    core.Sender{Page: name},
		contextName: opts.ContextName,
		central:     opts.Central,
		canDocs:     opts.CanAddressDocuments,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[name] = ep
	b.logger.Debug("page attached", "page", name)
	return ep
}

// AttachDocument creates a document endpoint for the given tab and frame.
// Attaching over a live document replaces it, like a navigation. Document
// endpoints cannot address other documents and must relay through the
// central context.
func (b *Bus) AttachDocument(tabID, frameID int) *Endpoint {
	ep := &Endpoint{
		bus:         b,
		id:          core.Document(tabID, frameID).String(),
		tabID:       tabID,
		frameID:     frameID,
		identity:    core.Sender{TabID: tabID, FrameID: frameID},
		contextName: "contentScript",
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[docKey{tab: tabID, frame: frameID}] = ep
	b.logger.Debug("document attached", "tab", tabID, "frame", frameID)
	return ep
}

// NextTab allocates a fresh tab identifier, starting at 1.
func (b *Bus) NextTab() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTab++
	return b.nextTab
}

// CloseDocument detaches every frame of the given tab, like the tab being
// closed. Pending calls against it start failing and liveness probes report
// it gone.
func (b *Bus) CloseDocument(tabID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.docs {
		if key.tab == tabID {
			delete(b.docs, key)
		}
	}
	b.logger.Debug("document closed", "tab", tabID)
}

// DetachPage removes a named-page endpoint from the bus.
func (b *Bus) DetachPage(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pages, name)
	b.logger.Debug("page detached", "page", name)
}

// documentExists reports whether any frame of the tab is attached.
func (b *Bus) documentExists(tabID int) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for key := range b.docs {
		if key.tab == tabID {
			return true
		}
	}
	return false
}

// lookupPage returns the endpoint attached under name.
func (b *Bus) lookupPage(name string) (*Endpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.pages[name]
	return ep, ok
}

// lookupDocument returns the endpoint attached at tab/frame.
func (b *Bus) lookupDocument(tabID, frameID int) (*Endpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.docs[docKey{tab: tabID, frame: frameID}]
	return ep, ok
}

// linkOpen reports whether the filter allows traffic between two endpoints.
func (b *Bus) linkOpen(fromID, toID string) bool {
	b.mu.RLock()
	filter := b.filter
	b.mu.RUnlock()
	return filter == nil || filter(fromID, toID)
}

// deliver hands the payload to the destination's listener and awaits its
// reply. Every failure mode is reported through the host vocabulary: cut or
// absent links as a missing receiving end, claimed-but-abandoned replies as
// a closed port. An unclaimed delivery resolves to the undefined response.
func (b *Bus) deliver(ctx context.Context, from, to *Endpoint, payload []byte) ([]byte, error) {
	if to == nil || !b.linkOpen(from.id, to.id) {
		return nil, errors.New(core.HostErrReceivingEndMissing)
	}

	listener := to.currentListener()
	if listener == nil {
		return nil, errors.New(core.HostErrReceivingEndMissing)
	}

	b.logger.Debug("delivering", "from", from.id, "to", to.id, "bytes", len(payload))

	reply, claimed := listener(ctx, from.identity, bytes.Clone(payload))
	if !claimed {
		return nil, nil
	}

	select {
	case raw, open := <-reply:
		if !open {
			return nil, errors.New(core.HostErrPortClosedEarly)
		}
		return bytes.Clone(raw), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
