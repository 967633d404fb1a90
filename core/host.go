package core

import "context"

// OnMessage is the listener contract of the host bus. The listener inspects
// the payload synchronously and either claims it, returning a reply channel
// and true, or declines it, returning nil and false so the host keeps the
// message available to other consumers.
//
// A claimed message must eventually produce exactly one reply on the
// channel; closing the channel without a value is the "port closed early"
// host defect. A nil reply slice stands for the undefined response.
type OnMessage func(ctx context.Context, from Sender, payload []byte) (<-chan []byte, bool)

// Host is the narrow surface the messenger needs from the underlying
// message bus. Implementations adapt a concrete transport (the in-memory
// bus, a real extension bridge) without leaking its API upward.
//
// Send failures are reported through errors whose message is drawn from the
// host's raw failure vocabulary; ClassifyFailure is the only consumer of
// those strings. A nil reply with a nil error is the undefined response,
// meaning nothing answered the message.
type Host interface {
	// SendToDocument delivers a payload to the document in the given tab and
	// frame and resolves with its reply.
	SendToDocument(ctx context.Context, tabID, frameID int, payload []byte) ([]byte, error)

	// SendToNamedPage delivers a payload to the named page and resolves with
	// its reply.
	SendToNamedPage(ctx context.Context, page string, payload []byte) ([]byte, error)

	// DocumentExists probes whether the given tab is still alive. Callers
	// treat probe failures as inconclusive, never as proof of death.
	DocumentExists(ctx context.Context, tabID int) (bool, error)

	// Listen installs the context's message listener. Installing twice
	// replaces the previous listener.
	Listen(fn OnMessage)

	// ContextName names the current context for logs and wire errors
	// ("background", "options", "contentScript", ...).
	ContextName() string

	// IsCentral reports whether the current context is the privileged
	// central context.
	IsCentral() bool

	// CanAddressDocuments reports whether this context may send to
	// tab/frame documents directly. Contexts that cannot must relay such
	// calls through the central context.
	CanAddressDocuments() bool
}
