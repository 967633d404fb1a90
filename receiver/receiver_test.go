package receiver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fungairino/webext-messenger/core"
	"github.com/fungairino/webext-messenger/internal/testutil"
	"github.com/fungairino/webext-messenger/sender"
)

// fakeHost captures the armed listener so tests can inject bus payloads, and
// scripts outbound replies for the relay path.
type fakeHost struct {
	mu          sync.Mutex
	name        string
	central     bool
	canDocs     bool
	listener    core.OnMessage
	listenCalls int
	replies     []scriptedReply
	sends       []sentMessage
}

type scriptedReply struct {
	raw []byte
	err error
}

type sentMessage struct {
	page    string
	tabID   int
	frameID int
	payload []byte
}

var _ core.Host = (*fakeHost)(nil)

func newFakeHost(name string) *fakeHost {
	return &fakeHost{
		name:    name,
		central: name == core.CentralPageName,
		canDocs: name == core.CentralPageName,
	}
}

func (h *fakeHost) reply(raw []byte) { h.replies = append(h.replies, scriptedReply{raw: raw}) }

func (h *fakeHost) replyErr(err error) { h.replies = append(h.replies, scriptedReply{err: err}) }

func (h *fakeHost) record(msg sentMessage) scriptedReply {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sends = append(h.sends, msg)
	if len(h.replies) == 0 {
		return scriptedReply{}
	}
	next := h.replies[0]
	if len(h.replies) > 1 {
		h.replies = h.replies[1:]
	}
	return next
}

func (h *fakeHost) SendToDocument(_ context.Context, tabID, frameID int, payload []byte) ([]byte, error) {
	r := h.record(sentMessage{tabID: tabID, frameID: frameID, payload: payload})
	return r.raw, r.err
}

func (h *fakeHost) SendToNamedPage(_ context.Context, page string, payload []byte) ([]byte, error) {
	r := h.record(sentMessage{page: page, payload: payload})
	return r.raw, r.err
}

func (h *fakeHost) DocumentExists(context.Context, int) (bool, error) { return true, nil }

func (h *fakeHost) Listen(fn core.OnMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = fn
	h.listenCalls++
}

func (h *fakeHost) ContextName() string       { return h.name }
func (h *fakeHost) IsCentral() bool           { return h.central }
func (h *fakeHost) CanAddressDocuments() bool { return h.canDocs }

// deliver injects a payload through the armed listener, as the bus would.
func (h *fakeHost) deliver(from core.Sender, payload []byte) (<-chan []byte, bool) {
	h.mu.Lock()
	fn := h.listener
	h.mu.Unlock()
	if fn == nil {
		return nil, false
	}
	return fn(context.Background(), from, payload)
}

func (h *fakeHost) outbound(t *testing.T) sentMessage {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sends) == 0 {
		t.Fatal("nothing was sent")
	}
	return h.sends[len(h.sends)-1]
}

func awaitResponse(t *testing.T, ch <-chan []byte) core.Response {
	t.Helper()
	select {
	case raw, open := <-ch:
		if !open {
			t.Fatal("reply channel closed without a response")
		}
		resp, ok := core.DecodeResponse(raw)
		if !ok {
			t.Fatalf("reply is not a messenger response: %s", raw)
		}
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("reply timeout")
	}
	return core.Response{}
}

func fastRetry() core.RetryPolicy {
	return core.RetryPolicy{
		InitialInterval: time.Millisecond,
		Multiplier:      1.1,
		MaxElapsedTime:  150 * time.Millisecond,
	}
}

func newReceiverForTest(name string, optFns ...func(o *Options)) (*Receiver, *fakeHost, *core.Registry) {
	host := newFakeHost(name)
	registry := core.NewRegistry()
	caller := sender.New(host, registry, sender.WithRetryPolicy(fastRetry()))
	r := New(host, registry, caller, optFns...)
	r.Arm()
	return r, host, registry
}

// -------------------- Arming --------------------

func TestReceiver_ArmIsIdempotent(t *testing.T) {
	host := newFakeHost("options")
	registry := core.NewRegistry()
	caller := sender.New(host, registry)
	r := New(host, registry, caller)
	assert.False(t, r.Armed())

	r.Arm()
	r.Arm()
	assert.True(t, r.Armed())
	assert.Equal(t, 1, host.listenCalls, "arming twice must not reinstall the listener")
}

// -------------------- Recognition --------------------

func TestReceiver_DeclinesForeignTraffic(t *testing.T) {
	// Even with an empty registry, unrecognized payloads are declined
	// silently, never answered with a not-ready error.
	_, host, _ := newReceiverForTest("options")

	ch, claimed := host.deliver(core.Sender{Page: "background"}, testutil.ForeignPayload())
	assert.False(t, claimed)
	assert.Nil(t, ch)

	ch, claimed = host.deliver(core.Sender{Page: "background"}, []byte("not json"))
	assert.False(t, claimed)
	assert.Nil(t, ch)
}

func TestReceiver_AnswersNotReadyWhenNoHandlersYet(t *testing.T) {
	_, host, _ := newReceiverForTest("contentScript")

	ch, claimed := host.deliver(core.Sender{Page: "background"}, testutil.NewEnvelopeBuilder("sum").BuildWire())
	assert.True(t, claimed, "an armed context must answer recognized envelopes")

	resp := awaitResponse(t, ch)
	assert.Error(t, resp.Err)
	assert.True(t, core.HasCode(resp.Err, core.ErrCodeHandlerUnavailable), "got %v", resp.Err)
	assert.Equal(t, core.TagTransient, core.ClassifyFailure(resp.Err), "callers must keep retrying through startup")
}

func TestReceiver_UnknownMethodDeclines(t *testing.T) {
	recorder := testutil.NewRecordingLogger()
	_, host, registry := newReceiverForTest("options", WithLogger(recorder))
	_ = registry.Register("known", func(*core.CallContext, ...any) (any, error) { return nil, nil })

	ch, claimed := host.deliver(core.Sender{Page: "background"}, testutil.NewEnvelopeBuilder("absent").BuildWire())
	assert.False(t, claimed, "unknown methods are left for nobody, not answered")
	assert.Nil(t, ch)
	assert.True(t, recorder.Contains("DEBUG", "ignoring unknown method"))
}

// -------------------- Dispatch --------------------

func TestReceiver_DispatchesRegisteredHandler(t *testing.T) {
	_, host, registry := newReceiverForTest("options")
	_ = registry.Register("sum", func(cc *core.CallContext, args ...any) (any, error) {
		total := 0.0
		for _, a := range args {
			total += a.(float64)
		}
		return total, nil
	})

	from := core.Sender{TabID: 7, FrameID: 0}
	ch, claimed := host.deliver(from, testutil.NewEnvelopeBuilder("sum").Args(1, 2, 3).BuildWire())
	assert.True(t, claimed)

	resp := awaitResponse(t, ch)
	assert.NoError(t, resp.Err)
	assert.Equal(t, 6.0, resp.Value)
}

func TestReceiver_SeedsTraceWithSender(t *testing.T) {
	_, host, registry := newReceiverForTest("options")

	var gotTrace []core.Sender
	var forwarded bool
	_ = registry.Register("whoami", func(cc *core.CallContext, _ ...any) (any, error) {
		gotTrace = cc.Trace
		forwarded = cc.Forwarded()
		sender, _ := cc.Sender()
		return sender.String(), nil
	})

	origin := core.Sender{TabID: 3, FrameID: 1}
	relay := core.Sender{Page: "background"}
	payload := testutil.NewEnvelopeBuilder("whoami").TraceFrom(origin).BuildWire()

	ch, _ := host.deliver(relay, payload)
	resp := awaitResponse(t, ch)
	assert.NoError(t, resp.Err)
	assert.Equal(t, "page:background", resp.Value, "the immediate sender is the last hop")
	if assert.Len(t, gotTrace, 2) {
		assert.Equal(t, origin, gotTrace[0])
		assert.Equal(t, relay, gotTrace[1])
	}
	assert.True(t, forwarded)
}

func TestReceiver_HandlerErrorsAreSerialized(t *testing.T) {
	_, host, registry := newReceiverForTest("options")
	_ = registry.Register("appFail", func(*core.CallContext, ...any) (any, error) {
		return nil, errors.New("quota exceeded")
	})
	_ = registry.Register("richFail", func(*core.CallContext, ...any) (any, error) {
		return nil, core.NewConfigurationError("bad call shape")
	})

	ch, _ := host.deliver(core.Sender{Page: "background"}, testutil.NewEnvelopeBuilder("appFail").BuildWire())
	resp := awaitResponse(t, ch)
	var remote *core.RemoteError
	assert.True(t, errors.As(resp.Err, &remote), "got %T: %v", resp.Err, resp.Err)
	assert.Equal(t, "quota exceeded", remote.Message)

	ch, _ = host.deliver(core.Sender{Page: "background"}, testutil.NewEnvelopeBuilder("richFail").BuildWire())
	resp = awaitResponse(t, ch)
	assert.True(t, core.HasCode(resp.Err, core.ErrCodeConfiguration), "codes must survive the wire: %v", resp.Err)
}

func TestReceiver_HandlerPanicAnswersInternalError(t *testing.T) {
	recorder := testutil.NewRecordingLogger()
	_, host, registry := newReceiverForTest("options", WithLogger(recorder))
	_ = registry.Register("explode", func(*core.CallContext, ...any) (any, error) {
		panic("boom")
	})

	ch, claimed := host.deliver(core.Sender{Page: "background"}, testutil.NewEnvelopeBuilder("explode").BuildWire())
	assert.True(t, claimed)
	resp := awaitResponse(t, ch)
	assert.Error(t, resp.Err)
	assert.True(t, core.HasCode(resp.Err, core.ErrCodeInternal), "got %v", resp.Err)
	assert.True(t, recorder.Contains("ERROR", "handler panic"))
}

func TestReceiver_BoundsConcurrentDispatches(t *testing.T) {
	_, host, registry := newReceiverForTest("options", WithMaxConcurrentDispatches(1))

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	_ = registry.Register("block", func(*core.CallContext, ...any) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	})

	payload := testutil.NewEnvelopeBuilder("block").BuildWire()
	ch1, ok1 := host.deliver(core.Sender{Page: "a"}, payload)
	ch2, ok2 := host.deliver(core.Sender{Page: "b"}, payload)
	assert.True(t, ok1)
	assert.True(t, ok2, "claims are synchronous even when dispatch queues")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first dispatch never started")
	}
	select {
	case <-started:
		t.Fatal("second dispatch ran past the limit")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	awaitResponse(t, ch1)
	awaitResponse(t, ch2)
}

// -------------------- Relay --------------------

func TestReceiver_ForwardsTargetedEnvelopes(t *testing.T) {
	_, host, _ := newReceiverForTest("background")
	host.reply(core.EncodeValueResponse("doc says hi"))

	origin := core.Sender{Page: "options"}
	payload := testutil.NewEnvelopeBuilder("greet").
		Args("hello").
		Target(core.Document(5, 0)).
		BuildWire()

	ch, claimed := host.deliver(origin, payload)
	assert.True(t, claimed)
	resp := awaitResponse(t, ch)
	assert.NoError(t, resp.Err)
	assert.Equal(t, "doc says hi", resp.Value)

	sent := host.outbound(t)
	assert.Equal(t, 5, sent.tabID)
	env, ok := core.DecodeEnvelope(sent.payload)
	assert.True(t, ok)
	assert.Nil(t, env.Target, "the relay consumes the embedded target")
	if assert.Len(t, env.Trace, 1, "the relay records who asked for the forward") {
		assert.Equal(t, origin, env.Trace[0])
	}
}

func TestReceiver_ForwardFailuresAnswerWithError(t *testing.T) {
	_, host, _ := newReceiverForTest("background")
	host.replyErr(errors.New(core.HostErrPortClosedEarly))

	payload := testutil.NewEnvelopeBuilder("greet").Target(core.Document(5, 0)).BuildWire()
	ch, claimed := host.deliver(core.Sender{Page: "options"}, payload)
	assert.True(t, claimed)

	resp := awaitResponse(t, ch)
	assert.Error(t, resp.Err)
	assert.True(t, core.HasCode(resp.Err, core.ErrCodeTargetClosedEarly), "got %v", resp.Err)
}

func TestReceiver_RefusesForwardWithoutDocumentAccess(t *testing.T) {
	recorder := testutil.NewRecordingLogger()
	_, host, _ := newReceiverForTest("options", WithLogger(recorder))

	payload := testutil.NewEnvelopeBuilder("greet").Target(core.Document(5, 0)).BuildWire()
	ch, claimed := host.deliver(core.Sender{TabID: 2}, payload)
	assert.True(t, claimed, "protocol violations are answered, not ignored")

	resp := awaitResponse(t, ch)
	assert.Error(t, resp.Err)
	assert.True(t, core.HasCode(resp.Err, core.ErrCodeConfiguration), "got %v", resp.Err)
	assert.Equal(t, core.TagFatal, core.ClassifyFailure(resp.Err), "misrouted forwards must not be retried")
	assert.True(t, recorder.Contains("ERROR", "refusing to forward"))
}
