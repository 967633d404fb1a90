package core

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes carried by every taxonomy error. They survive wire
// serialization, so both ends of a call can match on them.
const (
	ErrCodeTargetNotFound     = "MESSENGER_TARGET_NOT_FOUND"
	ErrCodeHandlerUnavailable = "MESSENGER_HANDLER_UNAVAILABLE"
	ErrCodeHandlerMissing     = "MESSENGER_HANDLER_MISSING"
	ErrCodeConflict           = "MESSENGER_LISTENER_CONFLICT"
	ErrCodeTargetClosedEarly  = "MESSENGER_TARGET_CLOSED_EARLY"
	ErrCodeTargetGone         = "MESSENGER_TARGET_GONE"
	ErrCodeDuplicateHandler   = "MESSENGER_DUPLICATE_HANDLER"
	ErrCodeConfiguration      = "MESSENGER_CONFIGURATION"
	ErrCodeInternal           = "MESSENGER_INTERNAL"
)

// Raw failure vocabulary of the host bus. The transport reports failure only
// through these strings, so they are matched verbatim during classification
// and emitted verbatim by bus implementations.
const (
	// HostErrReceivingEndMissing is reported when no context is listening at
	// the destination. The target may simply not have finished loading, so
	// this failure is retried.
	HostErrReceivingEndMissing = "Could not establish connection. Receiving end does not exist."

	// HostErrPortClosedEarly is reported when a listener claimed the message
	// but went away before answering. Retrying cannot help; the defect is in
	// the receiving code.
	HostErrPortClosedEarly = "The message port closed before a response was received."
)

// HandlersNotRegisteredPrefix opens the error message produced by a context
// whose listener is armed before any handler is registered. Callers treat it
// as transient: registration is expected to complete momentarily.
const HandlersNotRegisteredPrefix = "No handlers registered in "

// NewTargetNotFound reports that a named page is not present on the bus. The
// page may still be loading, so the failure is retry-eligible.
func NewTargetNotFound(target Target) *goerrors.Error {
	return newMessengerError(
		fmt.Sprintf("The target %s was not found", target),
		goerrors.CategoryNotFound,
		ErrCodeTargetNotFound,
	).WithMetadata(map[string]any{"target": target.String()})
}

// NewHandlerUnavailable reports that the target context exists but nothing
// answered the call: either its listener is not armed yet or the messenger
// is not loaded there at all. Retry-eligible.
func NewHandlerUnavailable(target Target) *goerrors.Error {
	return newMessengerError(
		fmt.Sprintf("The messenger is not available in the target %s", target),
		goerrors.CategoryExternal,
		ErrCodeHandlerUnavailable,
	).WithMetadata(map[string]any{"target": target.String()})
}

// NewHandlerNotReady is the wire error an armed-but-empty context answers
// with. Its message carries HandlersNotRegisteredPrefix verbatim, which is
// what the calling side classifies on.
func NewHandlerNotReady(contextName string) *goerrors.Error {
	return newMessengerError(
		HandlersNotRegisteredPrefix+contextName,
		goerrors.CategoryExternal,
		ErrCodeHandlerUnavailable,
	).WithMetadata(map[string]any{"context": contextName})
}

// NewHandlerMissing reports that the receiving context serves other methods
// but not this one. This is a programming error, never retried.
func NewHandlerMissing(method, contextName string) *goerrors.Error {
	return newMessengerError(
		fmt.Sprintf("No handler registered for %s in %s", method, contextName),
		goerrors.CategoryOperation,
		ErrCodeHandlerMissing,
	).WithMetadata(map[string]any{"method": method, "context": contextName})
}

// NewConflict reports that a third-party listener on the shared bus answered
// a call meant for the messenger. Terminal: the foreign listener would win
// every retry as well.
func NewConflict(target Target, method string) *goerrors.Error {
	return newMessengerError(
		fmt.Sprintf("Conflict: the message %s was handled by a third-party listener", method),
		goerrors.CategoryConflict,
		ErrCodeConflict,
	).WithMetadata(map[string]any{"target": target.String(), "method": method})
}

// NewTargetClosedEarly reports that the target claimed the call but its reply
// port closed before an answer arrived. Terminal.
func NewTargetClosedEarly(target Target) *goerrors.Error {
	return newMessengerError(
		"The target was closed before receiving a response",
		goerrors.CategoryExternal,
		ErrCodeTargetClosedEarly,
	).WithMetadata(map[string]any{"target": target.String()})
}

// NewTargetGone reports that a document target definitively no longer exists
// (its tab was closed or discarded). Terminal: retrying cannot revive it.
func NewTargetGone(target Target) *goerrors.Error {
	return newMessengerError(
		fmt.Sprintf("The target %s no longer exists", target),
		goerrors.CategoryNotFound,
		ErrCodeTargetGone,
	).WithMetadata(map[string]any{"target": target.String()})
}

// NewDuplicateHandler reports a second registration under an already-taken
// method name. The first registration stays in effect.
func NewDuplicateHandler(method string) *goerrors.Error {
	return newMessengerError(
		fmt.Sprintf("Handler already set for %s", method),
		goerrors.CategoryConflict,
		ErrCodeDuplicateHandler,
	).WithMetadata(map[string]any{"method": method})
}

// NewConfigurationError reports misuse of the messenger API itself, such as
// an invalid target or forwarding through a context that cannot forward.
func NewConfigurationError(message string) *goerrors.Error {
	return newMessengerError(message, goerrors.CategoryBadInput, ErrCodeConfiguration)
}

// newMessengerError builds a taxonomy error with category and text code.
func newMessengerError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return goerrors.New(message, category).WithTextCode(textCode)
}

// HasCode reports whether err carries the given messenger text code anywhere
// in its chain.
func HasCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// RemoteError is an application error raised by a remote handler and
// reconstructed on the calling side. Name and Message mirror the original
// error; Stack carries the remote stack trace when one was serialized.
type RemoteError struct {
	Name    string
	Message string
	Stack   string
}

// Error returns the remote error message.
func (e *RemoteError) Error() string { return e.Message }
