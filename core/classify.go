package core

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// FailureTag is the closed classification of a failed call attempt. Every
// failure observed by the caller maps onto exactly one tag, which alone
// decides whether the attempt is retried.
type FailureTag int

const (
	// TagFatal failures are surfaced immediately: application errors,
	// programming errors, anything waiting cannot change.
	TagFatal FailureTag = iota

	// TagTransient failures are expected to heal: the target is still
	// loading, its listener is not armed, its handlers are not registered.
	TagTransient

	// TagConflict marks a reply produced by a third-party listener on the
	// shared bus. Terminal: the foreign listener would keep winning.
	TagConflict

	// TagClosedEarly marks a reply port that closed before answering.
	// Terminal: the receiving code is defective.
	TagClosedEarly
)

// String renders the tag for logs.
func (t FailureTag) String() string {
	switch t {
	case TagTransient:
		return "transient"
	case TagConflict:
		return "conflict"
	case TagClosedEarly:
		return "closed_early"
	default:
		return "fatal"
	}
}

// ClassifyFailure maps a failed attempt onto its FailureTag. It is the
// single place that understands the host bus's raw failure vocabulary;
// nothing outside this function may match on transport strings.
//
// Taxonomy text codes are checked first, then the verbatim host strings,
// then the handlers-not-registered prefix. Unknown failures are fatal.
func ClassifyFailure(err error) FailureTag {
	if err == nil {
		return TagFatal
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.TextCode {
		case ErrCodeTargetNotFound, ErrCodeHandlerUnavailable:
			return TagTransient
		case ErrCodeConflict:
			return TagConflict
		case ErrCodeTargetClosedEarly:
			return TagClosedEarly
		case ErrCodeTargetGone, ErrCodeHandlerMissing, ErrCodeConfiguration, ErrCodeDuplicateHandler:
			return TagFatal
		}
	}

	switch msg := errorMessage(err); {
	case msg == HostErrReceivingEndMissing:
		return TagTransient
	case msg == HostErrPortClosedEarly:
		return TagClosedEarly
	case strings.HasPrefix(msg, HandlersNotRegisteredPrefix):
		return TagTransient
	default:
		return TagFatal
	}
}
