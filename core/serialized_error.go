package core

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// MessengerErrorName is the wire name of taxonomy errors. Remote application
// errors keep their own name instead.
const MessengerErrorName = "MessengerError"

// remoteStackKey stores the serialized remote stack inside reconstructed
// taxonomy errors, so the original failure site survives the hop.
const remoteStackKey = "remoteStack"

// SerializedError is the wire representation of a handler failure. Name and
// message are always present; code, category and metadata survive for
// taxonomy errors so the calling side can reconstruct them faithfully.
type SerializedError struct {
	Name     string         `json:"name"`
	Message  string         `json:"message"`
	Stack    string         `json:"stack,omitempty"`
	Code     string         `json:"code,omitempty"`
	Category string         `json:"category,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SerializeError flattens an error for the wire. Taxonomy errors keep their
// code, category and metadata; reconstructed remote errors keep their
// original name and stack; anything else degrades to name "Error" plus the
// message.
func SerializeError(err error) *SerializedError {
	if err == nil {
		return nil
	}

	var remote *RemoteError
	if errors.As(err, &remote) {
		return &SerializedError{
			Name:    remote.Name,
			Message: remote.Message,
			Stack:   remote.Stack,
		}
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		se := &SerializedError{
			Name:     MessengerErrorName,
			Message:  rich.Message,
			Code:     rich.TextCode,
			Category: string(rich.Category),
		}
		if len(rich.Metadata) > 0 {
			se.Metadata = make(map[string]any, len(rich.Metadata))
			for k, v := range rich.Metadata {
				se.Metadata[k] = v
			}
		}
		if stack, ok := se.Metadata[remoteStackKey].(string); ok {
			se.Stack = stack
			delete(se.Metadata, remoteStackKey)
		}
		return se
	}

	return &SerializedError{Name: "Error", Message: err.Error()}
}

// DeserializeError reconstructs the error a remote handler produced.
// Serialized taxonomy errors come back as rich errors with their code,
// category and metadata restored and the remote stack tucked into metadata.
// Everything else comes back as a *RemoteError preserving name and message.
func DeserializeError(se *SerializedError) error {
	if se == nil {
		return nil
	}

	if se.Code != "" {
		category := goerrors.CategoryExternal
		if se.Category != "" {
			category = goerrors.Category(se.Category)
		}
		rich := goerrors.New(se.Message, category).WithTextCode(se.Code)
		metadata := make(map[string]any, len(se.Metadata)+1)
		for k, v := range se.Metadata {
			metadata[k] = v
		}
		if se.Stack != "" {
			metadata[remoteStackKey] = se.Stack
		}
		if len(metadata) > 0 {
			rich = rich.WithMetadata(metadata)
		}
		return rich
	}

	name := se.Name
	if name == "" {
		name = "Error"
	}
	return &RemoteError{Name: name, Message: se.Message, Stack: se.Stack}
}

// errorMessage extracts the bare message used for vocabulary matching: the
// rich Message when present, the full Error() string otherwise.
func errorMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	return err.Error()
}
