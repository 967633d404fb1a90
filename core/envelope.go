package core

import (
	"bytes"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
)

// ProtocolTag is the JSON key marking a payload as belonging to this
// messenger. Foreign bus traffic never carries it, so recognition is a
// cheap, reliable gate.
const ProtocolTag = "__webextMessenger"

// Envelope is a single typed call travelling over the bus.
//
// Type names the registered handler, Args carry its positional arguments as
// JSON values. Target is nil for a message meant to be handled where it
// arrives; a non-nil Target asks the receiving context to forward the call
// (the central relay path). Trace accumulates the sender observed at each
// hop, IsNotification marks fire-and-forget calls.
type Envelope struct {
	Type           string
	Args           []any
	Target         *Target
	Trace          []Sender
	IsNotification bool
}

// wireEnvelope is the JSON layout of an Envelope on the bus.
type wireEnvelope struct {
	Messenger bool            `json:"__webextMessenger"`
	Type      string          `json:"type"`
	Args      json.RawMessage `json:"args"`
	Target    *Target         `json:"target,omitempty"`
	Options   wireOptions     `json:"options"`
}

// wireOptions is the options block of the wire envelope.
type wireOptions struct {
	IsNotification bool     `json:"isNotification,omitempty"`
	Trace          []Sender `json:"trace,omitempty"`
}

// EncodeEnvelope renders the wire form of an envelope. Arguments that cannot
// be represented as JSON are a configuration error of the calling code.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	args := env.Args
	if args == nil {
		args = []any{}
	}
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "call arguments are not serializable").
			WithTextCode(ErrCodeConfiguration)
	}
	return json.Marshal(wireEnvelope{
		Messenger: true,
		Type:      env.Type,
		Args:      rawArgs,
		Target:    env.Target,
		Options: wireOptions{
			IsNotification: env.IsNotification,
			Trace:          env.Trace,
		},
	})
}

// DecodeEnvelope parses a bus payload. The boolean reports whether the
// payload is one of ours: the protocol tag must be literally true, the type a
// non-empty string and args a JSON array. Anything else is foreign traffic
// and must be left unanswered for other bus consumers.
func DecodeEnvelope(payload []byte) (Envelope, bool) {
	var w wireEnvelope
	if err := json.Unmarshal(payload, &w); err != nil {
		return Envelope{}, false
	}
	if !w.Messenger || w.Type == "" || !isJSONArray(w.Args) {
		return Envelope{}, false
	}
	var args []any
	if err := json.Unmarshal(w.Args, &args); err != nil {
		return Envelope{}, false
	}
	return Envelope{
		Type:           w.Type,
		Args:           args,
		Target:         w.Target,
		Trace:          w.Options.Trace,
		IsNotification: w.Options.IsNotification,
	}, true
}

// isJSONArray reports whether raw holds a JSON array. null, objects and
// scalars all disqualify a payload from being an envelope.
func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Response is a decoded reply to a call. Exactly one of Value and Err is
// meaningful: a handler that returned nothing yields a nil Value and nil Err.
type Response struct {
	Value any
	Err   error
}

// wireResponse is the JSON layout of a reply on the bus.
type wireResponse struct {
	Messenger bool             `json:"__webextMessenger"`
	Value     json.RawMessage  `json:"value,omitempty"`
	Error     *SerializedError `json:"error,omitempty"`
}

// EncodeValueResponse renders a successful reply. When the handler's return
// value cannot be serialized the reply degrades to a serialized internal
// error, so the caller always receives a well-formed response.
func EncodeValueResponse(value any) []byte {
	w := wireResponse{Messenger: true}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return EncodeErrorResponse(goerrors.Wrap(err, goerrors.CategoryInternal, "handler return value is not serializable").
				WithTextCode(ErrCodeInternal))
		}
		w.Value = raw
	}
	out, err := json.Marshal(w)
	if err != nil {
		return EncodeErrorResponse(goerrors.Wrap(err, goerrors.CategoryInternal, "response serialization failed").
			WithTextCode(ErrCodeInternal))
	}
	return out
}

// EncodeErrorResponse renders a failed reply carrying the serialized error.
func EncodeErrorResponse(err error) []byte {
	out, merr := json.Marshal(wireResponse{Messenger: true, Error: SerializeError(err)})
	if merr != nil {
		// Serialized errors are flat strings and maps; this cannot fail for
		// them, but keep the reply well-formed no matter what.
		out, _ = json.Marshal(wireResponse{Messenger: true, Error: &SerializedError{
			Name:    "Error",
			Message: err.Error(),
		}})
	}
	return out
}

// DecodeResponse parses a reply payload. The boolean reports whether the
// payload is a messenger response; an untagged or malformed reply means some
// other listener on the bus answered first.
func DecodeResponse(payload []byte) (Response, bool) {
	var w wireResponse
	if err := json.Unmarshal(payload, &w); err != nil {
		return Response{}, false
	}
	if !w.Messenger {
		return Response{}, false
	}
	if w.Error != nil {
		return Response{Err: DeserializeError(w.Error)}, true
	}
	if len(w.Value) == 0 {
		return Response{}, true
	}
	var value any
	if err := json.Unmarshal(w.Value, &value); err != nil {
		return Response{}, false
	}
	return Response{Value: value}, true
}
