package core

import "fmt"

// Sender identifies the immediate source of a message as reported by the
// host bus. Extension contexts carry their page name; document contexts carry
// the tab and frame they live in. The zero Sender means the host reported no
// identity.
type Sender struct {
	Page    string `json:"page,omitempty"`
	TabID   int    `json:"tabId,omitempty"`
	FrameID int    `json:"frameId,omitempty"`
}

// IsDocument reports whether the sender is a tab/frame document context.
func (s Sender) IsDocument() bool { return s.Page == "" && s.TabID != 0 }

// IsPage reports whether the sender is a named extension context.
func (s Sender) IsPage() bool { return s.Page != "" }

// IsZero reports whether the host reported no sender identity.
func (s Sender) IsZero() bool { return s == Sender{} }

// Target converts the sender identity into an addressable target, so a
// handler can call back whoever called it. The boolean is false when the
// sender carries no addressable identity.
func (s Sender) Target() (Target, bool) {
	switch {
	case s.IsPage():
		return Page(s.Page), true
	case s.IsDocument():
		return Document(s.TabID, s.FrameID), true
	default:
		return Target{}, false
	}
}

// String renders the sender for logs.
func (s Sender) String() string {
	switch {
	case s.IsPage():
		return "page:" + s.Page
	case s.IsDocument():
		return fmt.Sprintf("tab:%d:%d", s.TabID, s.FrameID)
	default:
		return "sender:unknown"
	}
}

// AppendTrace returns a new trace with s appended. The input slice is never
// mutated, so traces can be shared across forwarded envelopes.
func AppendTrace(trace []Sender, s Sender) []Sender {
	out := make([]Sender, 0, len(trace)+1)
	out = append(out, trace...)
	return append(out, s)
}
