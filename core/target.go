package core

import (
	"encoding/json"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// CentralPageName is the reserved name of the privileged central context. It
// is the only context guaranteed to exist for the whole application lifetime
// and the only one that relays calls between document contexts.
const CentralPageName = "background"

// Target addresses a single execution context inside the host application.
// It is a two-shape value type: either a document target (tab plus frame) or
// a named-page target (central context, options page, sidebar, ...). The zero
// Target addresses nothing and fails Validate.
//
// Targets are immutable; construct them with Document, Page or Background.
type Target struct {
	page    string
	tabID   int
	frameID int
}

// Document returns a target addressing the document loaded in the given tab
// and frame. Frame 0 is the top frame; callers that do not care about
// sub-frames pass 0.
func Document(tabID, frameID int) Target {
	return Target{tabID: tabID, frameID: frameID}
}

// Page returns a target addressing a named extension page.
func Page(name string) Target {
	return Target{page: name}
}

// Background returns the target for the privileged central context.
func Background() Target {
	return Page(CentralPageName)
}

// IsDocument reports whether the target addresses a tab/frame document.
func (t Target) IsDocument() bool { return t.page == "" && t.tabID != 0 }

// IsPage reports whether the target addresses a named page.
func (t Target) IsPage() bool { return t.page != "" }

// IsCentral reports whether the target addresses the central context.
func (t Target) IsCentral() bool { return t.page == CentralPageName }

// IsZero reports whether the target is the zero value, addressing nothing.
func (t Target) IsZero() bool { return t.page == "" && t.tabID == 0 && t.frameID == 0 }

// TabID returns the tab identifier of a document target, 0 otherwise.
func (t Target) TabID() int { return t.tabID }

// FrameID returns the frame identifier of a document target, 0 otherwise.
func (t Target) FrameID() int { return t.frameID }

// PageName returns the page name of a named-page target, "" otherwise.
func (t Target) PageName() string { return t.page }

// String renders the target for logs: "page:background" or "tab:7:0".
func (t Target) String() string {
	switch {
	case t.IsPage():
		return "page:" + t.page
	case t.IsDocument():
		return fmt.Sprintf("tab:%d:%d", t.tabID, t.frameID)
	default:
		return "target:zero"
	}
}

// Validate reports whether the target is well formed. The zero target,
// non-positive tab identifiers, negative frame identifiers and targets mixing
// both shapes are configuration errors.
func (t Target) Validate() error {
	switch {
	case t.IsZero():
		return NewConfigurationError("target is empty; use Document, Page or Background")
	case t.page != "" && (t.tabID != 0 || t.frameID != 0):
		return NewConfigurationError("target mixes page and document addressing")
	case t.page == "" && t.tabID <= 0:
		return NewConfigurationError(fmt.Sprintf("document target requires a positive tab id, got %d", t.tabID))
	case t.page == "" && t.frameID < 0:
		return NewConfigurationError(fmt.Sprintf("target frame id %d is not a valid frame", t.frameID))
	default:
		return nil
	}
}

// targetDescriptor is the wire shape of a Target. Documents carry tabId and
// frameId, pages carry page. Exactly one addressing shape must be present.
type targetDescriptor struct {
	Page    string `json:"page,omitempty"`
	TabID   *int   `json:"tabId,omitempty"`
	FrameID *int   `json:"frameId,omitempty"`
}

// MarshalJSON renders the wire descriptor for the target.
func (t Target) MarshalJSON() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.IsPage() {
		return json.Marshal(targetDescriptor{Page: t.page})
	}
	tab, frame := t.tabID, t.frameID
	return json.Marshal(targetDescriptor{TabID: &tab, FrameID: &frame})
}

// UnmarshalJSON parses a wire descriptor, accepting either addressing shape.
// A frameId without tabId, an empty descriptor, or a descriptor carrying both
// shapes is rejected.
func (t *Target) UnmarshalJSON(data []byte) error {
	var d targetDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed target descriptor")
	}
	switch {
	case d.Page != "" && d.TabID == nil && d.FrameID == nil:
		*t = Page(d.Page)
	case d.Page == "" && d.TabID != nil:
		frame := 0
		if d.FrameID != nil {
			frame = *d.FrameID
		}
		*t = Document(*d.TabID, frame)
	default:
		return NewConfigurationError("target descriptor must carry either page or tabId")
	}
	return t.Validate()
}
