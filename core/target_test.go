package core

import (
	"encoding/json"
	"testing"
)

func TestTarget_ConstructorsAndPredicates(t *testing.T) {
	doc := Document(7, 2)
	if !doc.IsDocument() || doc.IsPage() || doc.IsCentral() || doc.IsZero() {
		t.Fatalf("document predicates wrong: %+v", doc)
	}
	if doc.TabID() != 7 || doc.FrameID() != 2 {
		t.Fatalf("document accessors wrong: tab=%d frame=%d", doc.TabID(), doc.FrameID())
	}

	page := Page("options")
	if !page.IsPage() || page.IsDocument() || page.IsCentral() {
		t.Fatalf("page predicates wrong: %+v", page)
	}
	if page.PageName() != "options" {
		t.Fatalf("page name wrong: %q", page.PageName())
	}

	bg := Background()
	if !bg.IsCentral() || !bg.IsPage() || bg.PageName() != CentralPageName {
		t.Fatalf("background predicates wrong: %+v", bg)
	}

	var zero Target
	if !zero.IsZero() || zero.IsDocument() || zero.IsPage() {
		t.Fatalf("zero predicates wrong: %+v", zero)
	}
}

func TestTarget_String(t *testing.T) {
	cases := map[string]Target{
		"page:background": Background(),
		"page:sidebar":    Page("sidebar"),
		"tab:7:0":         Document(7, 0),
		"tab:12:3":        Document(12, 3),
		"target:zero":     {},
	}
	for want, target := range cases {
		if got := target.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestTarget_Validate(t *testing.T) {
	valid := []Target{Background(), Page("options"), Document(1, 0), Document(42, 9)}
	for _, target := range valid {
		if err := target.Validate(); err != nil {
			t.Errorf("Validate(%s) = %v, want nil", target, err)
		}
	}

	invalid := []Target{
		{},                             // addresses nothing
		{page: "options", tabID: 3},    // both shapes at once
		{frameID: 3},                   // frame without a tab
		Document(0, 2),                 // zero tab
		Document(-1, 0),                // chrome's TAB_ID_NONE
		Document(5, -2),                // negative frame
	}
	for _, target := range invalid {
		err := target.Validate()
		if err == nil {
			t.Errorf("Validate(%+v) accepted an invalid target", target)
			continue
		}
		if !HasCode(err, ErrCodeConfiguration) {
			t.Errorf("Validate(%+v) error lacks configuration code: %v", target, err)
		}
	}
}

func TestTarget_MarshalShapes(t *testing.T) {
	raw, err := json.Marshal(Page("options"))
	if err != nil {
		t.Fatalf("marshal page: %v", err)
	}
	if string(raw) != `{"page":"options"}` {
		t.Fatalf("page wire shape = %s", raw)
	}

	raw, err = json.Marshal(Document(7, 0))
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	if string(raw) != `{"tabId":7,"frameId":0}` {
		t.Fatalf("document wire shape = %s", raw)
	}

	if _, err := json.Marshal(Target{}); err == nil {
		t.Fatal("marshal accepted the zero target")
	}
}

func TestTarget_UnmarshalShapes(t *testing.T) {
	var target Target
	if err := json.Unmarshal([]byte(`{"page":"sidebar"}`), &target); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if target != Page("sidebar") {
		t.Fatalf("unmarshaled page = %+v", target)
	}

	if err := json.Unmarshal([]byte(`{"tabId":9,"frameId":4}`), &target); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if target != Document(9, 4) {
		t.Fatalf("unmarshaled document = %+v", target)
	}

	// frameId defaults to the top frame
	if err := json.Unmarshal([]byte(`{"tabId":9}`), &target); err != nil {
		t.Fatalf("unmarshal tab-only: %v", err)
	}
	if target != Document(9, 0) {
		t.Fatalf("tab-only document = %+v", target)
	}

	rejected := []string{
		`{}`,
		`{"frameId":2}`,
		`{"page":"x","tabId":1}`,
		`{"tabId":0}`,
		`{"tabId":-1}`,
		`"page:options"`,
	}
	for _, payload := range rejected {
		var bad Target
		if err := json.Unmarshal([]byte(payload), &bad); err == nil {
			t.Errorf("unmarshal accepted %s as %+v", payload, bad)
		}
	}
}
