package selection_test

import (
	"errors"
	"testing"

	"neon/mei"
	"neon/mei/meitest"
	"neon/selection"
)

func TestIsGroupable(t *testing.T) {
	doc := meitest.Page(t)
	adj := selection.DocumentAdjacency{Doc: doc}

	tests := []struct {
		name string
		mode selection.Mode
		ids  []string
		want bool
	}{
		{"single syllable", selection.ModeSyllable, []string{"sy1"}, false},
		{"adjacent syllables", selection.ModeSyllable, []string{"sy1", "sy2"}, true},
		{"adjacent syllables reversed", selection.ModeSyllable, []string{"sy2", "sy1"}, true},
		{"gap between syllables", selection.ModeSyllable, []string{"sy1", "sy3"}, false},
		{"neumes of different syllables", selection.ModeNeume, []string{"n1", "n2"}, true},
		{"neumes of the same syllable", selection.ModeNeume, []string{"n6", "n7"}, false},
		{"adjacent ncs", selection.ModeNc, []string{"nc1", "nc2"}, true},
		{"ncs across staves", selection.ModeNc, []string{"nc4", "nc5"}, true},
		{"ncs with gap", selection.ModeNc, []string{"nc1", "nc3"}, false},
		{"adjacent staves", selection.ModeStaff, []string{"s1", "s2"}, true},
		{"staves with gap", selection.ModeStaff, []string{"s1", "s3"}, false},
		{"wrong kind for mode", selection.ModeNeume, []string{"sy1", "sy2"}, false},
		{"bbox is never groupable", selection.ModeBBox, []string{"nc1", "nc2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			els := meitest.Elements(t, doc, tt.ids...)
			if got := selection.IsGroupable(tt.mode, els, adj); got != tt.want {
				t.Errorf("IsGroupable(%s, %v) = %v, want %v", tt.mode, tt.ids, got, tt.want)
			}
		})
	}
}

func TestSharedLogicalParent(t *testing.T) {
	doc := meitest.Page(t)
	adj := selection.DocumentAdjacency{Doc: doc}

	tests := []struct {
		mode selection.Mode
		ids  []string
		want bool
	}{
		{selection.ModeSyllable, []string{"sy1", "sy3"}, true},
		{selection.ModeSyllable, []string{"sy3", "sy4"}, false},
		{selection.ModeNeume, []string{"n6", "n7"}, true},
		{selection.ModeNeume, []string{"n5", "n6"}, false},
		{selection.ModeNc, []string{"nc6", "nc7"}, true},
		{selection.ModeNc, []string{"nc2", "nc3"}, false},
		{selection.ModeStaff, []string{"s1"}, false},
	}

	for _, tt := range tests {
		els := meitest.Elements(t, doc, tt.ids...)
		if got := adj.SharedLogicalParent(tt.mode, els); got != tt.want {
			t.Errorf("SharedLogicalParent(%s, %v) = %v, want %v", tt.mode, tt.ids, got, tt.want)
		}
	}
}

func TestContainsLinked(t *testing.T) {
	doc := meitest.Page(t)

	tests := []struct {
		mode selection.Mode
		ids  []string
		want bool
	}{
		{selection.ModeSyllable, []string{"sy1", "sy2"}, false},
		{selection.ModeSyllable, []string{"sy2", "sy3"}, true},
		{selection.ModeNeume, []string{"n3"}, true},
		{selection.ModeNeume, []string{"n1", "n2"}, false},
		{selection.ModeNc, []string{"nc5"}, true},
		{selection.ModeNc, []string{"nc6", "nc7"}, false},
		{selection.ModeStaff, []string{"s1", "s2"}, false},
	}

	for _, tt := range tests {
		els := meitest.Elements(t, doc, tt.ids...)
		if got := selection.ContainsLinked(tt.mode, els); got != tt.want {
			t.Errorf("ContainsLinked(%s, %v) = %v, want %v", tt.mode, tt.ids, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	doc := meitest.Page(t)
	adj := selection.DocumentAdjacency{Doc: doc}

	// linkable only for the known linked pair
	linkable := func(mode selection.Mode, els []*mei.Element) bool {
		return len(els) == 2 && els[0].ID == "sy3" && els[1].ID == "sy4"
	}

	tests := []struct {
		name string
		mode selection.Mode
		ids  []string
		want selection.Type
	}{
		{"nothing selected", selection.ModeSyllable, nil, selection.TypeNone},
		{"syllable without text", selection.ModeSyllable, []string{"sy4"}, selection.TypeNoSyl},
		{"single syllable", selection.ModeSyllable, []string{"sy1"}, selection.TypeSingleSyllable},
		{"linkable syllables", selection.ModeSyllable, []string{"sy3", "sy4"}, selection.TypeLinkable},
		{"groupable syllables", selection.ModeSyllable, []string{"sy1", "sy2"}, selection.TypeMultiSyllable},
		{"scattered syllables", selection.ModeSyllable, []string{"sy1", "sy5"}, selection.TypeDefault},
		{"single staff", selection.ModeStaff, []string{"s2"}, selection.TypeSingleStaff},
		{"adjacent staves", selection.ModeStaff, []string{"s1", "s2"}, selection.TypeMultiStaff},
		{"scattered staves", selection.ModeStaff, []string{"s1", "s3"}, selection.TypeDefault},
		{"single neume", selection.ModeNeume, []string{"n1"}, selection.TypeSingleNeume},
		{"adjacent neumes", selection.ModeNeume, []string{"n4", "n5"}, selection.TypeMultiNeume},
		{"neumes of one syllable", selection.ModeNeume, []string{"n6", "n7"}, selection.TypeDefault},
		{"single nc", selection.ModeNc, []string{"nc3"}, selection.TypeSingleNc},
		{"ligature candidates", selection.ModeNc, []string{"nc6", "nc7"}, selection.TypeLigature},
		{"ncs of different neumes", selection.ModeNc, []string{"nc5", "nc6"}, selection.TypeMultiNc},
		{"three ncs", selection.ModeNc, []string{"nc5", "nc6", "nc7"}, selection.TypeMultiNc},
		{"scattered ncs", selection.ModeNc, []string{"nc1", "nc8"}, selection.TypeDefault},
		{"bbox", selection.ModeBBox, []string{"nc1"}, selection.TypeBBox},
		{"bbox many", selection.ModeBBox, []string{"nc1", "nc2"}, selection.TypeDefault},
		{"clef", selection.ModeLayerElement, []string{"c1"}, selection.TypeLayerElement},
		{"syllable as layer element", selection.ModeLayerElement, []string{"sy1"}, selection.TypeDefault},
		{"default mode", selection.ModeDefault, []string{"nc1"}, selection.TypeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			els := meitest.Elements(t, doc, tt.ids...)
			got, err := selection.Classify(tt.mode, els, adj, linkable)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify(%s, %v) = %s, want %s", tt.mode, tt.ids, got, tt.want)
			}
		})
	}
}

func TestClassifyUnknownMode(t *testing.T) {
	doc := meitest.Page(t)
	els := meitest.Elements(t, doc, "sy1")
	_, err := selection.Classify(selection.Mode(42), els, selection.DocumentAdjacency{Doc: doc}, nil)
	if !errors.Is(err, selection.ErrUnsupportedMode) {
		t.Errorf("Classify() error = %v, want ErrUnsupportedMode", err)
	}
}

func TestSelectionResolve(t *testing.T) {
	doc := meitest.Page(t)

	els, err := selection.Selection{Mode: selection.ModeNeume, IDs: []string{"n2", "n1"}}.Resolve(doc)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(els) != 2 || els[0].ID != "n2" || els[1].ID != "n1" {
		t.Errorf("Resolve() returned %v, want selection order preserved", els)
	}

	_, err = selection.Selection{Mode: selection.ModeNeume, IDs: []string{"n1", "missing"}}.Resolve(doc)
	if !errors.Is(err, mei.ErrUnknownElement) {
		t.Errorf("Resolve() error = %v, want ErrUnknownElement", err)
	}

	_, err = selection.Selection{Mode: selection.Mode(-1), IDs: []string{"n1"}}.Resolve(doc)
	if !errors.Is(err, selection.ErrUnsupportedMode) {
		t.Errorf("Resolve() error = %v, want ErrUnsupportedMode", err)
	}
}

func TestModeText(t *testing.T) {
	for _, name := range []string{"default", "selByStaff", "selBySyllable", "selByNeume", "selByNc", "selByBBox", "selByLayerElement"} {
		var m selection.Mode
		if err := m.UnmarshalText([]byte(name)); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", name, err)
		}
		if m.String() != name {
			t.Errorf("Mode %q round trip produced %q", name, m)
		}
	}
	if _, err := selection.ParseMode("selByPage"); !errors.Is(err, selection.ErrUnsupportedMode) {
		t.Errorf("ParseMode(selByPage) error = %v, want ErrUnsupportedMode", err)
	}
	if _, err := selection.Mode(17).MarshalText(); err == nil {
		t.Error("MarshalText() for unknown mode succeeded")
	}
}
