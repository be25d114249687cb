package action_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"neon/action"
	"neon/linkage"
	"neon/mei/meitest"
)

func TestToggleLinkLinks(t *testing.T) {
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="a"><neume xml:id="na"/></syllable>`,
		`<syllable xml:id="b"><neume xml:id="nb"/></syllable>`,
	))

	chain, err := action.ToggleLink(meitest.Elements(t, doc, "b", "a"))
	if err != nil {
		t.Fatalf("ToggleLink() error = %v", err)
	}
	want := action.Chain{
		action.Set{ElementID: "a", AttrType: "precedes", AttrValue: "#b"},
		action.Set{ElementID: "b", AttrType: "follows", AttrValue: "#a"},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("ToggleLink() = %v, want %v", chain, want)
	}
}

func TestToggleLinkRemovesText(t *testing.T) {
	doc := meitest.Page(t)

	chain, err := action.ToggleLink(meitest.Elements(t, doc, "sy5", "sy6"))
	if err != nil {
		t.Fatalf("ToggleLink() error = %v", err)
	}
	want := action.Chain{
		action.Set{ElementID: "sy5", AttrType: "precedes", AttrValue: "#sy6"},
		action.Set{ElementID: "sy6", AttrType: "follows", AttrValue: "#sy5"},
		action.Remove{ElementID: "syl6"},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("ToggleLink() = %v, want %v", chain, want)
	}
}

func TestToggleLinkUnlinks(t *testing.T) {
	doc := meitest.Page(t)

	chain, err := action.ToggleLink(meitest.Elements(t, doc, "sy3", "sy4"))
	if err != nil {
		t.Fatalf("ToggleLink() error = %v", err)
	}
	want := action.Chain{
		action.Set{ElementID: "sy3", AttrType: "precedes", AttrValue: ""},
		action.Set{ElementID: "sy4", AttrType: "follows", AttrValue: ""},
		action.SetText{ElementID: "sy4", Text: ""},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("ToggleLink() = %v, want %v", chain, want)
	}
}

func TestToggleLinkNoEndpoints(t *testing.T) {
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="p" precedes="#a"/>`,
		`<syllable xml:id="a" follows="#p"/>`,
		`<syllable xml:id="b"/>`,
		`<syllable xml:id="c" precedes="#q"/>`,
		`<syllable xml:id="q" follows="#c"/>`,
	))
	chain, err := action.ToggleLink(meitest.Elements(t, doc, "a", "b", "c"))
	if !errors.Is(err, linkage.ErrNoToggleEndpoints) {
		t.Fatalf("ToggleLink() error = %v, want ErrNoToggleEndpoints", err)
	}
	if chain != nil {
		t.Errorf("ToggleLink() returned chain %v with error", chain)
	}
}

func TestGrouping(t *testing.T) {
	ids := []string{"nc2", "nc1"}
	a, err := action.Grouping(action.KindGroup, action.GroupNC, ids)
	if err != nil {
		t.Fatalf("Grouping() error = %v", err)
	}
	want := action.Group{GroupType: action.GroupNC, ElementIDs: []string{"nc2", "nc1"}}
	if !reflect.DeepEqual(a, action.Action(want)) {
		t.Errorf("Grouping() = %v, want %v", a, want)
	}

	a, err = action.Grouping(action.KindUngroup, action.GroupNeume, []string{"n1"})
	if err != nil {
		t.Fatalf("Grouping() error = %v", err)
	}
	if _, ok := a.(action.Ungroup); !ok {
		t.Errorf("Grouping(ungroup) returned %T", a)
	}

	if _, err := action.Grouping(action.KindGroup, "syllable", ids); !errors.Is(err, action.ErrUnknownAction) {
		t.Errorf("Grouping() with bad group type error = %v", err)
	}
	if _, err := action.Grouping(action.KindMerge, action.GroupNC, ids); !errors.Is(err, action.ErrUnknownAction) {
		t.Errorf("Grouping(merge) error = %v", err)
	}
	var refusal *action.Refusal
	if _, err := action.Grouping(action.KindGroup, action.GroupNC, nil); !errors.As(err, &refusal) {
		t.Errorf("Grouping() without ids error = %v, want refusal", err)
	}
}

func TestRemoveElements(t *testing.T) {
	doc := meitest.Page(t)
	chain := action.RemoveElements(meitest.Elements(t, doc, "syl1", "sy1", "nc3", "dl1"))
	want := action.Chain{
		action.Remove{ElementID: "sy1"},
		action.Remove{ElementID: "nc3"},
		action.Remove{ElementID: "dl1"},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("RemoveElements() = %v, want %v", chain, want)
	}
}

func TestNcShape(t *testing.T) {
	chain, err := action.NcShape("nc1", action.ShapeInclinatum)
	if err != nil {
		t.Fatalf("NcShape() error = %v", err)
	}
	want := action.Chain{
		action.Set{ElementID: "nc1", AttrType: "tilt"},
		action.Set{ElementID: "nc1", AttrType: "tilt"},
		action.Set{ElementID: "nc1", AttrType: "curve"},
		action.SetLiquescent{ElementID: "nc1"},
		action.Set{ElementID: "nc1", AttrType: "tilt", AttrValue: "se"},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("NcShape(Inclinatum) = %v, want %v", chain, want)
	}

	chain, err = action.NcShape("nc1", action.ShapePunctum)
	if err != nil {
		t.Fatalf("NcShape() error = %v", err)
	}
	if len(chain) != 5 {
		t.Errorf("NcShape(Punctum) produced %d actions, want 5", len(chain))
	}

	var refusal *action.Refusal
	if _, err := action.NcShape("nc1", "Quilisma"); !errors.As(err, &refusal) {
		t.Errorf("NcShape(Quilisma) error = %v, want refusal", err)
	}
}

func TestLayerElementShapes(t *testing.T) {
	var refusal *action.Refusal

	if a, err := action.AccidType("a1", "f"); err != nil || a != (action.Set{ElementID: "a1", AttrType: "accid", AttrValue: "f"}) {
		t.Errorf("AccidType(f) = %v, %v", a, err)
	}
	if _, err := action.AccidType("a1", "s"); !errors.As(err, &refusal) {
		t.Errorf("AccidType(s) error = %v, want refusal", err)
	}
	for _, form := range action.DivLineForms {
		if _, err := action.DivLineForm("dl1", form); err != nil {
			t.Errorf("DivLineForm(%s) error = %v", form, err)
		}
	}
	if a, err := action.ClefShape("c1", "F"); err != nil || a != (action.SetClef{ElementID: "c1", Shape: "F"}) {
		t.Errorf("ClefShape(F) = %v, %v", a, err)
	}
	if _, err := action.ClefOctave("c1", "sideways"); !errors.As(err, &refusal) {
		t.Errorf("ClefOctave(sideways) error = %v, want refusal", err)
	}
}

func TestSetColumnClamps(t *testing.T) {
	doc := meitest.Page(t)
	staves := meitest.Elements(t, doc, "s1", "s3")

	tests := []struct {
		column int
		want   string
	}{
		{0, "column1"},
		{3, "column3"},
		{9, "column5"},
	}
	for _, tt := range tests {
		chain := action.SetColumn(staves, tt.column)
		if len(chain) != 2 {
			t.Fatalf("SetColumn() produced %d actions, want 2", len(chain))
		}
		for i, a := range chain {
			set := a.(action.Set)
			if set.ElementID != staves[i].ID || set.AttrType != "type" || set.AttrValue != tt.want {
				t.Errorf("SetColumn(%d)[%d] = %v, want type=%s", tt.column, i, set, tt.want)
			}
		}
	}
}

func TestResetRotate(t *testing.T) {
	doc := meitest.Page(t)

	a, err := action.ResetRotate(doc, doc.ByID("s2"))
	if err != nil {
		t.Fatalf("ResetRotate() error = %v", err)
	}
	rr := a.(action.ResizeRotate)
	dy := math.Tan(0.02*math.Pi/180) * 1800
	if rr.Ulx != 100 || rr.Lrx != 1900 || rr.Rotate != 0 {
		t.Errorf("ResetRotate() = %+v", rr)
	}
	if math.Abs(rr.Uly-(500+dy/2)) > 1e-9 || math.Abs(rr.Lry-(700-dy/2)) > 1e-9 {
		t.Errorf("ResetRotate() uly=%f lry=%f, want %f %f", rr.Uly, rr.Lry, 500+dy/2, 700-dy/2)
	}

	noZone := meitest.Parse(t, meitest.Staves(`<syllable xml:id="a"/>`))
	var refusal *action.Refusal
	if _, err := action.ResetRotate(noZone, noZone.ByID("s1")); !errors.As(err, &refusal) {
		t.Errorf("ResetRotate() without zone error = %v, want refusal", err)
	}
}

func TestMatchHeightOf(t *testing.T) {
	doc := meitest.Page(t)
	if _, err := action.MatchHeightOf(meitest.Elements(t, doc, "syl1", "syl2")); err == nil {
		t.Error("MatchHeightOf() with two boxes succeeded")
	}
	a, err := action.MatchHeightOf(meitest.Elements(t, doc, "syl1"))
	if err != nil || a != (action.MatchHeight{ElementID: "syl1"}) {
		t.Errorf("MatchHeightOf() = %v, %v", a, err)
	}
}

func TestContours(t *testing.T) {
	doc := meitest.Page(t)

	tests := []struct {
		ids  []string
		name string
		ok   bool
	}{
		{[]string{"nc1", "nc2"}, "Pes", true},
		{[]string{"nc6", "nc7"}, "Clivis", true},
		{[]string{"nc3"}, "Punctum", true},
		{[]string{"nc1", "nc2", "nc3", "nc4"}, "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		name, ok := action.NeumeName(meitest.Elements(t, doc, tt.ids...))
		if name != tt.name || ok != tt.ok {
			t.Errorf("NeumeName(%v) = %q, %v, want %q, %v", tt.ids, name, ok, tt.name, tt.ok)
		}
	}

	noPitch := meitest.Parse(t, meitest.Staves(`<syllable xml:id="sx"><neume xml:id="nx"><nc xml:id="x" pname="c"/><nc xml:id="y" pname="d" oct="3"/></neume></syllable>`))
	if _, ok := action.ContourOf(meitest.Elements(t, noPitch, "x", "y")); ok {
		t.Error("ContourOf() succeeded for component without octave")
	}

	names := action.ContourNames()
	if len(names) != len(action.Contours) || names[0] != "Climacus" {
		t.Errorf("ContourNames() = %v", names)
	}
}
