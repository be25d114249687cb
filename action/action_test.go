package action_test

import (
	"errors"
	"reflect"
	"testing"

	"neon/action"
)

func TestMarshalWireForm(t *testing.T) {
	tests := []struct {
		name string
		a    action.Action
		want string
	}{
		{
			"set with empty value",
			action.Set{ElementID: "sy1", AttrType: "precedes", AttrValue: ""},
			`{"action":"set","param":{"elementId":"sy1","attrType":"precedes","attrValue":""}}`,
		},
		{
			"group",
			action.Group{GroupType: action.GroupNC, ElementIDs: []string{"nc1", "nc2"}},
			`{"action":"group","param":{"groupType":"nc","elementIds":["nc1","nc2"]}}`,
		},
		{
			"chain",
			action.Chain{action.Remove{ElementID: "syl4"}, action.SetText{ElementID: "sy4", Text: ""}},
			`{"action":"chain","param":[{"action":"remove","param":{"elementId":"syl4"}},{"action":"setText","param":{"elementId":"sy4","text":""}}]}`,
		},
		{
			"empty chain",
			action.Chain{},
			`{"action":"chain","param":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := action.Marshal(tt.a)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s\nwant %s", data, tt.want)
			}
		})
	}
}

func TestUnmarshalNestedChain(t *testing.T) {
	want := action.Chain{
		action.Set{ElementID: "sy5", AttrType: "precedes", AttrValue: "#sy6"},
		action.Chain{
			action.ResizeRotate{ElementID: "s2", Ulx: 1, Uly: 2, Lrx: 3, Lry: 4},
			action.Ungroup{GroupType: action.GroupNeume, ElementIDs: []string{"n1"}},
		},
		action.DisplaceClefOctave{ElementID: "c1", Direction: "above"},
	}
	data, err := action.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := action.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(got, action.Action(want)) {
		t.Errorf("Unmarshal() = %#v, want %#v", got, want)
	}
	if n := len(action.Flatten(got)); n != 4 {
		t.Errorf("Flatten() returned %d actions, want 4", n)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		unknown bool
	}{
		{"unknown kind", `{"action":"explode","param":{}}`, true},
		{"unknown kind in chain", `{"action":"chain","param":[{"action":"remove","param":{"elementId":"a"}},{"action":"split","param":{}}]}`, true},
		{"broken json", `{"action":`, false},
		{"chain with object param", `{"action":"chain","param":{}}`, false},
		{"missing param", `{"action":"remove"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := action.Unmarshal([]byte(tt.data))
			if err == nil {
				t.Fatal("Unmarshal() succeeded, want error")
			}
			if got := errors.Is(err, action.ErrUnknownAction); got != tt.unknown {
				t.Errorf("errors.Is(%v, ErrUnknownAction) = %v, want %v", err, got, tt.unknown)
			}
		})
	}
}

func TestKindText(t *testing.T) {
	for _, name := range []string{"set", "setText", "setLiquescent", "setClef", "remove", "changeStaff", "changeGroup",
		"displaceClefOctave", "matchHeight", "resizeRotate", "insertToSyllable", "moveOutsideSyllable",
		"toggleLigature", "merge", "group", "ungroup", "chain"} {
		k, err := action.ParseKind(name)
		if err != nil {
			t.Fatalf("ParseKind(%q) error = %v", name, err)
		}
		if k.String() != name {
			t.Errorf("ParseKind(%q).String() = %q", name, k)
		}
	}
}
