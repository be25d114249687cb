package action_test

import (
	"errors"
	"reflect"
	"testing"

	"neon/action"
	"neon/mei"
	"neon/mei/meitest"
)

func TestPageCleanups(t *testing.T) {
	doc := meitest.Page(t)

	tests := []struct {
		name string
		fix  func(*mei.Document) (action.Chain, error)
		want action.Chain
	}{
		{"empty syllables", action.RemoveEmptySyllables, action.Chain{action.Remove{ElementID: "sy7"}}},
		{"empty neumes", action.RemoveEmptyNeumes, action.Chain{action.Remove{ElementID: "n7"}}},
		{"out of bounds", action.RemoveOutOfBounds, action.Chain{action.Remove{ElementID: "nc7"}, action.Remove{ElementID: "dl1"}}},
		{"obliques", action.UntoggleInvalidObliques, action.Chain{action.Set{ElementID: "nc6", AttrType: "ligated", AttrValue: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := tt.fix(doc)
			if err != nil {
				t.Fatalf("fix error = %v", err)
			}
			if !reflect.DeepEqual(chain, tt.want) {
				t.Errorf("fix = %s, want %s", action.String(chain), action.String(tt.want))
			}
		})
	}
}

func TestPageCleanupsNothingFound(t *testing.T) {
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="a"><syl xml:id="sa">a</syl><neume xml:id="na"><nc xml:id="x" ligated="true"/><nc xml:id="y" ligated="true"/></neume></syllable>`,
	))

	fixes := map[string]func(*mei.Document) (action.Chain, error){
		"No empty syllables found":       action.RemoveEmptySyllables,
		"No empty Neumes found":          action.RemoveEmptyNeumes,
		"Page has no surface dimensions": action.RemoveOutOfBounds,
		"No invalid obliques found":      action.UntoggleInvalidObliques,
		"No invalid syllables found":     action.UntoggleInvalidSyllables,
	}
	for message, fix := range fixes {
		chain, err := fix(doc)
		var refusal *action.Refusal
		if !errors.As(err, &refusal) || refusal.Message != message {
			t.Errorf("fix error = %v, want refusal %q", err, message)
		}
		if chain != nil {
			t.Errorf("fix returned chain %v with refusal", chain)
		}
	}
}

func TestInvalidObliquePairs(t *testing.T) {
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="a"><neume xml:id="na">`+
			`<nc xml:id="x1" ligated="true"/><nc xml:id="x2" ligated="true"/>`+
			`<nc xml:id="x3" ligated="true"/><nc xml:id="x4"/>`+
			`<nc xml:id="x5" ligated="false"/><nc xml:id="x6" ligated="true"/>`+
			`</neume></syllable>`,
	))
	var got []string
	for _, nc := range action.InvalidObliques(doc) {
		got = append(got, nc.ID)
	}
	if want := []string{"x3", "x6"}; !reflect.DeepEqual(got, want) {
		t.Errorf("InvalidObliques() = %v, want %v", got, want)
	}
}

func TestUntoggleInvalidSyllables(t *testing.T) {
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="x" precedes="#y"><syl xml:id="sx">x</syl></syllable>`,
		`<syllable xml:id="y"/>`,
		`<syllable xml:id="z" follows="#nowhere"/>`,
	))

	chain, err := action.UntoggleInvalidSyllables(doc)
	if err != nil {
		t.Fatalf("UntoggleInvalidSyllables() error = %v", err)
	}
	want := action.Chain{
		action.Set{ElementID: "x", AttrType: "precedes", AttrValue: ""},
		action.Set{ElementID: "z", AttrType: "follows", AttrValue: ""},
		action.SetText{ElementID: "z", Text: ""},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("UntoggleInvalidSyllables() = %s\nwant %s", action.String(chain), action.String(want))
	}
}

func TestUntoggleInvalidSyllablesKeepsOtherPair(t *testing.T) {
	// a points at b which belongs to valid pair c-b
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="a" precedes="#b"><syl xml:id="sa">a</syl></syllable>`,
		`<syllable xml:id="c" precedes="#b"><syl xml:id="sc">c</syl></syllable>`,
		`<syllable xml:id="b" follows="#c"><syl xml:id="sb">b</syl></syllable>`,
	))

	chain, err := action.UntoggleInvalidSyllables(doc)
	if err != nil {
		t.Fatalf("UntoggleInvalidSyllables() error = %v", err)
	}
	want := action.Chain{
		action.Set{ElementID: "a", AttrType: "precedes", AttrValue: ""},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("UntoggleInvalidSyllables() = %s\nwant %s", action.String(chain), action.String(want))
	}
}

func TestUntoggleInvalidSyllablesDeduplicates(t *testing.T) {
	// both syllables are invalid since they are not neighbours, each pointer
	// must be cleared once
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="x" precedes="#z"><syl xml:id="sx">x</syl></syllable>`,
		`<syllable xml:id="y"><syl xml:id="sy">y</syl></syllable>`,
		`<syllable xml:id="z" follows="#x"/>`,
	))

	chain, err := action.UntoggleInvalidSyllables(doc)
	if err != nil {
		t.Fatalf("UntoggleInvalidSyllables() error = %v", err)
	}
	want := action.Chain{
		action.Set{ElementID: "x", AttrType: "precedes", AttrValue: ""},
		action.Set{ElementID: "z", AttrType: "follows", AttrValue: ""},
		action.SetText{ElementID: "z", Text: ""},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("UntoggleInvalidSyllables() = %s\nwant %s", action.String(chain), action.String(want))
	}
}
