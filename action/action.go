// Package action describes editing operations as immutable values and
// composes them from user intents. Nothing here talks to the engine, composed
// actions are handed to the dispatcher.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Action is a single editing operation or a chain of them. Actions are values
// and are never modified after construction.
type Action interface {
	Kind() Kind
}

// Set assigns attribute value, empty value removes attribute.
type Set struct {
	ElementID string `json:"elementId"`
	AttrType  string `json:"attrType"`
	AttrValue string `json:"attrValue"`
}

// SetText replaces text of a syllable, creating syl element when necessary.
type SetText struct {
	ElementID string `json:"elementId"`
	Text      string `json:"text"`
}

// SetLiquescent changes curve of neume component.
type SetLiquescent struct {
	ElementID string `json:"elementId"`
	Curve     string `json:"curve"`
}

// SetClef changes clef shape.
type SetClef struct {
	ElementID string `json:"elementId"`
	Shape     string `json:"shape"`
}

// Remove deletes element and everything it contains.
type Remove struct {
	ElementID string `json:"elementId"`
}

// ChangeStaff moves element to the staff it visually belongs to.
type ChangeStaff struct {
	ElementID string `json:"elementId"`
}

// ChangeGroup regroups components of a neume according to contour.
type ChangeGroup struct {
	ElementID string `json:"elementId"`
	Contour   string `json:"contour"`
}

// DisplaceClefOctave moves clef an octave "above" or "below".
type DisplaceClefOctave struct {
	ElementID string `json:"elementId"`
	Direction string `json:"direction"`
}

// MatchHeight makes all syllable text boxes on the page as high as the
// selected one.
type MatchHeight struct {
	ElementID string `json:"elementId"`
}

// ResizeRotate changes element's facsimile zone.
type ResizeRotate struct {
	ElementID string  `json:"elementId"`
	Ulx       float64 `json:"ulx"`
	Uly       float64 `json:"uly"`
	Lrx       float64 `json:"lrx"`
	Lry       float64 `json:"lry"`
	Rotate    float64 `json:"rotate"`
}

// InsertToSyllable moves loose layer element into adjacent syllable.
type InsertToSyllable struct {
	ElementID string `json:"elementId"`
}

// MoveOutsideSyllable moves layer element out of its syllable.
type MoveOutsideSyllable struct {
	ElementID string `json:"elementId"`
}

// ToggleLigature joins or splits oblique of two neume components.
type ToggleLigature struct {
	ElementIDs []string `json:"elementIds"`
}

// Merge merges staves.
type Merge struct {
	ElementIDs []string `json:"elementIds"`
}

// Group puts elements into a single new container.
type Group struct {
	GroupType  GroupType `json:"groupType"`
	ElementIDs []string  `json:"elementIds"`
}

// Ungroup puts every element into its own container.
type Ungroup struct {
	GroupType  GroupType `json:"groupType"`
	ElementIDs []string  `json:"elementIds"`
}

// Chain is applied by the engine as a single all or nothing unit.
type Chain []Action

func (Set) Kind() Kind                 { return KindSet }
func (SetText) Kind() Kind             { return KindSetText }
func (SetLiquescent) Kind() Kind       { return KindSetLiquescent }
func (SetClef) Kind() Kind             { return KindSetClef }
func (Remove) Kind() Kind              { return KindRemove }
func (ChangeStaff) Kind() Kind         { return KindChangeStaff }
func (ChangeGroup) Kind() Kind         { return KindChangeGroup }
func (DisplaceClefOctave) Kind() Kind  { return KindDisplaceClefOctave }
func (MatchHeight) Kind() Kind         { return KindMatchHeight }
func (ResizeRotate) Kind() Kind        { return KindResizeRotate }
func (InsertToSyllable) Kind() Kind    { return KindInsertToSyllable }
func (MoveOutsideSyllable) Kind() Kind { return KindMoveOutsideSyllable }
func (ToggleLigature) Kind() Kind      { return KindToggleLigature }
func (Merge) Kind() Kind               { return KindMerge }
func (Group) Kind() Kind               { return KindGroup }
func (Ungroup) Kind() Kind             { return KindUngroup }
func (Chain) Kind() Kind               { return KindChain }

type envelope struct {
	Action string          `json:"action"`
	Param  json.RawMessage `json:"param"`
}

// Marshal encodes action into its wire form {"action": kind, "param": ...}.
func Marshal(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil action: %w", ErrUnknownAction)
	}
	var (
		param []byte
		err   error
	)
	if chain, ok := a.(Chain); ok {
		param, err = marshalChain(chain)
	} else {
		param, err = json.Marshal(a)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", a.Kind(), err)
	}
	return json.Marshal(envelope{Action: a.Kind().String(), Param: param})
}

func marshalChain(chain Chain) ([]byte, error) {
	items := make([]json.RawMessage, 0, len(chain))
	for _, a := range chain {
		data, err := Marshal(a)
		if err != nil {
			return nil, err
		}
		items = append(items, data)
	}
	return json.Marshal(items)
}

func decodeParam[T Action](param json.RawMessage) (Action, error) {
	var v T
	if err := json.Unmarshal(param, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var decoders = map[Kind]func(json.RawMessage) (Action, error){
	KindSet:                 decodeParam[Set],
	KindSetText:             decodeParam[SetText],
	KindSetLiquescent:       decodeParam[SetLiquescent],
	KindSetClef:             decodeParam[SetClef],
	KindRemove:              decodeParam[Remove],
	KindChangeStaff:         decodeParam[ChangeStaff],
	KindChangeGroup:         decodeParam[ChangeGroup],
	KindDisplaceClefOctave:  decodeParam[DisplaceClefOctave],
	KindMatchHeight:         decodeParam[MatchHeight],
	KindResizeRotate:        decodeParam[ResizeRotate],
	KindInsertToSyllable:    decodeParam[InsertToSyllable],
	KindMoveOutsideSyllable: decodeParam[MoveOutsideSyllable],
	KindToggleLigature:      decodeParam[ToggleLigature],
	KindMerge:               decodeParam[Merge],
	KindGroup:               decodeParam[Group],
	KindUngroup:             decodeParam[Ungroup],
}

// Unmarshal decodes action from its wire form. Unknown kinds are rejected
// with ErrUnknownAction, chains are decoded recursively.
func Unmarshal(data []byte) (Action, error) {
	var env envelope
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("unable to decode action: %w", err)
	}
	kind, err := ParseKind(env.Action)
	if err != nil {
		return nil, err
	}

	if kind == KindChain {
		var items []json.RawMessage
		if err := json.Unmarshal(env.Param, &items); err != nil {
			return nil, fmt.Errorf("unable to decode chain: %w", err)
		}
		chain := make(Chain, 0, len(items))
		for i, item := range items {
			a, err := Unmarshal(item)
			if err != nil {
				return nil, fmt.Errorf("chain item %d: %w", i, err)
			}
			chain = append(chain, a)
		}
		return chain, nil
	}

	a, err := decoders[kind](env.Param)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s parameters: %w", kind, err)
	}
	return a, nil
}

// Flatten returns atomic actions in the order engine applies them.
func Flatten(a Action) []Action {
	chain, ok := a.(Chain)
	if !ok {
		return []Action{a}
	}
	var res []Action
	for _, item := range chain {
		res = append(res, Flatten(item)...)
	}
	return res
}

// String returns wire form of the action for logs and reports.
func String(a Action) string {
	data, err := Marshal(a)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
