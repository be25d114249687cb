package action

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"neon/linkage"
	"neon/mei"
)

// Refusal is returned by composers when operation cannot be applied to the
// current selection. Nothing should be dispatched, non-empty message is
// shown to the user as a warning.
type Refusal struct {
	Message string
}

func (r *Refusal) Error() string {
	if r.Message == "" {
		return "operation refused"
	}
	return "operation refused: " + r.Message
}

func refuse(format string, args ...any) error {
	return &Refusal{Message: fmt.Sprintf(format, args...)}
}

func ids(elements []*mei.Element) []string {
	res := make([]string, 0, len(elements))
	for _, el := range elements {
		res = append(res, el.ID)
	}
	return res
}

func childIDs(elements []*mei.Element, keep func(*mei.Element) bool) []string {
	var res []string
	for _, el := range elements {
		if el.Kind == mei.KindDivLine || el.Kind == mei.KindAccid || el.Kind == mei.KindClef {
			continue
		}
		for _, ch := range el.Children {
			if keep == nil || keep(ch) {
				res = append(res, ch.ID)
			}
		}
	}
	return res
}

// Unlink clears linkage of every element. Syllable losing its @follows gets
// an empty text so it is not left without syl.
func Unlink(elements []*mei.Element) Chain {
	var chain Chain
	for _, el := range elements {
		if v, _ := el.Precedes(); v != "" {
			chain = append(chain, Set{ElementID: el.ID, AttrType: "precedes", AttrValue: ""})
		}
		if v, _ := el.Follows(); v != "" {
			chain = append(chain,
				Set{ElementID: el.ID, AttrType: "follows", AttrValue: ""},
				SetText{ElementID: el.ID, Text: ""},
			)
		}
	}
	return chain
}

// Link joins two syllables, the second one gives up its text.
func Link(first, second *mei.Element) Chain {
	chain := Chain{
		Set{ElementID: first.ID, AttrType: "precedes", AttrValue: mei.Ref(second.ID)},
		Set{ElementID: second.ID, AttrType: "follows", AttrValue: mei.Ref(first.ID)},
	}
	if syl := second.Syl(); syl != nil {
		chain = append(chain, Remove{ElementID: syl.ID})
	}
	return chain
}

// ToggleLink unlinks already linked syllables or links the pair selected by
// linkage.ToggleEndpoints. When no pair could be found
// linkage.ErrNoToggleEndpoints is returned and nothing should be dispatched.
func ToggleLink(elements []*mei.Element) (Chain, error) {
	if linkage.IsLinked(elements) {
		return Unlink(elements), nil
	}
	first, second, err := linkage.ToggleEndpoints(elements)
	if err != nil {
		return nil, err
	}
	return Link(first, second), nil
}

// Grouping makes group or ungroup action carrying its arguments verbatim.
func Grouping(kind Kind, groupType GroupType, elementIDs []string) (Action, error) {
	if !groupType.Valid() {
		return nil, fmt.Errorf("group type %q: %w", groupType, ErrUnknownAction)
	}
	if len(elementIDs) == 0 {
		return nil, &Refusal{}
	}
	switch kind {
	case KindGroup:
		return Group{GroupType: groupType, ElementIDs: slices.Clone(elementIDs)}, nil
	case KindUngroup:
		return Ungroup{GroupType: groupType, ElementIDs: slices.Clone(elementIDs)}, nil
	}
	return nil, fmt.Errorf("%s is not a grouping action: %w", kind, ErrUnknownAction)
}

// MergeStaves merges selected staves.
func MergeStaves(staves []*mei.Element) Action {
	return Merge{ElementIDs: ids(staves)}
}

// RemoveElements removes selection. Selected text removes its syllable.
func RemoveElements(elements []*mei.Element) Chain {
	var (
		chain Chain
		seen  = make(map[string]bool)
	)
	for _, el := range elements {
		if el.Kind == mei.KindSyl {
			if syllable := el.Closest(mei.KindSyllable); syllable != nil {
				el = syllable
			}
		}
		if seen[el.ID] {
			continue
		}
		seen[el.ID] = true
		chain = append(chain, Remove{ElementID: el.ID})
	}
	return chain
}

func perElement(elements []*mei.Element, mk func(id string) Action) Chain {
	chain := make(Chain, 0, len(elements))
	for _, el := range elements {
		chain = append(chain, mk(el.ID))
	}
	return chain
}

// ChangeStaffOf reassigns elements to staves they are drawn on.
func ChangeStaffOf(elements []*mei.Element) Chain {
	return perElement(elements, func(id string) Action { return ChangeStaff{ElementID: id} })
}

// InsertIntoSyllable moves loose elements into syllables.
func InsertIntoSyllable(elements []*mei.Element) Chain {
	return perElement(elements, func(id string) Action { return InsertToSyllable{ElementID: id} })
}

// MoveOutOfSyllable moves elements out of their syllables.
func MoveOutOfSyllable(elements []*mei.Element) Chain {
	return perElement(elements, func(id string) Action { return MoveOutsideSyllable{ElementID: id} })
}

// MatchHeightOf uses single selected bounding box as height reference.
func MatchHeightOf(elements []*mei.Element) (Action, error) {
	if len(elements) != 1 {
		return nil, refuse("Cannot match height to multiple bbox")
	}
	return MatchHeight{ElementID: elements[0].ID}, nil
}

// ToggleLigatureOf joins or splits two neume components.
func ToggleLigatureOf(ncs []*mei.Element) Action {
	return ToggleLigature{ElementIDs: ids(ncs)}
}

// ChangeGroupOf regroups single neume to named contour.
func ChangeGroupOf(neume *mei.Element, name string) (Action, error) {
	contour, ok := ContourByName(name)
	if !ok {
		return nil, refuse("Unknown neume contour %q", name)
	}
	return ChangeGroup{ElementID: neume.ID, Contour: contour}, nil
}

// Shape of a single neume component.
type Shape string

const (
	ShapePunctum                 Shape = "Punctum"
	ShapeInclinatum              Shape = "Inclinatum"
	ShapeVirga                   Shape = "Virga"
	ShapeVirgaReversed           Shape = "VirgaReversed"
	ShapeLiquescentClockwise     Shape = "LiquescentClockwise"
	ShapeLiquescentAnticlockwise Shape = "LiquescentAnticlockwise"
)

// Shapes lists known component shapes.
var Shapes = []Shape{
	ShapePunctum, ShapeInclinatum, ShapeVirga, ShapeVirgaReversed,
	ShapeLiquescentClockwise, ShapeLiquescentAnticlockwise,
}

// NcShape changes shape of neume component. Attributes of all other shapes
// are cleared first, so shape change is a single chain.
func NcShape(id string, shape Shape) (Chain, error) {
	unset := map[Shape]Action{
		ShapeInclinatum:              Set{ElementID: id, AttrType: "tilt"},
		ShapeVirga:                   Set{ElementID: id, AttrType: "tilt"},
		ShapeVirgaReversed:           Set{ElementID: id, AttrType: "tilt"},
		ShapeLiquescentClockwise:     Set{ElementID: id, AttrType: "curve"},
		ShapeLiquescentAnticlockwise: SetLiquescent{ElementID: id},
	}
	set := map[Shape]Action{
		ShapeInclinatum:              Set{ElementID: id, AttrType: "tilt", AttrValue: "se"},
		ShapeVirga:                   Set{ElementID: id, AttrType: "tilt", AttrValue: "s"},
		ShapeVirgaReversed:           Set{ElementID: id, AttrType: "tilt", AttrValue: "n"},
		ShapeLiquescentClockwise:     SetLiquescent{ElementID: id, Curve: "c"},
		ShapeLiquescentAnticlockwise: SetLiquescent{ElementID: id, Curve: "a"},
	}
	if !slices.Contains(Shapes, shape) {
		return nil, refuse("Unknown shape %q", shape)
	}

	var chain Chain
	for _, s := range Shapes[1:] {
		if s != shape {
			chain = append(chain, unset[s])
		}
	}
	if a, ok := set[shape]; ok {
		chain = append(chain, a)
	}
	return chain, nil
}

// choice validates argument against the list of allowed values.
func choice(what, arg string, allowed ...string) error {
	if !slices.Contains(allowed, arg) {
		return refuse("Unknown %s %q", what, arg)
	}
	return nil
}

// AccidType changes accidental to flat ("f") or natural ("n").
func AccidType(id, accid string) (Action, error) {
	if err := choice("accidental", accid, "f", "n"); err != nil {
		return nil, err
	}
	return Set{ElementID: id, AttrType: "accid", AttrValue: accid}, nil
}

// DivLineForms lists known division line forms.
var DivLineForms = []string{"minima", "maior", "maxima", "finalis", "caesura", "virgula"}

// DivLineForm changes form of division line.
func DivLineForm(id, form string) (Action, error) {
	if err := choice("division line form", form, DivLineForms...); err != nil {
		return nil, err
	}
	return Set{ElementID: id, AttrType: "form", AttrValue: form}, nil
}

// ClefShape changes clef to C or F clef.
func ClefShape(id, shape string) (Action, error) {
	if err := choice("clef shape", shape, "C", "F"); err != nil {
		return nil, err
	}
	return SetClef{ElementID: id, Shape: shape}, nil
}

// ClefOctave displaces clef an octave "above" or "below".
func ClefOctave(id, direction string) (Action, error) {
	if err := choice("direction", direction, "above", "below"); err != nil {
		return nil, err
	}
	return DisplaceClefOctave{ElementID: id, Direction: direction}, nil
}

const (
	MinColumn = 1
	MaxColumn = 5
)

// SetColumn assigns column number to staves, value is clamped to the
// supported range.
func SetColumn(staves []*mei.Element, column int) Chain {
	column = min(max(column, MinColumn), MaxColumn)
	value := "column" + strconv.Itoa(column)
	return perElement(staves, func(id string) Action {
		return Set{ElementID: id, AttrType: "type", AttrValue: value}
	})
}

// ResetRotate straightens rotated staff keeping its center line in place.
func ResetRotate(doc *mei.Document, staff *mei.Element) (Action, error) {
	zone, ok := doc.Zone(staff.Facs())
	if !ok {
		return nil, refuse("Staff %s has no facsimile zone", staff.ID)
	}
	dy := math.Tan(zone.Rotate*math.Pi/180) * (zone.Lrx - zone.Ulx)
	res := ResizeRotate{ElementID: staff.ID, Ulx: zone.Ulx, Lrx: zone.Lrx}
	if zone.Rotate > 0 {
		res.Uly, res.Lry = zone.Uly+dy/2, zone.Lry-dy/2
	} else {
		res.Uly, res.Lry = zone.Uly-dy/2, zone.Lry+dy/2
	}
	return res, nil
}
