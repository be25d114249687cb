package action

import (
	"errors"
	"fmt"
	"strconv"

	"neon/linkage"
	"neon/mei"
	"neon/selection"
)

// Intent is a user request made through menu, button or key press.
type Intent int

const (
	IntentGroupKey Intent = iota
	IntentToggleLink
	IntentMergeSyllables
	IntentUngroupNeumes
	IntentGroupNeumes
	IntentGroupNcs
	IntentUngroupNcs
	IntentToggleLigature
	IntentMergeStaves
	IntentRemove
	IntentChangeStaff
	IntentInsertToSyllable
	IntentMoveOutsideSyllable
	IntentMatchHeight
	IntentSetColumn
	IntentResetRotate
	IntentChangeGroup
	IntentNcShape
	IntentAccid
	IntentDivLine
	IntentClefShape
	IntentClefOctave
	IntentRemoveEmptySyllables
	IntentRemoveEmptyNeumes
	IntentRemoveOutOfBounds
	IntentUntoggleInvalidObliques
	IntentUntoggleInvalidSyllables
)

// ErrUnknownIntent is returned for intents which are not known or not
// available in the current selection mode.
var ErrUnknownIntent = errors.New("unknown intent")

var intentNames = map[Intent]string{
	IntentGroupKey:                 "g",
	IntentToggleLink:               "toggleLink",
	IntentMergeSyllables:           "mergeSyls",
	IntentUngroupNeumes:            "ungroupNeumes",
	IntentGroupNeumes:              "groupNeumes",
	IntentGroupNcs:                 "groupNcs",
	IntentUngroupNcs:               "ungroupNcs",
	IntentToggleLigature:           "toggleLigature",
	IntentMergeStaves:              "mergeStaves",
	IntentRemove:                   "remove",
	IntentChangeStaff:              "changeStaff",
	IntentInsertToSyllable:         "insertToSyllable",
	IntentMoveOutsideSyllable:      "moveOutsideSyllable",
	IntentMatchHeight:              "matchHeight",
	IntentSetColumn:                "setColumn",
	IntentResetRotate:              "resetRotate",
	IntentChangeGroup:              "changeGroup",
	IntentNcShape:                  "ncShape",
	IntentAccid:                    "accid",
	IntentDivLine:                  "divLine",
	IntentClefShape:                "clefShape",
	IntentClefOctave:               "clefOctave",
	IntentRemoveEmptySyllables:     "removeEmptySyllables",
	IntentRemoveEmptyNeumes:        "removeEmptyNeumes",
	IntentRemoveOutOfBounds:        "removeOutOfBounds",
	IntentUntoggleInvalidObliques:  "untoggleInvalidObliques",
	IntentUntoggleInvalidSyllables: "untoggleInvalidSyllables",
}

var intentValues = func() map[string]Intent {
	m := make(map[string]Intent, len(intentNames))
	for k, v := range intentNames {
		m[v] = k
	}
	return m
}()

// String implements the Stringer interface.
func (x Intent) String() string {
	if str, ok := intentNames[x]; ok {
		return str
	}
	return fmt.Sprintf("Intent(%d)", int(x))
}

// ParseIntent converts wire name to Intent.
func ParseIntent(name string) (Intent, error) {
	if x, ok := intentValues[name]; ok {
		return x, nil
	}
	return IntentGroupKey, fmt.Errorf("%q: %w", name, ErrUnknownIntent)
}

// MarshalText implements the text marshaller method.
func (x Intent) MarshalText() ([]byte, error) {
	if _, ok := intentNames[x]; !ok {
		return nil, fmt.Errorf("%s: %w", x, ErrUnknownIntent)
	}
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *Intent) UnmarshalText(text []byte) error {
	i, err := ParseIntent(string(text))
	if err != nil {
		return err
	}
	*x = i
	return nil
}

// PageWide reports if intent works on the whole page ignoring selection.
func (x Intent) PageWide() bool {
	return x >= IntentRemoveEmptySyllables && x <= IntentUntoggleInvalidSyllables
}

// UnrecognizedContourWarning is shown when grouping produced a neume of
// unknown shape.
const UnrecognizedContourWarning = "The resulting neume grouping is not recognized, please check the contour"

// Input is everything composers look at. Elements are resolved selection in
// selection order.
type Input struct {
	Doc       *mei.Document
	Mode      selection.Mode
	Elements  []*mei.Element
	Adjacency selection.Adjacency
	// Arg carries intent argument: column number, contour or shape name.
	Arg string
}

func (in Input) adjacency() selection.Adjacency {
	if in.Adjacency != nil {
		return in.Adjacency
	}
	return selection.DocumentAdjacency{Doc: in.Doc}
}

// Plan is composed action ready for dispatch.
type Plan struct {
	Intent  Intent
	Action  Action
	Success string
	Failure string
	// ContourNC is set for nc grouping: after successful edit neume holding
	// this component should be checked for known contour.
	ContourNC string
}

// Composer turns intent input into plan. Composers are pure.
type Composer func(in Input) (Plan, error)

// Key addresses composer in the intent table.
type Key struct {
	Mode   selection.Mode
	Intent Intent
}

// Intents is the table of everything user can ask for.
var Intents = buildIntents()

// Compose finds composer for the intent and runs it.
func Compose(intent Intent, in Input) (Plan, error) {
	compose, ok := Intents[Key{Mode: in.Mode, Intent: intent}]
	if !ok {
		if !in.Mode.IsValid() {
			return Plan{}, fmt.Errorf("%s: %w", in.Mode, selection.ErrUnsupportedMode)
		}
		return Plan{}, fmt.Errorf("%s is not available for %s: %w", intent, in.Mode, ErrUnknownIntent)
	}
	plan, err := compose(in)
	if err != nil {
		return Plan{}, err
	}
	plan.Intent = intent
	return plan, nil
}

var allModes = []selection.Mode{
	selection.ModeDefault, selection.ModeStaff, selection.ModeSyllable, selection.ModeNeume,
	selection.ModeNc, selection.ModeBBox, selection.ModeLayerElement,
}

func buildIntents() map[Key]Composer {
	t := make(map[Key]Composer)
	add := func(intent Intent, c Composer, modes ...selection.Mode) {
		for _, m := range modes {
			t[Key{Mode: m, Intent: intent}] = c
		}
	}

	add(IntentGroupKey, groupKeySyllable, selection.ModeSyllable)
	add(IntentGroupKey, groupKeyNeume, selection.ModeNeume)
	add(IntentGroupKey, groupKeyNc, selection.ModeNc)
	add(IntentGroupKey, groupKeyStaff, selection.ModeStaff)
	add(IntentGroupKey, groupKeyUnsupported, selection.ModeDefault, selection.ModeBBox, selection.ModeLayerElement)

	add(IntentToggleLink, toggleLink, selection.ModeSyllable)
	add(IntentMergeSyllables, mergeSyllables, selection.ModeSyllable)
	add(IntentUngroupNeumes, ungroupNeumes, selection.ModeSyllable)
	add(IntentGroupNeumes, groupNeumes, selection.ModeNeume)
	add(IntentUngroupNcs, ungroupNcs, selection.ModeNeume)
	add(IntentChangeGroup, changeGroup, selection.ModeNeume)
	add(IntentGroupNcs, groupNcs, selection.ModeNc)
	add(IntentToggleLigature, toggleLigature, selection.ModeNc)
	add(IntentNcShape, ncShape, selection.ModeNc)
	add(IntentMergeStaves, mergeStaves, selection.ModeStaff)
	add(IntentSetColumn, setColumn, selection.ModeStaff)
	add(IntentResetRotate, resetRotate, selection.ModeStaff)
	add(IntentMatchHeight, matchHeight, selection.ModeBBox)
	add(IntentChangeStaff, changeStaff, selection.ModeSyllable, selection.ModeDefault)
	add(IntentAccid, accid, selection.ModeLayerElement)
	add(IntentDivLine, divLine, selection.ModeLayerElement)
	add(IntentClefShape, clefShape, selection.ModeLayerElement)
	add(IntentClefOctave, clefOctave, selection.ModeLayerElement)
	add(IntentInsertToSyllable, insertToSyllable, selection.ModeLayerElement)
	add(IntentMoveOutsideSyllable, moveOutsideSyllable, selection.ModeLayerElement)
	add(IntentRemove, remove, allModes...)

	add(IntentRemoveEmptySyllables, pageWide(RemoveEmptySyllables, "Removed empty Syllables", "Failed to remove empty Syllables"), allModes...)
	add(IntentRemoveEmptyNeumes, pageWide(RemoveEmptyNeumes, "Removed empty Neumes", "Failed to remove empty Neumes"), allModes...)
	add(IntentRemoveOutOfBounds, pageWide(RemoveOutOfBounds, "Successfully removed out-of-bounds glyphs.", "Failed to remove out-of-bound glyphs."), allModes...)
	add(IntentUntoggleInvalidObliques, pageWide(UntoggleInvalidObliques, "Untoggled invalid obliques", "Failed to untoggle invalid obliques"), allModes...)
	add(IntentUntoggleInvalidSyllables, pageWide(UntoggleInvalidSyllables, "Untoggled invalid syllables", "Failed to untoggle invalid syllables"), allModes...)
	return t
}

func plan(a Action, success, failure string) Plan {
	return Plan{Action: a, Success: success, Failure: failure}
}

func nonEmpty(in Input) error {
	if len(in.Elements) == 0 {
		return &Refusal{}
	}
	return nil
}

func single(in Input, kind mei.Kind) (*mei.Element, error) {
	if len(in.Elements) != 1 {
		return nil, refuse("Select a single %s", kind)
	}
	if el := in.Elements[0]; el.Kind == kind {
		return el, nil
	}
	return nil, refuse("Selected element is not a %s", kind)
}

func pageWide(fix func(*mei.Document) (Chain, error), success, failure string) Composer {
	return func(in Input) (Plan, error) {
		chain, err := fix(in.Doc)
		if err != nil {
			return Plan{}, err
		}
		return plan(chain, success, failure), nil
	}
}

func grouping(kind Kind, gt GroupType, elementIDs []string) (Plan, error) {
	a, err := Grouping(kind, gt, elementIDs)
	if err != nil {
		return Plan{}, err
	}
	p := plan(a, "Grouping Success", "Grouping Failed")
	if kind == KindUngroup {
		p.Success, p.Failure = "Ungrouping Success", "Ungrouping Failed"
	}
	if gt == GroupNC {
		p.ContourNC = elementIDs[0]
	}
	return p, nil
}

func ofKind(kind mei.Kind) func(*mei.Element) bool {
	return func(el *mei.Element) bool { return el.Kind == kind }
}

func filter(elements []*mei.Element, keep func(*mei.Element) bool) []string {
	var res []string
	for _, el := range elements {
		if keep(el) {
			res = append(res, el.ID)
		}
	}
	return res
}

func refuseLinked(in Input) error {
	if selection.ContainsLinked(in.Mode, in.Elements) {
		return refuse(selection.LinkedWarning)
	}
	return nil
}

func groupKeySyllable(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	if err := refuseLinked(in); err != nil {
		return Plan{}, err
	}
	if ok, _ := linkage.IsLinkable(in.Mode, in.Doc, in.Elements); ok {
		return toggleLink(in)
	}
	if selection.IsGroupable(in.Mode, in.Elements, in.adjacency()) {
		return grouping(KindGroup, GroupNeume, childIDs(in.Elements, ofKind(mei.KindNeume)))
	}
	if len(in.Elements) == 1 {
		return grouping(KindUngroup, GroupNeume, childIDs(in.Elements, nil))
	}
	return Plan{}, &Refusal{}
}

func groupKeyNeume(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	if err := refuseLinked(in); err != nil {
		return Plan{}, err
	}
	if selection.IsGroupable(in.Mode, in.Elements, in.adjacency()) {
		return grouping(KindGroup, GroupNeume, ids(in.Elements))
	}
	return grouping(KindUngroup, GroupNC, childIDs(in.Elements, nil))
}

func groupKeyNc(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	if err := refuseLinked(in); err != nil {
		return Plan{}, err
	}
	if selection.IsGroupable(in.Mode, in.Elements, in.adjacency()) {
		return grouping(KindGroup, GroupNC, ids(in.Elements))
	}
	return grouping(KindUngroup, GroupNC, childIDs(in.Elements, nil))
}

func groupKeyStaff(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	if selection.IsGroupable(in.Mode, in.Elements, in.adjacency()) {
		return mergeStaves(in)
	}
	return Plan{}, refuse("Staff splitting requires choosing a split point")
}

func groupKeyUnsupported(in Input) (Plan, error) {
	return Plan{}, fmt.Errorf("can't perform grouping/ungrouping action on selection type %s: %w", in.Mode, selection.ErrUnsupportedMode)
}

func toggleLink(in Input) (Plan, error) {
	ok, diag := linkage.IsLinkable(in.Mode, in.Doc, in.Elements)
	if !ok {
		return Plan{}, &Refusal{Message: string(diag)}
	}
	chain, err := ToggleLink(in.Elements)
	if err != nil {
		return Plan{}, err
	}
	return plan(chain, "Toggled Syllable Link", "Failed to Toggle Syllable Link"), nil
}

func mergeSyllables(in Input) (Plan, error) {
	if err := refuseLinked(in); err != nil {
		return Plan{}, err
	}
	return grouping(KindGroup, GroupNeume, childIDs(in.Elements, ofKind(mei.KindNeume)))
}

func ungroupNeumes(in Input) (Plan, error) {
	return grouping(KindUngroup, GroupNeume, childIDs(in.Elements, nil))
}

func groupNeumes(in Input) (Plan, error) {
	if err := refuseLinked(in); err != nil {
		return Plan{}, err
	}
	return grouping(KindGroup, GroupNeume, filter(in.Elements, ofKind(mei.KindNeume)))
}

func ungroupNcs(in Input) (Plan, error) {
	return grouping(KindUngroup, GroupNC, childIDs(in.Elements, nil))
}

func groupNcs(in Input) (Plan, error) {
	return grouping(KindGroup, GroupNC, filter(in.Elements, ofKind(mei.KindNC)))
}

func changeGroup(in Input) (Plan, error) {
	neume, err := single(in, mei.KindNeume)
	if err != nil {
		return Plan{}, err
	}
	a, err := ChangeGroupOf(neume, in.Arg)
	if err != nil {
		return Plan{}, err
	}
	return plan(a, "Grouping Changed", "Grouping Failed"), nil
}

func toggleLigature(in Input) (Plan, error) {
	if len(in.Elements) != 2 {
		return Plan{}, refuse("Select two neume components to toggle ligature")
	}
	return plan(ToggleLigatureOf(in.Elements), "Ligature Toggled", "Ligature Toggle Failed"), nil
}

func ncShape(in Input) (Plan, error) {
	nc, err := single(in, mei.KindNC)
	if err != nil {
		return Plan{}, err
	}
	chain, err := NcShape(nc.ID, Shape(in.Arg))
	if err != nil {
		return Plan{}, err
	}
	return plan(chain, "Shape Changed", "Shape Change Failed"), nil
}

func mergeStaves(in Input) (Plan, error) {
	if len(in.Elements) < 2 {
		return Plan{}, refuse("Select at least two staves to merge")
	}
	return plan(MergeStaves(in.Elements), "Staff Merged", "Merge Failed"), nil
}

func setColumn(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	n, err := strconv.Atoi(in.Arg)
	if err != nil {
		return Plan{}, refuse("Column must be a number, got %q", in.Arg)
	}
	return plan(SetColumn(in.Elements, n), "Column Value Update Success", "Column Value Update Failed"), nil
}

func resetRotate(in Input) (Plan, error) {
	staff, err := single(in, mei.KindStaff)
	if err != nil {
		return Plan{}, err
	}
	a, err := ResetRotate(in.Doc, staff)
	if err != nil {
		return Plan{}, err
	}
	return plan(a, "", "Failed to reset staff rotation"), nil
}

func matchHeight(in Input) (Plan, error) {
	a, err := MatchHeightOf(in.Elements)
	if err != nil {
		return Plan{}, err
	}
	return plan(a, "Height Match Success", "Height Match Failed"), nil
}

func changeStaff(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	return plan(ChangeStaffOf(in.Elements), "", "Change Staff Failed"), nil
}

func layerElement(in Input, kind mei.Kind, set func(id, arg string) (Action, error)) (Plan, error) {
	el, err := single(in, kind)
	if err != nil {
		return Plan{}, err
	}
	a, err := set(el.ID, in.Arg)
	if err != nil {
		return Plan{}, err
	}
	return plan(a, "Shape Changed", "Shape Change Failed"), nil
}

func accid(in Input) (Plan, error) {
	return layerElement(in, mei.KindAccid, AccidType)
}

func divLine(in Input) (Plan, error) {
	return layerElement(in, mei.KindDivLine, DivLineForm)
}

func clefShape(in Input) (Plan, error) {
	return layerElement(in, mei.KindClef, ClefShape)
}

func clefOctave(in Input) (Plan, error) {
	p, err := layerElement(in, mei.KindClef, ClefOctave)
	if err != nil {
		return Plan{}, err
	}
	p.Success = "Clef octave incremented."
	if in.Arg == "below" {
		p.Success = "Clef octave decremented."
	}
	p.Failure = "Maximum octave displacement reached. Clef can only be displaced up to 3 octaves."
	return p, nil
}

func insertToSyllable(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	return plan(InsertIntoSyllable(in.Elements), "Insert Success", "Insert Failed"), nil
}

func moveOutsideSyllable(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	return plan(MoveOutOfSyllable(in.Elements), "Move Success", "Move Failed"), nil
}

func remove(in Input) (Plan, error) {
	if err := nonEmpty(in); err != nil {
		return Plan{}, err
	}
	return plan(RemoveElements(in.Elements), "", "Remove Failed"), nil
}
